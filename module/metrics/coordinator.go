package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

const (
	namespaceDKG         = "dkg"
	subsystemCoordinator = "coordinator"
	subsystemAgent       = "agent"
)

// CoordinatorCollector implements module.CoordinatorMetrics with prometheus
// counters.
type CoordinatorCollector struct {
	epochTransitions *prometheus.CounterVec
	registrations    prometheus.Counter
	dealings         prometheus.Counter
	proposalsOpened  *prometheus.CounterVec
	proposalsClosed  *prometheus.CounterVec
}

func NewCoordinatorCollector(registerer prometheus.Registerer) *CoordinatorCollector {
	epochTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemCoordinator,
		Name:      "epoch_transitions_total",
		Help:      "number of epoch state transitions, labeled by the state entered",
	}, []string{"state"})
	registrations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemCoordinator,
		Name:      "dealer_registrations_total",
		Help:      "number of successful dealer registrations",
	})
	dealings := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemCoordinator,
		Name:      "dealings_submitted_total",
		Help:      "number of committed dealings",
	})
	proposalsOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemCoordinator,
		Name:      "proposals_opened_total",
		Help:      "number of opened proposals, labeled by subject kind",
	}, []string{"kind"})
	proposalsClosed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemCoordinator,
		Name:      "proposals_resolved_total",
		Help:      "number of resolved proposals, labeled by outcome",
	}, []string{"status"})

	registerer.MustRegister(epochTransitions, registrations, dealings, proposalsOpened, proposalsClosed)

	return &CoordinatorCollector{
		epochTransitions: epochTransitions,
		registrations:    registrations,
		dealings:         dealings,
		proposalsOpened:  proposalsOpened,
		proposalsClosed:  proposalsClosed,
	}
}

func (c *CoordinatorCollector) EpochStateAdvanced(state dkg.EpochState) {
	c.epochTransitions.WithLabelValues(state.String()).Inc()
}

func (c *CoordinatorCollector) DealerRegistered() {
	c.registrations.Inc()
}

func (c *CoordinatorCollector) DealingSubmitted() {
	c.dealings.Inc()
}

func (c *CoordinatorCollector) ProposalOpened(kind dkg.SubjectKind) {
	c.proposalsOpened.WithLabelValues(kind.String()).Inc()
}

func (c *CoordinatorCollector) ProposalResolved(status dkg.ProposalStatus) {
	c.proposalsClosed.WithLabelValues(status.String()).Inc()
}

// AgentCollector implements module.AgentMetrics with prometheus counters.
type AgentCollector struct {
	actionsExecuted *prometheus.CounterVec
	actionsFailed   *prometheus.CounterVec
}

func NewAgentCollector(registerer prometheus.Registerer) *AgentCollector {
	actionsExecuted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemAgent,
		Name:      "actions_executed_total",
		Help:      "number of executed agent actions, labeled by action",
	}, []string{"action"})
	actionsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceDKG,
		Subsystem: subsystemAgent,
		Name:      "actions_failed_total",
		Help:      "number of failed agent actions, labeled by action",
	}, []string{"action"})

	registerer.MustRegister(actionsExecuted, actionsFailed)

	return &AgentCollector{
		actionsExecuted: actionsExecuted,
		actionsFailed:   actionsFailed,
	}
}

func (c *AgentCollector) AgentActionExecuted(action string) {
	c.actionsExecuted.WithLabelValues(action).Inc()
}

func (c *AgentCollector) AgentActionFailed(action string) {
	c.actionsFailed.WithLabelValues(action).Inc()
}
