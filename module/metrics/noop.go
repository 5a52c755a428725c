package metrics

import (
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// NoopCollector satisfies all metrics interfaces while doing nothing. Used
// in tests and tools.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) EpochStateAdvanced(state dkg.EpochState)    {}
func (nc *NoopCollector) DealerRegistered()                          {}
func (nc *NoopCollector) DealingSubmitted()                          {}
func (nc *NoopCollector) ProposalOpened(kind dkg.SubjectKind)        {}
func (nc *NoopCollector) ProposalResolved(status dkg.ProposalStatus) {}
func (nc *NoopCollector) AgentActionExecuted(action string)          {}
func (nc *NoopCollector) AgentActionFailed(action string)            {}
