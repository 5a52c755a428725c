package module

import (
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// CoordinatorMetrics collects metrics from the contract side.
type CoordinatorMetrics interface {

	// EpochStateAdvanced reports a successful phase transition into the
	// given state.
	EpochStateAdvanced(state dkg.EpochState)

	// DealerRegistered reports a successful dealer registration.
	DealerRegistered()

	// DealingSubmitted reports a committed dealing.
	DealingSubmitted()

	// ProposalOpened reports a newly opened proposal of the given kind.
	ProposalOpened(kind dkg.SubjectKind)

	// ProposalResolved reports a proposal reaching Passed or Rejected.
	ProposalResolved(status dkg.ProposalStatus)
}

// AgentMetrics collects metrics from the agent side.
type AgentMetrics interface {

	// AgentActionExecuted reports one executed tick action by name.
	AgentActionExecuted(action string)

	// AgentActionFailed reports a rejected or failed tick action by name.
	AgentActionFailed(action string)
}
