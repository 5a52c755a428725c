package agent

import (
	"errors"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// rejection classifies a chain-side error into the agent's four recovery
// strategies. No rejection is recovered silently when it implies a protocol
// invariant violation: those halt the agent.
type rejection int

const (
	// rejectionRetry covers transient failures worth retrying in place.
	rejectionRetry rejection = iota
	// rejectionIgnore covers idempotency collisions: the chain already holds
	// what we tried to write, and phase-not-ready advances.
	rejectionIgnore
	// rejectionResync covers stale views: the phase moved under us, so the
	// action is abandoned and the next tick re-reads and re-decides.
	rejectionResync
	// rejectionAbandon covers actions this agent is not entitled to; the
	// action is dropped without retry.
	rejectionAbandon
	// rejectionHalt covers cryptographic invariant violations, which stop
	// the agent.
	rejectionHalt
)

func (r rejection) String() string {
	switch r {
	case rejectionRetry:
		return "retry"
	case rejectionIgnore:
		return "ignore"
	case rejectionResync:
		return "resync"
	case rejectionAbandon:
		return "abandon"
	case rejectionHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// classify maps a chain error to its recovery strategy.
func classify(err error) rejection {
	switch {
	case dkg.IsAlreadySubmittedError(err),
		dkg.IsDuplicateRegistrationError(err),
		errors.Is(err, dkg.ErrAlreadyExecuted),
		dkg.IsPhaseNotReadyError(err),
		errors.Is(err, dkg.ErrTerminalState):
		return rejectionIgnore

	case dkg.IsInvalidEpochStateError(err),
		dkg.IsInvalidTransitionError(err):
		return rejectionResync

	case dkg.IsUnauthorizedDealerError(err),
		dkg.IsIndexOutOfBoundsError(err):
		return rejectionAbandon

	case dkg.IsInvalidProofError(err),
		dkg.IsNodeIndexRecoveryError(err):
		return rejectionHalt
	}
	return rejectionRetry
}

// isProtocolRejection reports whether the error is a typed protocol
// rejection, as opposed to a transient failure. Protocol rejections are
// never retried in place.
func isProtocolRejection(err error) bool {
	return classify(err) != rejectionRetry
}
