package dkg

import (
	"fmt"
	"time"
)

// EpochID identifies one run of the key generation ceremony. It starts at 0
// and is incremented only when a terminal epoch is reset for resharing.
type EpochID = uint64

// NodeIndex is the index assigned to a dealer on first registration within an
// epoch. It is stable for the epoch, never reused, and doubles as the
// dealer's Lagrange coordinate, so the allocation order is observable
// protocol state.
type NodeIndex = uint64

// DealingIndex enumerates the dealings a single dealer must produce within
// one epoch. The valid range is [0, D) where D is fixed per epoch.
type DealingIndex = uint64

// Address is the chain address of a participant.
type Address string

// EpochState enumerates the phases of the epoch lifecycle. The declaration
// order is the total order of the state machine: states only ever advance to
// their immediate successor, and InProgress is terminal.
type EpochState uint8

const (
	// PublicKeySubmission admits dealer registrations.
	PublicKeySubmission EpochState = iota
	// DealingExchange admits dealing submissions from registered dealers.
	DealingExchange
	// ComplaintSubmission admits evidence against malformed dealings.
	ComplaintSubmission
	// ComplaintVoting admits votes on open complaint proposals.
	ComplaintVoting
	// VerificationKeySubmission admits partial verification key shares.
	VerificationKeySubmission
	// VerificationKeyMismatchSubmission admits reports that a submitted
	// share disagrees with the reporter's local derivation.
	VerificationKeyMismatchSubmission
	// VerificationKeyMismatchVoting admits votes on open mismatch proposals.
	VerificationKeyMismatchVoting
	// InProgress is the terminal state: the threshold key is established and
	// the epoch serves the issuance workload until reset.
	InProgress
)

// Successor returns the next state in the total order. The second return
// value is false when called on the terminal state.
func (s EpochState) Successor() (EpochState, bool) {
	if s >= InProgress {
		return InProgress, false
	}
	return s + 1, true
}

// IsTerminal returns true for the final state of the lifecycle.
func (s EpochState) IsTerminal() bool {
	return s == InProgress
}

func (s EpochState) String() string {
	switch s {
	case PublicKeySubmission:
		return "PublicKeySubmission"
	case DealingExchange:
		return "DealingExchange"
	case ComplaintSubmission:
		return "ComplaintSubmission"
	case ComplaintVoting:
		return "ComplaintVoting"
	case VerificationKeySubmission:
		return "VerificationKeySubmission"
	case VerificationKeyMismatchSubmission:
		return "VerificationKeyMismatchSubmission"
	case VerificationKeyMismatchVoting:
		return "VerificationKeyMismatchVoting"
	case InProgress:
		return "InProgress"
	default:
		return fmt.Sprintf("EpochState(%d)", uint8(s))
	}
}

// Epoch is the authoritative lifecycle record held by the contract.
type Epoch struct {
	ID       EpochID
	State    EpochState
	Deadline time.Time

	// Threshold is nil until the registration phase closes, after which it
	// holds t = floor(2n/3)+1 for the frozen dealer count n. It never changes
	// for the remainder of the epoch.
	Threshold *uint64

	// InitialDealers is non-empty only for epochs opened by a reset. It
	// records the dealer set of the previous epoch so that returning dealers
	// can extend the established master key.
	InitialDealers []Address
}

// ComputeThreshold returns the threshold parameter for a dealer count n.
func ComputeThreshold(n uint64) uint64 {
	return 2*n/3 + 1
}
