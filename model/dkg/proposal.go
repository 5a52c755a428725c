package dkg

import "fmt"

// ProposalStatus is the lifecycle of a vote.
type ProposalStatus uint8

const (
	ProposalOpen ProposalStatus = iota
	ProposalPassed
	ProposalRejected
	ProposalExecuted
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalOpen:
		return "Open"
	case ProposalPassed:
		return "Passed"
	case ProposalRejected:
		return "Rejected"
	case ProposalExecuted:
		return "Executed"
	default:
		return fmt.Sprintf("ProposalStatus(%d)", uint8(s))
	}
}

// SubjectKind tags what a proposal decides, and therefore what executing a
// passed proposal does. A closed set of kinds with a single dispatcher is
// used instead of open polymorphism.
type SubjectKind uint8

const (
	// SubjectComplaint: pass deactivates the accused dealer.
	SubjectComplaint SubjectKind = iota
	// SubjectVKShare: pass marks the dealer's share verified.
	SubjectVKShare
	// SubjectMismatch: pass invalidates the accused dealer's share and
	// deactivates the dealer.
	SubjectMismatch
)

func (k SubjectKind) String() string {
	switch k {
	case SubjectComplaint:
		return "Complaint"
	case SubjectVKShare:
		return "VKShare"
	case SubjectMismatch:
		return "Mismatch"
	default:
		return fmt.Sprintf("SubjectKind(%d)", uint8(k))
	}
}

// Proposal is a named decision point resolved by a one-dealer-one-vote
// ballot among the active dealers of its epoch. Subjects reference the
// proposal by id; the proposal references its subject dealer by address,
// which is all the execution effect needs.
type Proposal struct {
	ID      uint64
	Epoch   EpochID
	Kind    SubjectKind
	Subject Address
	Status  ProposalStatus

	// Votes maps voter address to ballot. Tallies are derived from this map,
	// so the outcome depends only on the multiset of (voter, ballot) pairs
	// and not on arrival order.
	Votes map[Address]bool
}

// YesWeight counts the votes in favour. Every vote weighs 1.
func (p *Proposal) YesWeight() uint64 {
	var yes uint64
	for _, v := range p.Votes {
		if v {
			yes++
		}
	}
	return yes
}

// NoWeight counts the votes against.
func (p *Proposal) NoWeight() uint64 {
	return uint64(len(p.Votes)) - p.YesWeight()
}

// Complaint is evidence that a dealer published a malformed dealing.
// One complaint is admitted per (complainant, accused, dealing index).
type Complaint struct {
	Epoch        EpochID
	Complainant  NodeIndex
	Accused      NodeIndex
	DealingIndex DealingIndex
	Evidence     []byte
	ProposalID   uint64
}

// VKShare is one dealer's partial verification key for the epoch.
type VKShare struct {
	Epoch  EpochID
	Dealer Address
	Index  NodeIndex
	Share  []byte

	// Verified is set by executing the share's own passed proposal. Only
	// verified shares of dealers still active at InProgress entry count
	// toward the master key.
	Verified   bool
	ProposalID uint64
}

// MismatchReport asserts that the accused dealer's submitted share is
// inconsistent with the reporter's local derivation of the master key.
type MismatchReport struct {
	Epoch       EpochID
	Reporter    NodeIndex
	Accused     NodeIndex
	LocalDigest []byte
	ProposalID  uint64
}
