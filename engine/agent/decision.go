package agent

import (
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// Observation is the snapshot of chain state an agent decides on. One
// observation is taken per tick; the decision function never reads the
// chain itself.
type Observation struct {
	Me        dkg.Address
	Epoch     *dkg.Epoch
	Params    *dkg.ContractState
	Self      *dkg.DealerRecord
	Dealers   []*dkg.DealerRecord
	MyVKShare *dkg.VKShare
	Proposals []*dkg.Proposal

	// SubmittedDealings counts this agent's committed dealings in the
	// current epoch.
	SubmittedDealings uint64
}

// memory is the agent's per-epoch working state. None of it is
// authoritative: it is rebuilt from chain state and the keystore whenever
// the agent restarts or observes a new epoch id.
type memory struct {
	epoch dkg.EpochID

	// peersVerified marks that this epoch's dealings have been checked and
	// complaints queued.
	peersVerified bool

	// queuedComplaints holds the complaints produced by dealing
	// verification, pending submission.
	queuedComplaints []complaintIntent

	// mismatchesChecked marks that peers' verification key shares have been
	// audited against the local derivation.
	mismatchesChecked bool
}

// complaintIntent is one queued complaint, tagged with the epoch it was
// produced in so stale intents are discarded on epoch change.
type complaintIntent struct {
	Epoch        dkg.EpochID
	Accused      dkg.NodeIndex
	DealingIndex dkg.DealingIndex
	Evidence     []byte
}

// actionKind names the agent's possible tick actions.
type actionKind int

const (
	actNone actionKind = iota
	actRegister
	actSubmitDealing
	actVerifyPeers
	actSubmitComplaint
	actVoteComplaint
	actSubmitShare
	actCheckMismatches
	actVoteMismatch
	actAdvance
)

func (k actionKind) String() string {
	switch k {
	case actNone:
		return "none"
	case actRegister:
		return "register"
	case actSubmitDealing:
		return "submit_dealing"
	case actVerifyPeers:
		return "verify_peers"
	case actSubmitComplaint:
		return "submit_complaint"
	case actVoteComplaint:
		return "vote_complaint"
	case actSubmitShare:
		return "submit_share"
	case actCheckMismatches:
		return "check_mismatches"
	case actVoteMismatch:
		return "vote_mismatch"
	case actAdvance:
		return "advance"
	default:
		return "unknown"
	}
}

// action is one decided tick action with its parameters.
type action struct {
	kind actionKind

	dealingIndex dkg.DealingIndex
	proposalID   uint64
	resharing    bool
}

// decide maps one observation and the agent's working memory to at most one
// action. It is a pure function: all chain reads happen before it and all
// chain writes and crypto happen after it, which keeps the policy testable
// as a table.
func decide(obs Observation, mem memory) action {

	epoch := obs.Epoch

	switch epoch.State {

	case dkg.PublicKeySubmission:
		if obs.Self == nil {
			return action{
				kind:      actRegister,
				resharing: inInitialSet(epoch, obs.Me),
			}
		}
		return action{kind: actAdvance}

	case dkg.DealingExchange:
		if !isActiveDealer(obs.Self) {
			return action{kind: actAdvance}
		}
		if obs.SubmittedDealings < obs.Params.DealingsPerDealer {
			return action{
				kind:         actSubmitDealing,
				dealingIndex: dkg.DealingIndex(obs.SubmittedDealings),
				resharing:    inInitialSet(epoch, obs.Me),
			}
		}
		if !mem.peersVerified {
			return action{kind: actVerifyPeers}
		}
		return action{kind: actAdvance}

	case dkg.ComplaintSubmission:
		if isActiveDealer(obs.Self) && len(mem.queuedComplaints) > 0 {
			return action{kind: actSubmitComplaint}
		}
		return action{kind: actAdvance}

	case dkg.ComplaintVoting:
		if isActiveDealer(obs.Self) {
			if id, ok := openBallot(obs, dkg.SubjectComplaint); ok {
				return action{kind: actVoteComplaint, proposalID: id}
			}
		}
		return action{kind: actAdvance}

	case dkg.VerificationKeySubmission:
		if isActiveDealer(obs.Self) && obs.MyVKShare == nil {
			return action{
				kind:      actSubmitShare,
				resharing: inInitialSet(epoch, obs.Me),
			}
		}
		return action{kind: actAdvance}

	case dkg.VerificationKeyMismatchSubmission:
		if isActiveDealer(obs.Self) && !mem.mismatchesChecked {
			return action{kind: actCheckMismatches}
		}
		return action{kind: actAdvance}

	case dkg.VerificationKeyMismatchVoting:
		if isActiveDealer(obs.Self) {
			if id, ok := openBallot(obs, dkg.SubjectMismatch); ok {
				return action{kind: actVoteMismatch, proposalID: id}
			}
		}
		return action{kind: actAdvance}

	case dkg.InProgress:
		// key established; nothing to drive until a reset opens a new epoch
		return action{kind: actNone}
	}

	return action{kind: actNone}
}

// openBallot finds the lowest-id open proposal of the given kind in the
// observed epoch that this agent has not voted on yet.
func openBallot(obs Observation, kind dkg.SubjectKind) (uint64, bool) {
	for _, proposal := range obs.Proposals {
		if proposal.Epoch != obs.Epoch.ID || proposal.Kind != kind {
			continue
		}
		if proposal.Status != dkg.ProposalOpen {
			continue
		}
		if obs.Self != nil {
			if _, voted := proposal.Votes[obs.Self.Address]; voted {
				continue
			}
		}
		return proposal.ID, true
	}
	return 0, false
}

func isActiveDealer(self *dkg.DealerRecord) bool {
	return self != nil && self.Active
}

// inInitialSet reports whether the agent is part of a resharing epoch's
// initial dealer set, in which case it re-proves its existing key material
// instead of generating fresh keys.
func inInitialSet(epoch *dkg.Epoch, me dkg.Address) bool {
	for _, address := range epoch.InitialDealers {
		if address == me {
			return true
		}
	}
	return false
}
