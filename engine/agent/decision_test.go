package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

const me = dkg.Address("dealer-001")

// obsInState builds a minimal observation for a registered active dealer in
// the given phase. Cases mutate the result as needed.
func obsInState(state dkg.EpochState) Observation {
	threshold := uint64(3)
	return Observation{
		Me: me,
		Epoch: &dkg.Epoch{
			ID:        7,
			State:     state,
			Threshold: &threshold,
		},
		Params: &dkg.ContractState{DealingsPerDealer: 2},
		Self: &dkg.DealerRecord{
			Index:   1,
			Address: me,
			Active:  true,
		},
	}
}

func openProposal(id uint64, epoch dkg.EpochID, kind dkg.SubjectKind, votes ...dkg.Address) *dkg.Proposal {
	proposal := &dkg.Proposal{
		ID:     id,
		Epoch:  epoch,
		Kind:   kind,
		Status: dkg.ProposalOpen,
		Votes:  make(map[dkg.Address]bool),
	}
	for _, voter := range votes {
		proposal.Votes[voter] = true
	}
	return proposal
}

func TestDecide(t *testing.T) {

	cases := []struct {
		name   string
		obs    func() Observation
		mem    memory
		expect action
	}{
		{
			name: "unregistered dealer registers",
			obs: func() Observation {
				obs := obsInState(dkg.PublicKeySubmission)
				obs.Self = nil
				return obs
			},
			expect: action{kind: actRegister},
		},
		{
			name: "initial dealer registers for resharing",
			obs: func() Observation {
				obs := obsInState(dkg.PublicKeySubmission)
				obs.Self = nil
				obs.Epoch.InitialDealers = []dkg.Address{me, "dealer-002"}
				return obs
			},
			expect: action{kind: actRegister, resharing: true},
		},
		{
			name:   "registered dealer pushes the phase",
			obs:    func() Observation { return obsInState(dkg.PublicKeySubmission) },
			expect: action{kind: actAdvance},
		},
		{
			name: "first dealing outstanding",
			obs: func() Observation {
				return obsInState(dkg.DealingExchange)
			},
			expect: action{kind: actSubmitDealing, dealingIndex: 0},
		},
		{
			name: "next dealing index follows the submitted count",
			obs: func() Observation {
				obs := obsInState(dkg.DealingExchange)
				obs.SubmittedDealings = 1
				return obs
			},
			expect: action{kind: actSubmitDealing, dealingIndex: 1},
		},
		{
			name: "initial dealer deals from its prior share",
			obs: func() Observation {
				obs := obsInState(dkg.DealingExchange)
				obs.Epoch.InitialDealers = []dkg.Address{me, "dealer-002"}
				return obs
			},
			expect: action{kind: actSubmitDealing, dealingIndex: 0, resharing: true},
		},
		{
			name: "all dealings in, peers unverified",
			obs: func() Observation {
				obs := obsInState(dkg.DealingExchange)
				obs.SubmittedDealings = 2
				return obs
			},
			expect: action{kind: actVerifyPeers},
		},
		{
			name: "all dealings in, peers verified",
			obs: func() Observation {
				obs := obsInState(dkg.DealingExchange)
				obs.SubmittedDealings = 2
				return obs
			},
			mem:    memory{peersVerified: true},
			expect: action{kind: actAdvance},
		},
		{
			name: "deactivated dealer only pushes the phase",
			obs: func() Observation {
				obs := obsInState(dkg.DealingExchange)
				obs.Self.Active = false
				return obs
			},
			expect: action{kind: actAdvance},
		},
		{
			name: "queued complaints drain first",
			obs:  func() Observation { return obsInState(dkg.ComplaintSubmission) },
			mem: memory{queuedComplaints: []complaintIntent{
				{Epoch: 7, Accused: 3},
			}},
			expect: action{kind: actSubmitComplaint},
		},
		{
			name:   "no complaints to file",
			obs:    func() Observation { return obsInState(dkg.ComplaintSubmission) },
			expect: action{kind: actAdvance},
		},
		{
			name: "lowest open unvoted complaint gets the ballot",
			obs: func() Observation {
				obs := obsInState(dkg.ComplaintVoting)
				obs.Proposals = []*dkg.Proposal{
					openProposal(4, 7, dkg.SubjectComplaint, me), // already voted
					openProposal(5, 6, dkg.SubjectComplaint),     // stale epoch
					openProposal(6, 7, dkg.SubjectMismatch),      // wrong kind
					openProposal(7, 7, dkg.SubjectComplaint),     // this one
					openProposal(8, 7, dkg.SubjectComplaint),     // later
				}
				return obs
			},
			expect: action{kind: actVoteComplaint, proposalID: 7},
		},
		{
			name: "all ballots cast",
			obs: func() Observation {
				obs := obsInState(dkg.ComplaintVoting)
				obs.Proposals = []*dkg.Proposal{
					openProposal(4, 7, dkg.SubjectComplaint, me),
				}
				return obs
			},
			expect: action{kind: actAdvance},
		},
		{
			name:   "own share outstanding",
			obs:    func() Observation { return obsInState(dkg.VerificationKeySubmission) },
			expect: action{kind: actSubmitShare},
		},
		{
			name: "own share already submitted",
			obs: func() Observation {
				obs := obsInState(dkg.VerificationKeySubmission)
				obs.MyVKShare = &dkg.VKShare{Epoch: 7, Dealer: me}
				return obs
			},
			expect: action{kind: actAdvance},
		},
		{
			name:   "peer shares unaudited",
			obs:    func() Observation { return obsInState(dkg.VerificationKeyMismatchSubmission) },
			expect: action{kind: actCheckMismatches},
		},
		{
			name:   "peer shares audited",
			obs:    func() Observation { return obsInState(dkg.VerificationKeyMismatchSubmission) },
			mem:    memory{mismatchesChecked: true},
			expect: action{kind: actAdvance},
		},
		{
			name: "open mismatch gets the ballot",
			obs: func() Observation {
				obs := obsInState(dkg.VerificationKeyMismatchVoting)
				obs.Proposals = []*dkg.Proposal{
					openProposal(9, 7, dkg.SubjectMismatch),
				}
				return obs
			},
			expect: action{kind: actVoteMismatch, proposalID: 9},
		},
		{
			name:   "terminal state idles",
			obs:    func() Observation { return obsInState(dkg.InProgress) },
			expect: action{kind: actNone},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, decide(tc.obs(), tc.mem))
		})
	}
}

func TestClassify(t *testing.T) {

	cases := []struct {
		err    error
		expect rejection
	}{
		{dkg.NewAlreadySubmittedErrorf("dup"), rejectionIgnore},
		{dkg.NewDuplicateRegistrationError("dealer-001"), rejectionIgnore},
		{dkg.ErrAlreadyExecuted, rejectionIgnore},
		{dkg.NewPhaseNotReadyErrorf(dkg.DealingExchange, "waiting"), rejectionIgnore},
		{dkg.ErrTerminalState, rejectionIgnore},
		{dkg.NewInvalidEpochStateError(dkg.DealingExchange, "RegisterDealer"), rejectionResync},
		{dkg.NewInvalidTransitionError(dkg.InProgress, dkg.DealingExchange), rejectionResync},
		{dkg.NewUnauthorizedDealerErrorf("not registered"), rejectionAbandon},
		{dkg.NewIndexOutOfBoundsError(3, 1), rejectionAbandon},
		{dkg.NewInvalidProofErrorf("bad proof"), rejectionHalt},
		{dkg.NewNodeIndexRecoveryError("no attribute"), rejectionHalt},
		{errors.New("connection refused"), rejectionRetry},
	}

	for _, tc := range cases {
		t.Run(tc.expect.String()+"/"+tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.expect, classify(tc.err))
			assert.Equal(t, tc.expect != rejectionRetry, isProtocolRejection(tc.err))
		})
	}
}
