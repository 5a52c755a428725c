package contract_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumsafe/dkg-coordinator/contract"
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/model/events"
	"github.com/quorumsafe/dkg-coordinator/module/metrics"
	"github.com/quorumsafe/dkg-coordinator/utils/unittest"
)

// acceptAllVerifier admits any key proof; proof rejection paths are covered
// by the crypto suite's own tests.
type acceptAllVerifier struct{}

func (acceptAllVerifier) VerifyKeyProof([]byte) error { return nil }

func fastConfig() contract.Config {
	return contract.Config{
		DealingsPerDealer: 1,
		PhaseDurations:    unittest.FastPhaseDurations(),
	}
}

func runWithContract(t *testing.T, cfg contract.Config, f func(*contract.Contract, *clock.Mock)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		clk := clock.NewMock()
		c, err := contract.New(zerolog.Nop(), db, clk, acceptAllVerifier{}, metrics.NewNoopCollector(), cfg)
		require.NoError(t, err)
		f(c, clk)
	})
}

func register(t *testing.T, c *contract.Contract, sender dkg.Address) dkg.NodeIndex {
	evts, err := c.RegisterDealer(contract.RegisterDealerRequest{
		Sender:                sender,
		BTEPublicKeyWithProof: []byte("bte-" + sender),
		IdentityKey:           []byte("id-" + sender),
		AnnounceAddress:       string(sender) + ".example.com:8000",
	})
	require.NoError(t, err)
	value, ok := events.Find(evts, events.AttrNodeIndex)
	require.True(t, ok)
	index, err := strconv.ParseUint(value, 10, 64)
	require.NoError(t, err)
	return index
}

// advance moves the epoch one state forward after letting the current phase
// deadline pass.
func advance(t *testing.T, c *contract.Contract, clk *clock.Mock) dkg.EpochState {
	clk.Add(2 * time.Minute)
	_, err := c.AdvanceEpochState()
	require.NoError(t, err)
	epoch, err := c.CurrentEpoch()
	require.NoError(t, err)
	return epoch.State
}

// registerCohort registers n dealers and advances into DealingExchange.
func registerCohort(t *testing.T, c *contract.Contract, clk *clock.Mock, n int) []dkg.Address {
	dealers := make([]dkg.Address, 0, n)
	for i := 1; i <= n; i++ {
		address := unittest.AddressFixture(i)
		index := register(t, c, address)
		require.Equal(t, dkg.NodeIndex(i), index)
		dealers = append(dealers, address)
	}
	require.Equal(t, dkg.DealingExchange, advance(t, c, clk))
	return dealers
}

func submitDealing(t *testing.T, c *contract.Contract, sender dkg.Address) {
	_, err := c.SubmitDealing(contract.SubmitDealingRequest{
		Sender:     sender,
		Index:      0,
		Commitment: []byte("dealing-" + sender),
	})
	require.NoError(t, err)
}

func submitShare(t *testing.T, c *contract.Contract, sender dkg.Address) {
	_, err := c.SubmitVerificationKeyShare(contract.SubmitVKShareRequest{
		Sender: sender,
		Share:  []byte("vk-" + sender),
	})
	require.NoError(t, err)
}

func vote(t *testing.T, c *contract.Contract, sender dkg.Address, proposal uint64, yes bool) {
	_, err := c.VoteProposal(contract.VoteProposalRequest{
		Sender:     sender,
		ProposalID: proposal,
		Yes:        yes,
	})
	require.NoError(t, err)
}

func TestRegistration(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {

		// node indices are allocated contiguously from 1 in registration order
		a := unittest.AddressFixture(1)
		b := unittest.AddressFixture(2)
		require.Equal(t, dkg.NodeIndex(1), register(t, c, a))
		require.Equal(t, dkg.NodeIndex(2), register(t, c, b))

		// registering a second time collides
		_, err := c.RegisterDealer(contract.RegisterDealerRequest{Sender: a})
		assert.True(t, dkg.IsDuplicateRegistrationError(err))

		// register round-trips to the same record
		record, err := c.Dealer(0, a)
		require.NoError(t, err)
		assert.Equal(t, dkg.NodeIndex(1), record.Index)
		assert.Equal(t, a, record.Address)
		assert.True(t, record.Active)

		// registration closes with the phase
		require.Equal(t, dkg.DealingExchange, advance(t, c, clk))
		_, err = c.RegisterDealer(contract.RegisterDealerRequest{Sender: unittest.AddressFixture(3)})
		assert.True(t, dkg.IsInvalidEpochStateError(err))
	})
}

func TestRegistrationRequiresDealers(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		clk.Add(2 * time.Minute)
		_, err := c.AdvanceEpochState()
		assert.True(t, dkg.IsPhaseNotReadyError(err))
	})
}

func TestThresholdFreezes(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)

		epoch, err := c.CurrentEpoch()
		require.NoError(t, err)
		require.NotNil(t, epoch.Threshold)
		assert.Equal(t, uint64(3), *epoch.Threshold)

		// the threshold never moves for the rest of the epoch, even as
		// dealers drop out
		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		for state := dkg.ComplaintSubmission; !state.IsTerminal(); state, _ = state.Successor() {
			require.Equal(t, state, advance(t, c, clk))
			epoch, err = c.CurrentEpoch()
			require.NoError(t, err)
			require.NotNil(t, epoch.Threshold)
			assert.Equal(t, uint64(3), *epoch.Threshold)
		}
	})
}

func TestDealingSubmission(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 2)
		a := dealers[0]

		submitDealing(t, c, a)

		// at most one dealing per (epoch, dealer, index)
		_, err := c.SubmitDealing(contract.SubmitDealingRequest{Sender: a, Index: 0})
		assert.True(t, dkg.IsAlreadySubmittedError(err))

		// index must be within [0, D)
		_, err = c.SubmitDealing(contract.SubmitDealingRequest{Sender: a, Index: 1})
		assert.True(t, dkg.IsIndexOutOfBoundsError(err))

		// unregistered senders are rejected
		_, err = c.SubmitDealing(contract.SubmitDealingRequest{Sender: "stranger", Index: 0})
		assert.True(t, dkg.IsUnauthorizedDealerError(err))

		// submit round-trips to status true
		submitted, err := c.DealingStatus(0, a, 0)
		require.NoError(t, err)
		assert.True(t, submitted)
		submitted, err = c.DealingStatus(0, dealers[1], 0)
		require.NoError(t, err)
		assert.False(t, submitted)
	})
}

// TestAdvanceBeforeReady covers S6: an advance request during
// DealingExchange with dealings outstanding and the deadline unexpired must
// not change state.
func TestAdvanceBeforeReady(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 3)
		submitDealing(t, c, dealers[0])

		_, err := c.AdvanceEpochState()
		require.True(t, dkg.IsPhaseNotReadyError(err))

		epoch, err := c.CurrentEpoch()
		require.NoError(t, err)
		assert.Equal(t, dkg.DealingExchange, epoch.State)
	})
}

func TestAdvanceOnStrictSatisfaction(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 3)
		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}

		// every dealer delivered, so no deadline wait is needed
		_, err := c.AdvanceEpochState()
		require.NoError(t, err)
		epoch, err := c.CurrentEpoch()
		require.NoError(t, err)
		assert.Equal(t, dkg.ComplaintSubmission, epoch.State)

		// a second advance in the fresh phase has an unexpired deadline and
		// no satisfied predicate, so it must not produce a second transition
		_, err = c.AdvanceEpochState()
		require.True(t, dkg.IsPhaseNotReadyError(err))
		epoch, err = c.CurrentEpoch()
		require.NoError(t, err)
		assert.Equal(t, dkg.ComplaintSubmission, epoch.State)
	})
}

// TestHappyPath covers S1: four dealers, no disputes, all shares verified
// at InProgress entry.
func TestHappyPath(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))
		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))

		// no complaints, so the voting phase is trivially settled
		_, err := c.AdvanceEpochState()
		require.NoError(t, err)

		for _, dealer := range dealers {
			submitShare(t, c, dealer)
		}
		// all shares in, no deadline wait needed
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)

		require.Equal(t, dkg.VerificationKeyMismatchVoting, advance(t, c, clk))
		require.Equal(t, dkg.InProgress, advance(t, c, clk))

		shares, err := c.VKShares(0, "", 0)
		require.NoError(t, err)
		require.Len(t, shares, 4)
		for _, share := range shares {
			assert.True(t, share.Verified, "share of %s must be verified", share.Dealer)
		}

		// uncontested share proposals were executed at InProgress entry
		proposals, err := c.Proposals(0, 0)
		require.NoError(t, err)
		require.Len(t, proposals, 4)
		for _, proposal := range proposals {
			assert.Equal(t, dkg.ProposalExecuted, proposal.Status)
		}
	})
}

// TestMaliciousDealer covers S2: a passed complaint deactivates the accused
// dealer before the share phase admits anything.
func TestMaliciousDealer(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)
		a, b, cDealer, d := dealers[0], dealers[1], dealers[2], dealers[3]

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))

		evts, err := c.SubmitComplaint(contract.SubmitComplaintRequest{
			Sender:       a,
			Accused:      3, // dealer C
			DealingIndex: 0,
			Evidence:     []byte("malformed commitment"),
		})
		require.NoError(t, err)
		value, ok := events.Find(evts, events.AttrProposalID)
		require.True(t, ok)
		proposalID, err := strconv.ParseUint(value, 10, 64)
		require.NoError(t, err)

		// the same complaint tuple is rejected on replay
		_, err = c.SubmitComplaint(contract.SubmitComplaintRequest{
			Sender: a, Accused: 3, DealingIndex: 0,
		})
		assert.True(t, dkg.IsAlreadySubmittedError(err))

		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))

		vote(t, c, a, proposalID, true)
		vote(t, c, b, proposalID, true)
		vote(t, c, d, proposalID, true)
		// 3 of 4 yes already decides the outcome; C's ballot bounces off the
		// resolved proposal
		_, err = c.VoteProposal(contract.VoteProposalRequest{Sender: cDealer, ProposalID: proposalID, Yes: false})
		assert.True(t, dkg.IsAlreadySubmittedError(err))

		// the passed complaint takes effect on phase exit
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)

		record, err := c.Dealer(0, cDealer)
		require.NoError(t, err)
		assert.False(t, record.Active)

		// the deactivated dealer is shut out of the share phase
		_, err = c.SubmitVerificationKeyShare(contract.SubmitVKShareRequest{Sender: cDealer})
		assert.True(t, dkg.IsUnauthorizedDealerError(err))

		for _, dealer := range []dkg.Address{a, b, d} {
			submitShare(t, c, dealer)
		}
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)
		require.Equal(t, dkg.VerificationKeyMismatchVoting, advance(t, c, clk))
		require.Equal(t, dkg.InProgress, advance(t, c, clk))

		shares, err := c.VKShares(0, "", 0)
		require.NoError(t, err)
		require.Len(t, shares, 3)
		for _, share := range shares {
			assert.True(t, share.Verified)
		}
	})
}

// TestDealingListingsArePerDealer submits under an address that extends
// another registered address and expects the listings to stay disjoint.
func TestDealingListingsArePerDealer(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		short, long := dkg.Address("dealer-1"), dkg.Address("dealer-10")
		register(t, c, short)
		register(t, c, long)
		require.Equal(t, dkg.DealingExchange, advance(t, c, clk))

		submitDealing(t, c, long)

		dealings, err := c.Dealings(0, short)
		require.NoError(t, err)
		assert.Empty(t, dealings)

		dealings, err = c.Dealings(0, long)
		require.NoError(t, err)
		assert.Len(t, dealings, 1)

		// the short dealer's dealing is still outstanding, so the phase only
		// closes on deadline
		_, err = c.AdvanceEpochState()
		require.True(t, dkg.IsPhaseNotReadyError(err))
	})
}

// TestMissingSubmitter covers S3: a dealer that registers and goes silent
// delays the exchange until the deadline but needs no dispute.
func TestMissingSubmitter(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)

		for _, dealer := range dealers[:3] {
			submitDealing(t, c, dealer)
		}

		// not all dealings are in, so only the deadline unblocks the phase
		_, err := c.AdvanceEpochState()
		require.True(t, dkg.IsPhaseNotReadyError(err))
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))

		epoch, err := c.CurrentEpoch()
		require.NoError(t, err)
		require.NotNil(t, epoch.Threshold)
		assert.Equal(t, uint64(3), *epoch.Threshold)
	})
}

// TestTieVote covers S4: an exact tie rejects the complaint and the accused
// stays active.
func TestTieVote(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)
		a, b := dealers[0], dealers[1]

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))

		evts, err := c.SubmitComplaint(contract.SubmitComplaintRequest{
			Sender: a, Accused: 2, DealingIndex: 0,
		})
		require.NoError(t, err)
		value, _ := events.Find(evts, events.AttrProposalID)
		proposalID, err := strconv.ParseUint(value, 10, 64)
		require.NoError(t, err)

		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))

		vote(t, c, dealers[0], proposalID, true)
		vote(t, c, dealers[1], proposalID, false)
		vote(t, c, dealers[2], proposalID, true)
		vote(t, c, dealers[3], proposalID, false)

		proposal, err := c.Proposal(proposalID)
		require.NoError(t, err)
		assert.Equal(t, dkg.ProposalRejected, proposal.Status)

		record, err := c.Dealer(0, b)
		require.NoError(t, err)
		assert.True(t, record.Active)
	})
}

// TestMismatchPath covers S5: a passed mismatch invalidates the accused
// share and deactivates the dealer, while the remaining shares verify.
func TestMismatchPath(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)
		a, b, cDealer, d := dealers[0], dealers[1], dealers[2], dealers[3]

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))
		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))
		_, err := c.AdvanceEpochState()
		require.NoError(t, err)

		for _, dealer := range dealers {
			submitShare(t, c, dealer)
		}
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)

		evts, err := c.SubmitVKMismatch(contract.SubmitVKMismatchRequest{
			Sender:      a,
			Accused:     2, // dealer B
			LocalDigest: []byte("digest-a"),
		})
		require.NoError(t, err)
		value, _ := events.Find(evts, events.AttrProposalID)
		proposalID, err := strconv.ParseUint(value, 10, 64)
		require.NoError(t, err)

		require.Equal(t, dkg.VerificationKeyMismatchVoting, advance(t, c, clk))

		vote(t, c, a, proposalID, true)
		vote(t, c, cDealer, proposalID, true)
		vote(t, c, d, proposalID, true)

		require.Equal(t, dkg.InProgress, advance(t, c, clk))

		record, err := c.Dealer(0, b)
		require.NoError(t, err)
		assert.False(t, record.Active)

		shares, err := c.VKShares(0, "", 0)
		require.NoError(t, err)
		require.Len(t, shares, 4)
		for _, share := range shares {
			if share.Dealer == b {
				assert.False(t, share.Verified)
			} else {
				assert.True(t, share.Verified)
			}
		}
	})
}

// TestMismatchTrumpsPassedShareProposal deactivates a dealer by mismatch in
// the same phase in which its share proposal passed by explicit ballots; at
// InProgress entry the unexecuted pass must be forfeited, not applied.
func TestMismatchTrumpsPassedShareProposal(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 5)
		a, b := dealers[0], dealers[1]

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))
		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))
		_, err := c.AdvanceEpochState()
		require.NoError(t, err)

		for _, dealer := range dealers {
			submitShare(t, c, dealer)
		}
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)

		evts, err := c.SubmitVKMismatch(contract.SubmitVKMismatchRequest{
			Sender:      a,
			Accused:     2, // dealer B
			LocalDigest: []byte("digest-a"),
		})
		require.NoError(t, err)
		value, _ := events.Find(evts, events.AttrProposalID)
		mismatchID, err := strconv.ParseUint(value, 10, 64)
		require.NoError(t, err)

		require.Equal(t, dkg.VerificationKeyMismatchVoting, advance(t, c, clk))

		// B's share proposal passes by explicit ballots but nobody executes it
		var shareID uint64
		proposals, err := c.Proposals(0, 0)
		require.NoError(t, err)
		for _, proposal := range proposals {
			if proposal.Kind == dkg.SubjectVKShare && proposal.Subject == b {
				shareID = proposal.ID
			}
		}
		require.NotZero(t, shareID)
		vote(t, c, dealers[0], shareID, true)
		vote(t, c, dealers[2], shareID, true)
		vote(t, c, dealers[3], shareID, true)
		proposal, err := c.Proposal(shareID)
		require.NoError(t, err)
		require.Equal(t, dkg.ProposalPassed, proposal.Status)

		// the mismatch against B passes in the same phase
		vote(t, c, dealers[2], mismatchID, true)
		vote(t, c, dealers[3], mismatchID, true)
		vote(t, c, dealers[4], mismatchID, true)

		require.Equal(t, dkg.InProgress, advance(t, c, clk))

		record, err := c.Dealer(0, b)
		require.NoError(t, err)
		assert.False(t, record.Active)

		// the passed-but-unexecuted share proposal is rejected, not applied
		proposal, err = c.Proposal(shareID)
		require.NoError(t, err)
		assert.Equal(t, dkg.ProposalRejected, proposal.Status)

		shares, err := c.VKShares(0, "", 0)
		require.NoError(t, err)
		require.Len(t, shares, 5)
		for _, share := range shares {
			if share.Dealer == b {
				assert.False(t, share.Verified, "share of the deactivated dealer must not count")
			} else {
				assert.True(t, share.Verified)
			}
		}
	})
}

func TestMismatchRequiresSubmittedShare(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 3)
		a := dealers[0]

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))
		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))
		_, err := c.AdvanceEpochState()
		require.NoError(t, err)

		// only A submits a share; the phase closes on deadline
		submitShare(t, c, a)
		require.Equal(t, dkg.VerificationKeyMismatchSubmission, advance(t, c, clk))

		// reporting against a dealer with no share is rejected
		_, err = c.SubmitVKMismatch(contract.SubmitVKMismatchRequest{Sender: a, Accused: 2})
		require.Error(t, err)
	})
}

// TestVoteOrderIndependence resolves two proposals from the same ballot
// multiset cast in different orders and expects identical outcomes.
func TestVoteOrderIndependence(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 4)
		a, b := dealers[0], dealers[1]

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))

		var proposalIDs []uint64
		for _, complaint := range []contract.SubmitComplaintRequest{
			{Sender: a, Accused: 3, DealingIndex: 0},
			{Sender: b, Accused: 4, DealingIndex: 0},
		} {
			evts, err := c.SubmitComplaint(complaint)
			require.NoError(t, err)
			value, _ := events.Find(evts, events.AttrProposalID)
			id, err := strconv.ParseUint(value, 10, 64)
			require.NoError(t, err)
			proposalIDs = append(proposalIDs, id)
		}

		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))

		// same multiset {A:yes, B:yes, C:no}, two casting orders
		vote(t, c, dealers[0], proposalIDs[0], true)
		vote(t, c, dealers[1], proposalIDs[0], true)
		vote(t, c, dealers[2], proposalIDs[0], false)

		vote(t, c, dealers[2], proposalIDs[1], false)
		vote(t, c, dealers[1], proposalIDs[1], true)
		vote(t, c, dealers[0], proposalIDs[1], true)

		// neither is decided early with one voter outstanding; the deadline
		// tally resolves both
		_, err := c.AdvanceEpochState()
		require.True(t, dkg.IsPhaseNotReadyError(err))
		require.Equal(t, dkg.VerificationKeySubmission, advance(t, c, clk))

		first, err := c.Proposal(proposalIDs[0])
		require.NoError(t, err)
		second, err := c.Proposal(proposalIDs[1])
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, dkg.ProposalExecuted, first.Status)

		// replaying the effect application is an idempotent no-op
		_, err = c.ExecuteProposal(contract.ExecuteProposalRequest{Sender: a, ProposalID: proposalIDs[0]})
		assert.ErrorIs(t, err, dkg.ErrAlreadyExecuted)
	})
}

func TestReset(t *testing.T) {
	runWithContract(t, fastConfig(), func(c *contract.Contract, clk *clock.Mock) {
		dealers := registerCohort(t, c, clk, 3)

		// resetting a live epoch is not admitted
		_, err := c.Reset(nil)
		assert.True(t, dkg.IsInvalidEpochStateError(err))

		for _, dealer := range dealers {
			submitDealing(t, c, dealer)
		}
		require.Equal(t, dkg.ComplaintSubmission, advance(t, c, clk))
		require.Equal(t, dkg.ComplaintVoting, advance(t, c, clk))
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)
		for _, dealer := range dealers {
			submitShare(t, c, dealer)
		}
		_, err = c.AdvanceEpochState()
		require.NoError(t, err)
		require.Equal(t, dkg.VerificationKeyMismatchVoting, advance(t, c, clk))
		require.Equal(t, dkg.InProgress, advance(t, c, clk))

		// terminal epochs admit no further advancement
		_, err = c.AdvanceEpochState()
		require.ErrorIs(t, err, dkg.ErrTerminalState)

		next, err := c.Reset(nil)
		require.NoError(t, err)
		assert.Equal(t, dkg.EpochID(1), next.ID)
		assert.Equal(t, dkg.PublicKeySubmission, next.State)
		assert.Nil(t, next.Threshold)
		assert.ElementsMatch(t, dealers, next.InitialDealers)

		// returning dealers re-register with the resharing flag
		_, err = c.RegisterDealer(contract.RegisterDealerRequest{
			Sender:                dealers[0],
			BTEPublicKeyWithProof: []byte("bte-reused"),
			Resharing:             true,
		})
		require.NoError(t, err)

		// strangers may join, but not as resharing dealers
		_, err = c.RegisterDealer(contract.RegisterDealerRequest{
			Sender:    "stranger",
			Resharing: true,
		})
		assert.True(t, dkg.IsUnauthorizedDealerError(err))
		_, err = c.RegisterDealer(contract.RegisterDealerRequest{Sender: "stranger"})
		require.NoError(t, err)
	})
}
