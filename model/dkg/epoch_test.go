package dkg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// TestEpochStateOrder checks that the states form a total order traversed
// only through immediate successors and ending in the terminal state.
func TestEpochStateOrder(t *testing.T) {
	order := []dkg.EpochState{
		dkg.PublicKeySubmission,
		dkg.DealingExchange,
		dkg.ComplaintSubmission,
		dkg.ComplaintVoting,
		dkg.VerificationKeySubmission,
		dkg.VerificationKeyMismatchSubmission,
		dkg.VerificationKeyMismatchVoting,
		dkg.InProgress,
	}

	for i := 0; i < len(order)-1; i++ {
		next, ok := order[i].Successor()
		require.True(t, ok, "state %s should have a successor", order[i])
		assert.Equal(t, order[i+1], next)
		assert.False(t, order[i].IsTerminal())
	}

	_, ok := dkg.InProgress.Successor()
	assert.False(t, ok)
	assert.True(t, dkg.InProgress.IsTerminal())
}

func TestComputeThreshold(t *testing.T) {
	cases := []struct {
		n uint64
		t uint64
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{6, 5},
		{7, 5},
		{10, 7},
		{100, 67},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.t, dkg.ComputeThreshold(tc.n), "n=%d", tc.n)
	}
}

func TestErrorMatching(t *testing.T) {
	t.Run("typed errors match through wrapping", func(t *testing.T) {
		err := dkg.NewInvalidEpochStateError(dkg.ComplaintVoting, "SubmitDealing")
		assert.True(t, dkg.IsInvalidEpochStateError(err))
		assert.False(t, dkg.IsPhaseNotReadyError(err))

		err = dkg.NewPhaseNotReadyErrorf(dkg.DealingExchange, "%d dealings outstanding", 3)
		assert.True(t, dkg.IsPhaseNotReadyError(err))

		err = dkg.NewAlreadySubmittedErrorf("dealing %d already committed", 0)
		assert.True(t, dkg.IsAlreadySubmittedError(err))

		err = dkg.NewUnauthorizedDealerErrorf("not registered")
		assert.True(t, dkg.IsUnauthorizedDealerError(err))

		err = dkg.NewInvalidProofErrorf("proof rejected")
		assert.True(t, dkg.IsInvalidProofError(err))

		err = dkg.NewIndexOutOfBoundsError(5, 3)
		assert.True(t, dkg.IsIndexOutOfBoundsError(err))

		err = dkg.NewNodeIndexRecoveryError("missing attribute")
		assert.True(t, dkg.IsNodeIndexRecoveryError(err))
	})

	t.Run("distinct types do not cross-match", func(t *testing.T) {
		err := dkg.NewDuplicateRegistrationError("dealer-001")
		assert.True(t, dkg.IsDuplicateRegistrationError(err))
		assert.False(t, dkg.IsAlreadySubmittedError(err))
		assert.False(t, dkg.IsUnauthorizedDealerError(err))
	})
}

func TestProposalWeights(t *testing.T) {
	proposal := &dkg.Proposal{
		Votes: map[dkg.Address]bool{
			"a": true,
			"b": true,
			"c": false,
		},
	}
	assert.Equal(t, uint64(2), proposal.YesWeight())
	assert.Equal(t, uint64(1), proposal.NoWeight())
}
