package module

import (
	"context"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// ContractClient enables interacting with the DKG coordinator contract. The
// contract drives a cohort of mutually distrustful dealers through the epoch
// lifecycle; the client is the only path through which an agent reads or
// mutates that shared state.
//
// All methods take a context because they cross the chain boundary; local
// implementations simply honour cancellation.
type ContractClient interface {

	// RegisterDealer submits a registration during PublicKeySubmission and
	// returns the node index recovered from the emitted event attribute.
	// Error returns: dkg.InvalidEpochStateError, dkg.DuplicateRegistrationError,
	// dkg.InvalidProofError, dkg.NodeIndexRecoveryError.
	RegisterDealer(ctx context.Context, bteKeyWithProof []byte, identityKey []byte, announceAddress string, resharing bool) (dkg.NodeIndex, error)

	// SubmitDealing commits one dealing during DealingExchange.
	// Error returns: dkg.InvalidEpochStateError, dkg.UnauthorizedDealerError,
	// dkg.AlreadySubmittedError, dkg.IndexOutOfBoundsError.
	SubmitDealing(ctx context.Context, index dkg.DealingIndex, commitment []byte) error

	// SubmitComplaint files evidence against a dealer's dealing during
	// ComplaintSubmission and returns the id of the opened proposal.
	SubmitComplaint(ctx context.Context, accused dkg.NodeIndex, index dkg.DealingIndex, evidence []byte) (uint64, error)

	// VoteProposal casts this dealer's ballot on an open proposal.
	VoteProposal(ctx context.Context, proposalID uint64, yes bool) error

	// ExecuteProposal applies the effect of a passed proposal exactly once.
	// Error returns: dkg.ErrAlreadyExecuted on replay.
	ExecuteProposal(ctx context.Context, proposalID uint64) error

	// SubmitVerificationKeyShare submits this dealer's partial verification
	// key during VerificationKeySubmission and returns the id of the opened
	// verification proposal.
	SubmitVerificationKeyShare(ctx context.Context, share []byte, resharing bool) (uint64, error)

	// SubmitVKMismatch reports that the accused dealer's share disagrees
	// with the caller's local derivation, and returns the id of the opened
	// proposal.
	SubmitVKMismatch(ctx context.Context, accused dkg.NodeIndex, localDigest []byte) (uint64, error)

	// AdvanceEpochState requests a phase transition. It succeeds iff the
	// current phase's admission predicate holds.
	// Error returns: dkg.PhaseNotReadyError, dkg.ErrTerminalState.
	AdvanceEpochState(ctx context.Context) error

	// CurrentEpoch returns the epoch singleton: id, state, deadline,
	// threshold once known, and the initial dealer set for resharing epochs.
	CurrentEpoch(ctx context.Context) (*dkg.Epoch, error)

	// ContractState returns the deployment parameters of the contract.
	ContractState(ctx context.Context) (*dkg.ContractState, error)

	// CurrentThreshold returns the epoch threshold, or nil before it froze.
	CurrentThreshold(ctx context.Context) (*uint64, error)

	// InitialDealers returns the resharing dealer set, empty for a fresh
	// epoch.
	InitialDealers(ctx context.Context) ([]dkg.Address, error)

	// SelfDealer returns this agent's dealer record for the current epoch,
	// or nil when the agent has not registered.
	SelfDealer(ctx context.Context) (*dkg.DealerRecord, error)

	// Dealers returns all dealer records of the current epoch in node index
	// order.
	Dealers(ctx context.Context) ([]*dkg.DealerRecord, error)

	// DealersAt returns the dealer records of the given epoch. Resharing
	// dealers use it to recover the prior epoch's coordinates.
	DealersAt(ctx context.Context, epoch dkg.EpochID) ([]*dkg.DealerRecord, error)

	// DealingStatus reports whether the dealer committed the given dealing.
	DealingStatus(ctx context.Context, epoch dkg.EpochID, dealer dkg.Address, index dkg.DealingIndex) (bool, error)

	// Dealings returns all dealings committed by the dealer in the epoch.
	Dealings(ctx context.Context, epoch dkg.EpochID, dealer dkg.Address) ([]*dkg.Dealing, error)

	// VKShare returns the share submitted by the dealer, or nil when absent.
	VKShare(ctx context.Context, epoch dkg.EpochID, dealer dkg.Address) (*dkg.VKShare, error)

	// VKShares returns all shares submitted in the epoch.
	VKShares(ctx context.Context, epoch dkg.EpochID) ([]*dkg.VKShare, error)

	// Proposal returns the proposal with the given id.
	Proposal(ctx context.Context, proposalID uint64) (*dkg.Proposal, error)

	// Proposals returns all proposals in id order.
	Proposals(ctx context.Context) ([]*dkg.Proposal, error)
}
