package contract

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/model/events"
	"github.com/quorumsafe/dkg-coordinator/storage"
	"github.com/quorumsafe/dkg-coordinator/storage/badger/operation"
)

// votingPhaseFor maps a proposal subject kind to the phase in which its
// ballots are admitted. Verification key proposals share the mismatch voting
// phase: a share that attracted no explicit ballots is resolved by default
// at InProgress entry.
func votingPhaseFor(kind dkg.SubjectKind) dkg.EpochState {
	if kind == dkg.SubjectComplaint {
		return dkg.ComplaintVoting
	}
	return dkg.VerificationKeyMismatchVoting
}

// VoteProposalRequest is the command message for casting a ballot.
type VoteProposalRequest struct {
	Sender     dkg.Address
	ProposalID uint64
	Yes        bool
}

// VoteProposal casts one ballot on an open proposal. Eligible voters are the
// active dealers of the proposal's epoch; every vote weighs 1. The proposal
// closes early as soon as the undecided voters can no longer change the
// outcome.
func (c *Contract) VoteProposal(req VoteProposalRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resolved *dkg.Proposal
	err := c.db.Update(func(tx *badger.Txn) error {

		var epoch dkg.Epoch
		err := operation.RetrieveEpoch(&epoch)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve epoch: %w", err)
		}

		var proposal dkg.Proposal
		err = operation.RetrieveProposal(req.ProposalID, &proposal)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("unknown proposal %d: %w", req.ProposalID, err)
		}
		if err != nil {
			return fmt.Errorf("could not retrieve proposal: %w", err)
		}

		if proposal.Epoch != epoch.ID {
			return dkg.NewInvalidEpochStateError(epoch.State, "VoteProposal")
		}
		if epoch.State != votingPhaseFor(proposal.Kind) {
			return dkg.NewInvalidEpochStateError(epoch.State, "VoteProposal")
		}
		if proposal.Status != dkg.ProposalOpen {
			return dkg.NewAlreadySubmittedErrorf("proposal %d is already resolved (%s)", proposal.ID, proposal.Status)
		}

		_, err = activeDealer(tx, epoch.ID, req.Sender)
		if err != nil {
			return err
		}

		if _, voted := proposal.Votes[req.Sender]; voted {
			return dkg.NewAlreadySubmittedErrorf("dealer %s already voted on proposal %d", req.Sender, proposal.ID)
		}
		proposal.Votes[req.Sender] = req.Yes

		eligible, err := countActiveDealers(tx, epoch.ID)
		if err != nil {
			return err
		}
		closed := maybeCloseEarly(&proposal, eligible)
		if closed {
			resolved = &proposal
		}

		err = operation.UpdateProposal(&proposal)(tx)
		if err != nil {
			return fmt.Errorf("could not update proposal: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if resolved != nil {
		c.metrics.ProposalResolved(resolved.Status)
		c.log.Info().
			Uint64("proposal_id", resolved.ID).
			Str("status", resolved.Status.String()).
			Msg("proposal resolved early")
	}

	evt := events.New(events.TypeProposalVoted).
		With(events.AttrProposalID, strconv.FormatUint(req.ProposalID, 10))
	return []events.Event{evt}, nil
}

// ExecuteProposalRequest is the command message for applying a passed
// proposal's effect.
type ExecuteProposalRequest struct {
	Sender     dkg.Address
	ProposalID uint64
}

// ExecuteProposal transitions a passed proposal into effect exactly once.
// Replays return dkg.ErrAlreadyExecuted so agents can treat them as
// idempotent successes.
func (c *Contract) ExecuteProposal(req ExecuteProposalRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *badger.Txn) error {

		var proposal dkg.Proposal
		err := operation.RetrieveProposal(req.ProposalID, &proposal)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("unknown proposal %d: %w", req.ProposalID, err)
		}
		if err != nil {
			return fmt.Errorf("could not retrieve proposal: %w", err)
		}

		switch proposal.Status {
		case dkg.ProposalExecuted:
			return dkg.ErrAlreadyExecuted
		case dkg.ProposalPassed:
			// fall through to effect application
		default:
			return fmt.Errorf("proposal %d is not passed (status %s)", proposal.ID, proposal.Status)
		}

		return applyEffect(tx, &proposal)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().Uint64("proposal_id", req.ProposalID).Msg("proposal executed")

	evt := events.New(events.TypeProposalExecuted).
		With(events.AttrProposalID, strconv.FormatUint(req.ProposalID, 10))
	return []events.Event{evt}, nil
}

// countActiveDealers returns the number of eligible voters for the epoch.
func countActiveDealers(tx *badger.Txn, epoch dkg.EpochID) (uint64, error) {
	records, err := dealersForEpoch(tx, epoch)
	if err != nil {
		return 0, err
	}
	var active uint64
	for _, record := range records {
		if record.Active {
			active++
		}
	}
	return active, nil
}

// maybeCloseEarly resolves the proposal if every eligible voter has voted,
// or if the undecided voters can no longer change the outcome. It returns
// true when the proposal left the Open status.
func maybeCloseEarly(proposal *dkg.Proposal, eligible uint64) bool {
	yes := proposal.YesWeight()
	no := proposal.NoWeight()
	cast := yes + no

	var remaining uint64
	if eligible > cast {
		remaining = eligible - cast
	}

	switch {
	case remaining == 0:
		tally(proposal, eligible)
		return true
	case yes > no+remaining:
		// guaranteed strict majority; the yes votes alone exceed half the
		// electorate, so quorum is met as well
		proposal.Status = dkg.ProposalPassed
		return true
	case no >= yes+remaining:
		// even a unanimous remainder cannot produce strictly more yes votes
		proposal.Status = dkg.ProposalRejected
		return true
	default:
		return false
	}
}

// tally resolves a proposal from its final ballot multiset: quorum of
// ceil(n/2) cast votes and strictly more yes than no. An exact tie rejects;
// the accuser bears the burden of proof.
func tally(proposal *dkg.Proposal, eligible uint64) {
	yes := proposal.YesWeight()
	no := proposal.NoWeight()
	quorum := (eligible + 1) / 2

	if yes+no >= quorum && yes > no {
		proposal.Status = dkg.ProposalPassed
	} else {
		proposal.Status = dkg.ProposalRejected
	}
}

// applyEffect dispatches the execution effect over the proposal's subject
// kind and marks the proposal executed. Effects are the only mutations that
// toggle the active/verified flags after their owning phase closed.
func applyEffect(tx *badger.Txn, proposal *dkg.Proposal) error {

	switch proposal.Kind {

	case dkg.SubjectComplaint:
		err := deactivateDealer(tx, proposal.Epoch, proposal.Subject)
		if err != nil {
			return err
		}

	case dkg.SubjectMismatch:
		err := deactivateDealer(tx, proposal.Epoch, proposal.Subject)
		if err != nil {
			return err
		}
		err = setShareVerified(tx, proposal.Epoch, proposal.Subject, false)
		if err != nil {
			return err
		}

	case dkg.SubjectVKShare:
		err := setShareVerified(tx, proposal.Epoch, proposal.Subject, true)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown proposal subject kind (%d)", proposal.Kind)
	}

	proposal.Status = dkg.ProposalExecuted
	err := operation.UpdateProposal(proposal)(tx)
	if err != nil {
		return fmt.Errorf("could not update proposal: %w", err)
	}
	return nil
}

// deactivateDealer clears the active flag. It is idempotent: a dealer
// already deactivated by an earlier proposal stays deactivated.
func deactivateDealer(tx *badger.Txn, epoch dkg.EpochID, address dkg.Address) error {
	var record dkg.DealerRecord
	err := operation.RetrieveDealerRecord(epoch, address, &record)(tx)
	if err != nil {
		return fmt.Errorf("could not retrieve dealer %s: %w", address, err)
	}
	if !record.Active {
		return nil
	}
	record.Active = false
	err = operation.UpdateDealerRecord(epoch, &record)(tx)
	if err != nil {
		return fmt.Errorf("could not deactivate dealer %s: %w", address, err)
	}
	return nil
}

// setShareVerified toggles the verified flag on the dealer's share. A dealer
// deactivated before submitting any share has nothing to toggle.
func setShareVerified(tx *badger.Txn, epoch dkg.EpochID, dealer dkg.Address, verified bool) error {
	var share dkg.VKShare
	err := operation.RetrieveVKShare(epoch, dealer, &share)(tx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not retrieve share of %s: %w", dealer, err)
	}
	if share.Verified == verified {
		return nil
	}
	share.Verified = verified
	err = operation.UpdateVKShare(&share)(tx)
	if err != nil {
		return fmt.Errorf("could not update share of %s: %w", dealer, err)
	}
	return nil
}
