package contract

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/model/events"
	"github.com/quorumsafe/dkg-coordinator/storage"
	"github.com/quorumsafe/dkg-coordinator/storage/badger/operation"
)

// AdvanceEpochState moves the epoch to the successor state iff the current
// phase's admission predicate holds. Transitions are successor-only; the
// terminal state is only exited by Reset.
//
// Leaving a phase settles it: the threshold freezes when registration
// closes, deadline-expired ballots are tallied when a voting phase closes,
// and passed proposals take effect before the next phase admits anything,
// so that a deactivated dealer can never slip an artifact into a later
// phase.
func (c *Contract) AdvanceEpochState() ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entered dkg.EpochState
	var resolvedStatuses []dkg.ProposalStatus

	err := c.db.Update(func(tx *badger.Txn) error {
		resolvedStatuses = resolvedStatuses[:0]

		var epoch dkg.Epoch
		err := operation.RetrieveEpoch(&epoch)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve epoch: %w", err)
		}

		if epoch.State.IsTerminal() {
			return dkg.ErrTerminalState
		}

		deadline := c.deadlineElapsed(&epoch)

		switch epoch.State {

		case dkg.PublicKeySubmission:
			if !deadline {
				return dkg.NewPhaseNotReadyErrorf(epoch.State, "registration window still open")
			}
			records, err := dealersForEpoch(tx, epoch.ID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return dkg.NewPhaseNotReadyErrorf(epoch.State, "no dealers registered")
			}
			threshold := dkg.ComputeThreshold(uint64(len(records)))
			epoch.Threshold = &threshold

		case dkg.DealingExchange:
			if !deadline {
				outstanding, err := c.outstandingDealings(tx, epoch.ID)
				if err != nil {
					return err
				}
				if outstanding > 0 {
					return dkg.NewPhaseNotReadyErrorf(epoch.State, "%d dealings outstanding", outstanding)
				}
			}

		case dkg.ComplaintSubmission:
			if !deadline {
				return dkg.NewPhaseNotReadyErrorf(epoch.State, "complaint window still open")
			}

		case dkg.ComplaintVoting:
			statuses, err := settleVoting(tx, &epoch, dkg.SubjectComplaint, deadline)
			if err != nil {
				return err
			}
			resolvedStatuses = append(resolvedStatuses, statuses...)
			err = applyPassedEffects(tx, epoch.ID, dkg.SubjectComplaint)
			if err != nil {
				return err
			}

		case dkg.VerificationKeySubmission:
			if !deadline {
				missing, err := c.missingShares(tx, epoch.ID)
				if err != nil {
					return err
				}
				if missing > 0 {
					return dkg.NewPhaseNotReadyErrorf(epoch.State, "%d verification key shares outstanding", missing)
				}
			}

		case dkg.VerificationKeyMismatchSubmission:
			if !deadline {
				return dkg.NewPhaseNotReadyErrorf(epoch.State, "mismatch window still open")
			}

		case dkg.VerificationKeyMismatchVoting:
			statuses, err := settleVoting(tx, &epoch, dkg.SubjectMismatch, deadline)
			if err != nil {
				return err
			}
			resolvedStatuses = append(resolvedStatuses, statuses...)
			err = applyPassedEffects(tx, epoch.ID, dkg.SubjectMismatch)
			if err != nil {
				return err
			}
			statuses, err = finalizeShareProposals(tx, epoch.ID)
			if err != nil {
				return err
			}
			resolvedStatuses = append(resolvedStatuses, statuses...)
		}

		successor, ok := epoch.State.Successor()
		if !ok {
			return dkg.ErrTerminalState
		}
		epoch.State = successor
		if !successor.IsTerminal() {
			epoch.Deadline = c.clock.Now().Add(c.cfg.PhaseDurations[successor])
		}

		err = operation.UpsertEpoch(&epoch)(tx)
		if err != nil {
			return fmt.Errorf("could not store epoch: %w", err)
		}
		entered = successor

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.EpochStateAdvanced(entered)
	for _, status := range resolvedStatuses {
		c.metrics.ProposalResolved(status)
	}
	c.log.Info().Str("state", entered.String()).Msg("epoch state advanced")

	return []events.Event{events.New(events.TypeEpochAdvanced)}, nil
}

// Reset opens a new epoch for resharing. It is only admitted from the
// terminal state; the epoch id increments and the given initial dealer set
// is recorded so returning dealers can extend the established master key.
// A nil set defaults to the dealers still active in the ending epoch.
func (c *Contract) Reset(initialDealers []dkg.Address) (*dkg.Epoch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next dkg.Epoch
	err := c.db.Update(func(tx *badger.Txn) error {

		var epoch dkg.Epoch
		err := operation.RetrieveEpoch(&epoch)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve epoch: %w", err)
		}
		if !epoch.State.IsTerminal() {
			return dkg.NewInvalidEpochStateError(epoch.State, "Reset")
		}

		initial := initialDealers
		if initial == nil {
			records, err := dealersForEpoch(tx, epoch.ID)
			if err != nil {
				return err
			}
			for _, record := range records {
				if record.Active {
					initial = append(initial, record.Address)
				}
			}
		}

		next = dkg.Epoch{
			ID:             epoch.ID + 1,
			State:          dkg.PublicKeySubmission,
			Deadline:       c.clock.Now().Add(c.cfg.PhaseDurations[dkg.PublicKeySubmission]),
			InitialDealers: initial,
		}
		return operation.UpsertEpoch(&next)(tx)
	})
	if err != nil {
		return nil, err
	}

	c.metrics.EpochStateAdvanced(dkg.PublicKeySubmission)
	c.log.Info().
		Uint64("epoch", next.ID).
		Int("initial_dealers", len(next.InitialDealers)).
		Msg("epoch reset for resharing")

	return &next, nil
}

// outstandingDealings counts the dealing slots active dealers have not yet
// filled.
func (c *Contract) outstandingDealings(tx *badger.Txn, epoch dkg.EpochID) (uint64, error) {
	records, err := dealersForEpoch(tx, epoch)
	if err != nil {
		return 0, err
	}
	var outstanding uint64
	for _, record := range records {
		if !record.Active {
			continue
		}
		var count uint64
		err := operation.CountDealingsForDealer(epoch, record.Address, &count)(tx)
		if err != nil {
			return 0, fmt.Errorf("could not count dealings of %s: %w", record.Address, err)
		}
		if count < c.cfg.DealingsPerDealer {
			outstanding += c.cfg.DealingsPerDealer - count
		}
	}
	return outstanding, nil
}

// missingShares counts the active dealers that have not submitted their
// verification key share yet.
func (c *Contract) missingShares(tx *badger.Txn, epoch dkg.EpochID) (uint64, error) {
	records, err := dealersForEpoch(tx, epoch)
	if err != nil {
		return 0, err
	}
	var missing uint64
	for _, record := range records {
		if !record.Active {
			continue
		}
		var share dkg.VKShare
		err := operation.RetrieveVKShare(epoch, record.Address, &share)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			missing++
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("could not retrieve share of %s: %w", record.Address, err)
		}
	}
	return missing, nil
}

// settleVoting enforces the voting phase's exit predicate. Before the
// deadline, every proposal of the given kind must already be resolved;
// after the deadline, the remaining open proposals are tallied from the
// ballots cast so far.
func settleVoting(tx *badger.Txn, epoch *dkg.Epoch, kind dkg.SubjectKind, deadline bool) ([]dkg.ProposalStatus, error) {

	proposals, err := epochProposals(tx, epoch.ID, kind)
	if err != nil {
		return nil, err
	}

	var open []*dkg.Proposal
	for _, proposal := range proposals {
		if proposal.Status == dkg.ProposalOpen {
			open = append(open, proposal)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	if !deadline {
		return nil, dkg.NewPhaseNotReadyErrorf(epoch.State, "%d %s proposals still open", len(open), kind)
	}

	eligible, err := countActiveDealers(tx, epoch.ID)
	if err != nil {
		return nil, err
	}

	statuses := make([]dkg.ProposalStatus, 0, len(open))
	for _, proposal := range open {
		tally(proposal, eligible)
		err = operation.UpdateProposal(proposal)(tx)
		if err != nil {
			return nil, fmt.Errorf("could not update proposal %d: %w", proposal.ID, err)
		}
		statuses = append(statuses, proposal.Status)
	}
	return statuses, nil
}

// applyPassedEffects executes every passed proposal of the given kind. This
// runs at the exit of the kind's voting phase, so the invariant holds that a
// dealer targeted by a passed proposal is deactivated before the next phase
// admits anything.
func applyPassedEffects(tx *badger.Txn, epoch dkg.EpochID, kind dkg.SubjectKind) error {
	proposals, err := epochProposals(tx, epoch, kind)
	if err != nil {
		return err
	}
	for _, proposal := range proposals {
		if proposal.Status != dkg.ProposalPassed {
			continue
		}
		err = applyEffect(tx, proposal)
		if err != nil {
			return err
		}
	}
	return nil
}

// finalizeShareProposals resolves the verification key share proposals at
// InProgress entry. A share counts only if its dealer is still active here:
// an uncontested share of a still-active dealer passes by default and is
// marked verified, while shares of deactivated dealers are rejected, even
// when their proposal passed by explicit ballots. Passed proposals that
// nobody executed take effect now.
func finalizeShareProposals(tx *badger.Txn, epoch dkg.EpochID) ([]dkg.ProposalStatus, error) {

	proposals, err := epochProposals(tx, epoch, dkg.SubjectVKShare)
	if err != nil {
		return nil, err
	}

	var statuses []dkg.ProposalStatus
	for _, proposal := range proposals {

		var record dkg.DealerRecord
		switch proposal.Status {
		case dkg.ProposalOpen, dkg.ProposalPassed:
			err := operation.RetrieveDealerRecord(epoch, proposal.Subject, &record)(tx)
			if err != nil {
				return nil, fmt.Errorf("could not retrieve dealer %s: %w", proposal.Subject, err)
			}
		default:
			continue
		}

		switch proposal.Status {
		case dkg.ProposalOpen:
			if record.Active {
				proposal.Status = dkg.ProposalPassed
			} else {
				proposal.Status = dkg.ProposalRejected
			}
			statuses = append(statuses, proposal.Status)

		case dkg.ProposalPassed:
			// passed by explicit ballots but never executed; a dealer
			// deactivated by a mismatch in the same phase forfeits the pass
			if !record.Active {
				proposal.Status = dkg.ProposalRejected
			}
		}

		if proposal.Status == dkg.ProposalPassed {
			err = applyEffect(tx, proposal)
			if err != nil {
				return nil, err
			}
			continue
		}
		err = operation.UpdateProposal(proposal)(tx)
		if err != nil {
			return nil, fmt.Errorf("could not update proposal %d: %w", proposal.ID, err)
		}
	}
	return statuses, nil
}

// epochProposals collects the proposals of one kind for one epoch.
func epochProposals(tx *badger.Txn, epoch dkg.EpochID, kind dkg.SubjectKind) ([]*dkg.Proposal, error) {
	var all []*dkg.Proposal
	err := operation.ProposalsList(0, 0, &all)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not list proposals: %w", err)
	}
	var matching []*dkg.Proposal
	for _, proposal := range all {
		if proposal.Epoch == epoch && proposal.Kind == kind {
			matching = append(matching, proposal)
		}
	}
	return matching, nil
}
