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

// SubmitVKShareRequest is the command message for submitting a partial
// verification key.
type SubmitVKShareRequest struct {
	Sender dkg.Address
	Share  []byte

	// Resharing marks a share that extends the previous epoch's master key.
	Resharing bool
}

// SubmitVerificationKeyShare records a dealer's partial verification key
// during VerificationKeySubmission and opens its verification proposal. The
// share is counted toward the master key only once the proposal passes and
// the dealer is still active at InProgress entry.
func (c *Contract) SubmitVerificationKeyShare(req SubmitVKShareRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var proposalID uint64
	err := c.db.Update(func(tx *badger.Txn) error {

		epoch, err := requireState(tx, dkg.VerificationKeySubmission, "SubmitVerificationKeyShare")
		if err != nil {
			return err
		}

		if req.Resharing && !containsAddress(epoch.InitialDealers, req.Sender) {
			return dkg.NewUnauthorizedDealerErrorf("%s is not in the initial dealer set", req.Sender)
		}

		dealer, err := activeDealer(tx, epoch.ID, req.Sender)
		if err != nil {
			return err
		}

		proposal, err := openProposal(tx, epoch.ID, dkg.SubjectVKShare, req.Sender)
		if err != nil {
			return err
		}
		proposalID = proposal.ID

		share := dkg.VKShare{
			Epoch:      epoch.ID,
			Dealer:     req.Sender,
			Index:      dealer.Index,
			Share:      req.Share,
			Verified:   false,
			ProposalID: proposal.ID,
		}
		err = operation.InsertVKShare(&share)(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return dkg.NewAlreadySubmittedErrorf("dealer %s already submitted a verification key share", req.Sender)
		}
		if err != nil {
			return fmt.Errorf("could not store verification key share: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.ProposalOpened(dkg.SubjectVKShare)
	c.log.Info().
		Str("dealer", string(req.Sender)).
		Uint64("proposal_id", proposalID).
		Bool("resharing", req.Resharing).
		Msg("verification key share submitted")

	evt := events.New(events.TypeVKShareSubmitted).
		With(events.AttrProposalID, strconv.FormatUint(proposalID, 10))
	return []events.Event{evt}, nil
}

// SubmitVKMismatchRequest is the command message for reporting that a
// submitted share disagrees with the reporter's local derivation.
type SubmitVKMismatchRequest struct {
	Sender      dkg.Address
	Accused     dkg.NodeIndex
	LocalDigest []byte
}

// SubmitVKMismatch records a mismatch report during
// VerificationKeyMismatchSubmission and opens the proposal that will decide
// it. One report is admitted per (reporter, accused).
func (c *Contract) SubmitVKMismatch(req SubmitVKMismatchRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var proposalID uint64
	err := c.db.Update(func(tx *badger.Txn) error {

		epoch, err := requireState(tx, dkg.VerificationKeyMismatchSubmission, "SubmitVKMismatch")
		if err != nil {
			return err
		}

		reporter, err := activeDealer(tx, epoch.ID, req.Sender)
		if err != nil {
			return err
		}

		var accusedAddress dkg.Address
		err = operation.LookupDealerAddress(epoch.ID, req.Accused, &accusedAddress)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return dkg.NewUnauthorizedDealerErrorf("accused node index %d is not a registered dealer", req.Accused)
		}
		if err != nil {
			return fmt.Errorf("could not look up accused dealer: %w", err)
		}

		var accusedShare dkg.VKShare
		err = operation.RetrieveVKShare(epoch.ID, accusedAddress, &accusedShare)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("accused dealer %s has no submitted share", accusedAddress)
		}
		if err != nil {
			return fmt.Errorf("could not retrieve accused share: %w", err)
		}

		proposal, err := openProposal(tx, epoch.ID, dkg.SubjectMismatch, accusedAddress)
		if err != nil {
			return err
		}
		proposalID = proposal.ID

		report := dkg.MismatchReport{
			Epoch:       epoch.ID,
			Reporter:    reporter.Index,
			Accused:     req.Accused,
			LocalDigest: req.LocalDigest,
			ProposalID:  proposal.ID,
		}
		err = operation.InsertMismatchReport(&report)(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return dkg.NewAlreadySubmittedErrorf("mismatch by %d against %d already reported", reporter.Index, req.Accused)
		}
		if err != nil {
			return fmt.Errorf("could not store mismatch report: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.ProposalOpened(dkg.SubjectMismatch)
	c.log.Info().
		Str("reporter", string(req.Sender)).
		Uint64("accused", req.Accused).
		Uint64("proposal_id", proposalID).
		Msg("verification key mismatch reported")

	evt := events.New(events.TypeMismatchSubmitted).
		With(events.AttrProposalID, strconv.FormatUint(proposalID, 10))
	return []events.Event{evt}, nil
}
