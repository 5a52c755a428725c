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

// SubmitComplaintRequest is the command message for filing evidence against
// a dealer's dealing.
type SubmitComplaintRequest struct {
	Sender       dkg.Address
	Accused      dkg.NodeIndex
	DealingIndex dkg.DealingIndex
	Evidence     []byte
}

// SubmitComplaint records a complaint during ComplaintSubmission and opens
// the proposal that will decide it. One complaint is admitted per
// (complainant, accused, dealing index).
func (c *Contract) SubmitComplaint(req SubmitComplaintRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var proposalID uint64
	err := c.db.Update(func(tx *badger.Txn) error {

		epoch, err := requireState(tx, dkg.ComplaintSubmission, "SubmitComplaint")
		if err != nil {
			return err
		}

		complainant, err := activeDealer(tx, epoch.ID, req.Sender)
		if err != nil {
			return err
		}

		if req.DealingIndex >= c.cfg.DealingsPerDealer {
			return dkg.NewIndexOutOfBoundsError(req.DealingIndex, c.cfg.DealingsPerDealer)
		}

		var accusedAddress dkg.Address
		err = operation.LookupDealerAddress(epoch.ID, req.Accused, &accusedAddress)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return dkg.NewUnauthorizedDealerErrorf("accused node index %d is not a registered dealer", req.Accused)
		}
		if err != nil {
			return fmt.Errorf("could not look up accused dealer: %w", err)
		}

		proposal, err := openProposal(tx, epoch.ID, dkg.SubjectComplaint, accusedAddress)
		if err != nil {
			return err
		}
		proposalID = proposal.ID

		complaint := dkg.Complaint{
			Epoch:        epoch.ID,
			Complainant:  complainant.Index,
			Accused:      req.Accused,
			DealingIndex: req.DealingIndex,
			Evidence:     req.Evidence,
			ProposalID:   proposal.ID,
		}
		err = operation.InsertComplaint(&complaint)(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return dkg.NewAlreadySubmittedErrorf("complaint by %d against %d for dealing %d already filed",
				complainant.Index, req.Accused, req.DealingIndex)
		}
		if err != nil {
			return fmt.Errorf("could not store complaint: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.ProposalOpened(dkg.SubjectComplaint)
	c.log.Info().
		Str("complainant", string(req.Sender)).
		Uint64("accused", req.Accused).
		Uint64("proposal_id", proposalID).
		Msg("complaint filed")

	evt := events.New(events.TypeComplaintSubmitted).
		With(events.AttrProposalID, strconv.FormatUint(proposalID, 10))
	return []events.Event{evt}, nil
}
