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

// RegisterDealerRequest is the command message for dealer registration.
type RegisterDealerRequest struct {
	Sender                dkg.Address
	BTEPublicKeyWithProof []byte
	IdentityKey           []byte
	AnnounceAddress       string

	// Resharing marks a returning dealer re-proving its key material in an
	// epoch opened by reset. Only members of the epoch's initial dealer set
	// may register with this flag.
	Resharing bool
}

// RegisterDealer admits a dealer during PublicKeySubmission. Node indices
// are allocated strictly monotonically in registration order, starting at 1;
// the allocation is deterministic given the sequence of successful
// registrations because the counter lives in the same transaction.
func (c *Contract) RegisterDealer(req RegisterDealerRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var index dkg.NodeIndex
	err := c.db.Update(func(tx *badger.Txn) error {

		epoch, err := requireState(tx, dkg.PublicKeySubmission, "RegisterDealer")
		if err != nil {
			return err
		}

		if req.Resharing && !containsAddress(epoch.InitialDealers, req.Sender) {
			return dkg.NewUnauthorizedDealerErrorf("%s is not in the initial dealer set", req.Sender)
		}

		err = c.verifier.VerifyKeyProof(req.BTEPublicKeyWithProof)
		if err != nil {
			return dkg.NewInvalidProofErrorf("BTE key proof rejected: %w", err)
		}

		var counter uint64
		err = operation.RetrieveNodeIndexCounter(epoch.ID, &counter)(tx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not retrieve node index counter: %w", err)
		}
		index = counter + 1

		record := dkg.DealerRecord{
			Index:                 index,
			Address:               req.Sender,
			BTEPublicKeyWithProof: req.BTEPublicKeyWithProof,
			IdentityKey:           req.IdentityKey,
			AnnounceAddress:       req.AnnounceAddress,
			RegisteredAt:          epoch.ID,
			Active:                true,
		}

		err = operation.InsertDealerRecord(epoch.ID, &record)(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return dkg.NewDuplicateRegistrationError(req.Sender)
		}
		if err != nil {
			return fmt.Errorf("could not store dealer record: %w", err)
		}

		err = operation.IndexDealerAddress(epoch.ID, index, req.Sender)(tx)
		if err != nil {
			return fmt.Errorf("could not index dealer address: %w", err)
		}

		err = operation.UpsertNodeIndexCounter(epoch.ID, index)(tx)
		if err != nil {
			return fmt.Errorf("could not store node index counter: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.DealerRegistered()
	c.log.Info().
		Str("dealer", string(req.Sender)).
		Uint64("node_index", index).
		Bool("resharing", req.Resharing).
		Msg("dealer registered")

	evt := events.New(events.TypeDealerRegistered).
		With(events.AttrNodeIndex, strconv.FormatUint(index, 10))
	return []events.Event{evt}, nil
}

// SubmitDealingRequest is the command message for committing a dealing.
type SubmitDealingRequest struct {
	Sender     dkg.Address
	Index      dkg.DealingIndex
	Commitment []byte
}

// SubmitDealing records a dealing during DealingExchange. At most one
// dealing is admitted per (epoch, dealer, index); the commitment bytes are
// opaque and verified off-chain.
func (c *Contract) SubmitDealing(req SubmitDealingRequest) ([]events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Update(func(tx *badger.Txn) error {

		epoch, err := requireState(tx, dkg.DealingExchange, "SubmitDealing")
		if err != nil {
			return err
		}

		_, err = activeDealer(tx, epoch.ID, req.Sender)
		if err != nil {
			return err
		}

		if req.Index >= c.cfg.DealingsPerDealer {
			return dkg.NewIndexOutOfBoundsError(req.Index, c.cfg.DealingsPerDealer)
		}

		dealing := dkg.Dealing{
			Epoch:      epoch.ID,
			Dealer:     req.Sender,
			Index:      req.Index,
			Commitment: req.Commitment,
		}
		err = operation.InsertDealing(&dealing)(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return dkg.NewAlreadySubmittedErrorf("dealing %d of dealer %s already committed", req.Index, req.Sender)
		}
		if err != nil {
			return fmt.Errorf("could not store dealing: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.DealingSubmitted()
	c.log.Info().
		Str("dealer", string(req.Sender)).
		Uint64("dealing_index", req.Index).
		Msg("dealing committed")

	return []events.Event{events.New(events.TypeDealingSubmitted)}, nil
}

func containsAddress(addresses []dkg.Address, address dkg.Address) bool {
	for _, candidate := range addresses {
		if candidate == address {
			return true
		}
	}
	return false
}
