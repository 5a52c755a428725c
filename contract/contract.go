// Package contract implements the DKG coordinator contract: the epoch
// lifecycle controller, the dealer registry, the dealing ledger, the
// complaint book, the verification key registry, and the dispute resolver
// shared by both voting phases.
//
// The contract executes strictly serially: every entry point takes the
// contract mutex and runs as one atomic badger transaction, so each admitted
// operation observes a consistent snapshot and commits entirely or not at
// all. There is no concurrency within the contract.
package contract

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/module"
	"github.com/quorumsafe/dkg-coordinator/storage"
	"github.com/quorumsafe/dkg-coordinator/storage/badger/operation"
)

// Config holds the deployment parameters. The dealing count and the phase
// durations are authoritative here and fixed for the lifetime of the
// contract.
type Config struct {
	// DealingsPerDealer is D, the number of dealing indices each dealer
	// fills per epoch.
	DealingsPerDealer uint64

	// PhaseDurations assigns each phase its deadline window. The InProgress
	// entry is ignored; the terminal state has no deadline.
	PhaseDurations map[dkg.EpochState]time.Duration
}

// DefaultConfig returns the parameters used when the deployment provides
// none.
func DefaultConfig() Config {
	return Config{
		DealingsPerDealer: 1,
		PhaseDurations: map[dkg.EpochState]time.Duration{
			dkg.PublicKeySubmission:               time.Hour,
			dkg.DealingExchange:                   time.Hour,
			dkg.ComplaintSubmission:               30 * time.Minute,
			dkg.ComplaintVoting:                   30 * time.Minute,
			dkg.VerificationKeySubmission:         time.Hour,
			dkg.VerificationKeyMismatchSubmission: 30 * time.Minute,
			dkg.VerificationKeyMismatchVoting:     30 * time.Minute,
		},
	}
}

// Contract is the coordinator state machine. All state lives in the badger
// database; the struct itself only carries collaborators.
type Contract struct {
	mu       sync.Mutex
	log      zerolog.Logger
	db       *badger.DB
	clock    clock.Clock
	verifier module.KeyProofVerifier
	metrics  module.CoordinatorMetrics
	cfg      Config
}

// New opens the contract over the given database, bootstrapping epoch 0 in
// PublicKeySubmission if no epoch record exists yet.
func New(
	log zerolog.Logger,
	db *badger.DB,
	clk clock.Clock,
	verifier module.KeyProofVerifier,
	metrics module.CoordinatorMetrics,
	cfg Config,
) (*Contract, error) {

	if cfg.DealingsPerDealer == 0 {
		return nil, fmt.Errorf("dealings per dealer must be positive")
	}

	c := &Contract{
		log:      log.With().Str("component", "dkg_contract").Logger(),
		db:       db,
		clock:    clk,
		verifier: verifier,
		metrics:  metrics,
		cfg:      cfg,
	}

	err := db.Update(func(tx *badger.Txn) error {
		var epoch dkg.Epoch
		err := operation.RetrieveEpoch(&epoch)(tx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not check epoch: %w", err)
		}

		genesis := dkg.Epoch{
			ID:       0,
			State:    dkg.PublicKeySubmission,
			Deadline: clk.Now().Add(cfg.PhaseDurations[dkg.PublicKeySubmission]),
		}
		return operation.InsertEpoch(&genesis)(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("could not bootstrap epoch: %w", err)
	}

	return c, nil
}

// State returns the deployment parameters.
func (c *Contract) State() *dkg.ContractState {
	durations := make(map[dkg.EpochState]time.Duration, len(c.cfg.PhaseDurations))
	for state, duration := range c.cfg.PhaseDurations {
		durations[state] = duration
	}
	return &dkg.ContractState{
		DealingsPerDealer: c.cfg.DealingsPerDealer,
		PhaseDurations:    durations,
	}
}

// requireState loads the epoch and checks that the current phase admits the
// named operation.
func requireState(tx *badger.Txn, required dkg.EpochState, operationName string) (*dkg.Epoch, error) {
	var epoch dkg.Epoch
	err := operation.RetrieveEpoch(&epoch)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve epoch: %w", err)
	}
	if epoch.State != required {
		return nil, dkg.NewInvalidEpochStateError(epoch.State, operationName)
	}
	return &epoch, nil
}

// activeDealer loads the sender's dealer record and checks the active flag.
func activeDealer(tx *badger.Txn, epoch dkg.EpochID, address dkg.Address) (*dkg.DealerRecord, error) {
	var record dkg.DealerRecord
	err := operation.RetrieveDealerRecord(epoch, address, &record)(tx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, dkg.NewUnauthorizedDealerErrorf("%s is not a registered dealer", address)
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve dealer record: %w", err)
	}
	if !record.Active {
		return nil, dkg.NewUnauthorizedDealerErrorf("dealer %s has been deactivated", address)
	}
	return &record, nil
}

// dealersForEpoch loads all dealer records of the epoch in node index order.
func dealersForEpoch(tx *badger.Txn, epoch dkg.EpochID) ([]*dkg.DealerRecord, error) {
	var records []*dkg.DealerRecord
	err := operation.DealersForEpoch(epoch, 0, 0, &records)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not list dealers: %w", err)
	}
	return records, nil
}

// nextProposalID allocates the next proposal id inside the transaction.
func nextProposalID(tx *badger.Txn) (uint64, error) {
	var counter uint64
	err := operation.RetrieveProposalCounter(&counter)(tx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("could not retrieve proposal counter: %w", err)
	}
	counter++
	err = operation.UpsertProposalCounter(counter)(tx)
	if err != nil {
		return 0, fmt.Errorf("could not store proposal counter: %w", err)
	}
	return counter, nil
}

// openProposal stores a new open proposal and returns it.
func openProposal(tx *badger.Txn, epoch dkg.EpochID, kind dkg.SubjectKind, subject dkg.Address) (*dkg.Proposal, error) {
	id, err := nextProposalID(tx)
	if err != nil {
		return nil, err
	}
	proposal := &dkg.Proposal{
		ID:      id,
		Epoch:   epoch,
		Kind:    kind,
		Subject: subject,
		Status:  dkg.ProposalOpen,
		Votes:   make(map[dkg.Address]bool),
	}
	err = operation.InsertProposal(proposal)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not store proposal: %w", err)
	}
	return proposal, nil
}

// deadlineElapsed reports whether the epoch's phase deadline has passed.
func (c *Contract) deadlineElapsed(epoch *dkg.Epoch) bool {
	return !c.clock.Now().Before(epoch.Deadline)
}
