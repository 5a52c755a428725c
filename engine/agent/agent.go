// Package agent implements the per-node driver of the key generation
// protocol. The agent observes the coordinator contract once per tick,
// feeds the observation through a pure decision function, and executes at
// most one action: off-chain crypto runs on a worker pool and is joined
// back into the loop before anything is submitted, so there is never more
// than one in-flight chain operation per agent.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/module"
	"github.com/quorumsafe/dkg-coordinator/storage"
)

const (
	retryBaseWait   = 250 * time.Millisecond
	retryMaxRetries = 5

	// cryptoWorkers bounds the worker pool used for dealing generation and
	// verification.
	cryptoWorkers = 2
)

// Config holds the agent's deployment parameters.
type Config struct {
	// Address is the dealer identity every mutating call is sent under.
	Address dkg.Address
	// AnnounceAddress is the reachable endpoint registered on chain.
	AnnounceAddress string
	// TickInterval is the cadence of the observe-decide-execute loop.
	TickInterval time.Duration
}

// Agent drives one dealer through the epoch lifecycle.
type Agent struct {
	log      zerolog.Logger
	client   module.ContractClient
	crypto   module.BeaconCrypto
	keystore storage.Keystore
	metrics  module.AgentMetrics
	clock    clock.Clock
	pool     *workerpool.WorkerPool
	cfg      Config

	mem memory
}

func New(
	log zerolog.Logger,
	client module.ContractClient,
	crypto module.BeaconCrypto,
	keystore storage.Keystore,
	metrics module.AgentMetrics,
	clk clock.Clock,
	cfg Config,
) *Agent {
	return &Agent{
		log:      log.With().Str("component", "dkg_agent").Str("address", string(cfg.Address)).Logger(),
		client:   client,
		crypto:   crypto,
		keystore: keystore,
		metrics:  metrics,
		clock:    clk,
		pool:     workerpool.New(cryptoWorkers),
		cfg:      cfg,
	}
}

// Run drives the tick loop until the context is cancelled or the agent
// halts on a protocol invariant violation.
func (a *Agent) Run(ctx context.Context) error {
	defer a.pool.StopWait()

	ticker := a.clock.Ticker(a.cfg.TickInterval)
	defer ticker.Stop()

	a.log.Info().Msg("agent started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("agent stopped")
			return nil
		case <-ticker.C:
			err := a.Tick(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("agent halting")
				return err
			}
		}
	}
}

// Tick performs one observe-decide-execute cycle. It returns an error only
// for halt-class failures; every other rejection is classified, logged and
// absorbed so the next tick can re-decide from fresh state.
func (a *Agent) Tick(ctx context.Context) error {

	obs, err := a.observe(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("could not observe chain state")
		return nil
	}

	// a higher epoch id invalidates all in-flight work from lower ones
	if obs.Epoch.ID != a.mem.epoch {
		a.mem = memory{epoch: obs.Epoch.ID}
	}

	act := decide(*obs, a.mem)
	if act.kind == actNone {
		return nil
	}

	log := a.log.With().
		Str("action", act.kind.String()).
		Uint64("epoch", uint64(obs.Epoch.ID)).
		Str("state", obs.Epoch.State.String()).
		Logger()

	err = a.execute(ctx, obs, act)
	if err == nil {
		log.Info().Msg("action executed")
		a.metrics.AgentActionExecuted(act.kind.String())
		return nil
	}

	a.metrics.AgentActionFailed(act.kind.String())
	switch classify(err) {
	case rejectionIgnore:
		log.Debug().Err(err).Msg("action already effective, ignoring")
	case rejectionResync:
		log.Info().Err(err).Msg("stale view, re-syncing next tick")
	case rejectionAbandon:
		log.Warn().Err(err).Msg("action not admitted, abandoning")
	case rejectionHalt:
		return fmt.Errorf("protocol invariant violated by %s: %w", act.kind, err)
	default:
		log.Warn().Err(err).Msg("action failed, will retry next tick")
	}
	return nil
}

// observe assembles the decision snapshot from the chain.
func (a *Agent) observe(ctx context.Context) (*Observation, error) {

	epoch, err := a.client.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get epoch: %w", err)
	}
	params, err := a.client.ContractState(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get contract state: %w", err)
	}
	self, err := a.client.SelfDealer(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get own dealer record: %w", err)
	}
	dealers, err := a.client.Dealers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list dealers: %w", err)
	}
	proposals, err := a.client.Proposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list proposals: %w", err)
	}

	obs := Observation{
		Me:        a.cfg.Address,
		Epoch:     epoch,
		Params:    params,
		Self:      self,
		Dealers:   dealers,
		Proposals: proposals,
	}

	if self != nil {
		dealings, err := a.client.Dealings(ctx, epoch.ID, self.Address)
		if err != nil {
			return nil, fmt.Errorf("could not list own dealings: %w", err)
		}
		obs.SubmittedDealings = uint64(len(dealings))

		share, err := a.client.VKShare(ctx, epoch.ID, self.Address)
		if err != nil {
			return nil, fmt.Errorf("could not get own share: %w", err)
		}
		obs.MyVKShare = share
	}

	return &obs, nil
}

// execute dispatches one decided action.
func (a *Agent) execute(ctx context.Context, obs *Observation, act action) error {
	switch act.kind {
	case actRegister:
		return a.register(ctx, obs, act.resharing)
	case actSubmitDealing:
		return a.submitDealing(ctx, obs, act.dealingIndex, act.resharing)
	case actVerifyPeers:
		return a.verifyPeers(ctx, obs)
	case actSubmitComplaint:
		return a.submitComplaint(ctx, obs)
	case actVoteComplaint:
		return a.voteComplaint(ctx, obs, act.proposalID)
	case actSubmitShare:
		return a.submitShare(ctx, obs, act.resharing)
	case actCheckMismatches:
		return a.checkMismatches(ctx, obs)
	case actVoteMismatch:
		return a.voteMismatch(ctx, obs, act.proposalID)
	case actAdvance:
		return a.submit(ctx, func(ctx context.Context) error {
			return a.client.AdvanceEpochState(ctx)
		})
	}
	return fmt.Errorf("unknown action %d", act.kind)
}

// submit wraps a chain write with bounded exponential backoff. Typed
// protocol rejections are surfaced immediately for classification; only
// transient failures are retried in place.
func (a *Agent) submit(ctx context.Context, write func(context.Context) error) error {
	expRetry, err := retry.NewExponential(retryBaseWait)
	if err != nil {
		return fmt.Errorf("could not create retry mechanism: %w", err)
	}
	backoff := retry.WithMaxRetries(retryMaxRetries, expRetry)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := write(ctx)
		if err != nil && !isProtocolRejection(err) {
			a.log.Warn().Err(err).Msg("chain write failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}

// offload runs one crypto job on the worker pool and joins it back into the
// loop before returning.
func (a *Agent) offload(job func()) {
	a.pool.SubmitWait(job)
}
