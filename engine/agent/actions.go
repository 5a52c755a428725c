package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/module"
	"github.com/quorumsafe/dkg-coordinator/storage"
)

// register generates or reloads the epoch key pair and registers on chain.
// For resharing epochs where this agent is an initial dealer, the previous
// epoch's key material is re-proved instead of generating fresh keys.
func (a *Agent) register(ctx context.Context, obs *Observation, resharing bool) error {

	epoch := obs.Epoch.ID

	keyPair, err := a.keystore.RetrieveMyKeyPair(epoch)
	if errors.Is(err, storage.ErrNotFound) {
		keyPair = nil
	} else if err != nil {
		return fmt.Errorf("could not read keystore: %w", err)
	}

	if keyPair == nil && resharing && epoch > 0 {
		prior, err := a.keystore.RetrieveMyKeyPair(epoch - 1)
		if err == nil {
			keyPair = prior
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not read prior key pair: %w", err)
		}
	}

	if keyPair == nil {
		var genErr error
		a.offload(func() {
			keyPair, genErr = a.crypto.GenerateKeyPair()
		})
		if genErr != nil {
			return fmt.Errorf("could not generate key pair: %w", genErr)
		}
	}

	err = a.keystore.InsertMyKeyPair(epoch, keyPair)
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("could not persist key pair: %w", err)
	}

	public, err := a.crypto.PublicKeyWithProof(keyPair)
	if err != nil {
		return fmt.Errorf("could not extract public key: %w", err)
	}
	identity := a.crypto.Digest(public)

	var index dkg.NodeIndex
	err = a.submit(ctx, func(ctx context.Context) error {
		var err error
		index, err = a.client.RegisterDealer(ctx, public, identity, a.cfg.AnnounceAddress, resharing)
		return err
	})
	if err != nil {
		return err
	}

	a.log.Info().Uint64("node_index", uint64(index)).Msg("registered as dealer")
	return nil
}

// submitDealing generates the dealing with the given index for the full
// receiver set and commits it. Resharing dealers deal from their prior
// epoch's private share so the cohort extends the established master key.
func (a *Agent) submitDealing(ctx context.Context, obs *Observation, index dkg.DealingIndex, resharing bool) error {

	if obs.Epoch.Threshold == nil {
		return fmt.Errorf("epoch threshold not frozen yet")
	}

	keyPair, err := a.keystore.RetrieveMyKeyPair(obs.Epoch.ID)
	if err != nil {
		return fmt.Errorf("could not read key pair: %w", err)
	}

	receivers := receiversOf(obs.Dealers)

	var priorShare []byte
	var cohort []dkg.NodeIndex
	if resharing {
		priorShare, cohort, err = a.resharingInputs(ctx, obs)
		if err != nil {
			return err
		}
	}

	var dealing []byte
	var genErr error
	a.offload(func() {
		if resharing {
			dealing, genErr = a.crypto.GenerateResharingDealing(keyPair, priorShare, cohort, *obs.Epoch.Threshold, receivers)
		} else {
			dealing, genErr = a.crypto.GenerateDealing(keyPair, *obs.Epoch.Threshold, receivers)
		}
	})
	if genErr != nil {
		return fmt.Errorf("could not generate dealing %d: %w", index, genErr)
	}

	return a.submit(ctx, func(ctx context.Context) error {
		return a.client.SubmitDealing(ctx, index, dealing)
	})
}

// resharingInputs loads the prior epoch's private share from the keystore
// and the prior coordinates of the resharing cohort from the chain.
func (a *Agent) resharingInputs(ctx context.Context, obs *Observation) ([]byte, []dkg.NodeIndex, error) {

	epoch := obs.Epoch.ID
	if epoch == 0 {
		return nil, nil, fmt.Errorf("epoch 0 has no prior key to reshare")
	}

	priorShare, err := a.keystore.RetrieveMyPrivateShare(epoch - 1)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read prior private share: %w", err)
	}

	priorDealers, err := a.client.DealersAt(ctx, epoch-1)
	if err != nil {
		return nil, nil, fmt.Errorf("could not list prior dealers: %w", err)
	}
	priorIndex := make(map[dkg.Address]dkg.NodeIndex, len(priorDealers))
	for _, dealer := range priorDealers {
		priorIndex[dealer.Address] = dealer.Index
	}

	cohort := make([]dkg.NodeIndex, 0, len(obs.Epoch.InitialDealers))
	for _, address := range obs.Epoch.InitialDealers {
		index, ok := priorIndex[address]
		if !ok {
			return nil, nil, fmt.Errorf("resharing dealer %s has no prior epoch record", address)
		}
		cohort = append(cohort, index)
	}

	return priorShare, cohort, nil
}

// verifyPeers checks every peer dealing off-chain and queues a complaint
// for each malformed one. Failures across peers are aggregated so one bad
// dealer does not mask another.
func (a *Agent) verifyPeers(ctx context.Context, obs *Observation) error {

	if obs.Epoch.Threshold == nil {
		return fmt.Errorf("epoch threshold not frozen yet")
	}
	threshold := *obs.Epoch.Threshold
	receivers := receiversOf(obs.Dealers)

	var queued []complaintIntent
	var result *multierror.Error
	for _, dealer := range obs.Dealers {
		if !dealer.Active || dealer.Address == a.cfg.Address {
			continue
		}

		dealings, err := a.client.Dealings(ctx, obs.Epoch.ID, dealer.Address)
		if err != nil {
			return fmt.Errorf("could not fetch dealings of %s: %w", dealer.Address, err)
		}

		for _, dealing := range dealings {
			var verifyErr error
			commitment := dealing.Commitment
			a.offload(func() {
				verifyErr = a.crypto.VerifyDealingShape(commitment, threshold, receivers)
			})
			if verifyErr == nil {
				continue
			}
			result = multierror.Append(result, fmt.Errorf("dealer %d dealing %d: %w", dealer.Index, dealing.Index, verifyErr))
			queued = append(queued, complaintIntent{
				Epoch:        obs.Epoch.ID,
				Accused:      dealer.Index,
				DealingIndex: dealing.Index,
				Evidence:     commitment,
			})
		}
	}

	if result.ErrorOrNil() != nil {
		a.log.Warn().Err(result.ErrorOrNil()).Int("complaints", len(queued)).Msg("peer dealings failed verification")
	}

	a.mem.peersVerified = true
	a.mem.queuedComplaints = queued
	return nil
}

// submitComplaint files the next queued complaint.
func (a *Agent) submitComplaint(ctx context.Context, obs *Observation) error {

	if len(a.mem.queuedComplaints) == 0 {
		return nil
	}
	intent := a.mem.queuedComplaints[0]
	if intent.Epoch != obs.Epoch.ID {
		a.mem.queuedComplaints = nil
		return nil
	}

	var proposalID uint64
	err := a.submit(ctx, func(ctx context.Context) error {
		var err error
		proposalID, err = a.client.SubmitComplaint(ctx, intent.Accused, intent.DealingIndex, intent.Evidence)
		return err
	})
	if err != nil && classify(err) != rejectionIgnore {
		return err
	}

	a.mem.queuedComplaints = a.mem.queuedComplaints[1:]
	if err == nil {
		a.log.Info().
			Uint64("accused", uint64(intent.Accused)).
			Uint64("proposal", proposalID).
			Msg("complaint submitted")
	}
	return nil
}

// voteComplaint re-verifies the accused dealer's dealings locally and casts
// the ballot the evidence supports.
func (a *Agent) voteComplaint(ctx context.Context, obs *Observation, proposalID uint64) error {

	proposal, err := a.client.Proposal(ctx, proposalID)
	if err != nil {
		return fmt.Errorf("could not fetch proposal %d: %w", proposalID, err)
	}

	if obs.Epoch.Threshold == nil {
		return fmt.Errorf("epoch threshold not frozen yet")
	}
	threshold := *obs.Epoch.Threshold
	receivers := receiversOf(obs.Dealers)

	dealings, err := a.client.Dealings(ctx, obs.Epoch.ID, proposal.Subject)
	if err != nil {
		return fmt.Errorf("could not fetch dealings of %s: %w", proposal.Subject, err)
	}

	// guilty if any dealing is malformed or if fewer than the required
	// number were committed at all
	guilty := uint64(len(dealings)) < obs.Params.DealingsPerDealer
	for _, dealing := range dealings {
		var verifyErr error
		commitment := dealing.Commitment
		a.offload(func() {
			verifyErr = a.crypto.VerifyDealingShape(commitment, threshold, receivers)
		})
		if verifyErr != nil {
			guilty = true
			break
		}
	}

	return a.submit(ctx, func(ctx context.Context) error {
		return a.client.VoteProposal(ctx, proposalID, guilty)
	})
}

// submitShare recovers this agent's shares from every accepted dealing,
// aggregates them into the epoch private share, persists it, and submits
// the derived partial verification key.
func (a *Agent) submitShare(ctx context.Context, obs *Observation, resharing bool) error {

	keyPair, err := a.keystore.RetrieveMyKeyPair(obs.Epoch.ID)
	if err != nil {
		return fmt.Errorf("could not read key pair: %w", err)
	}
	myIndex := obs.Self.Index

	dealings, err := a.acceptedDealings(ctx, obs)
	if err != nil {
		return err
	}
	if len(dealings) == 0 {
		return fmt.Errorf("no accepted dealings to derive from")
	}

	var privateShare []byte
	var deriveErr error
	a.offload(func() {
		shares := make([][]byte, 0, len(dealings))
		for _, dealing := range dealings {
			share, err := a.crypto.RecoverShare(dealing, keyPair, myIndex)
			if err != nil {
				// dealing survived the complaint phase but our share is bad;
				// exclude it rather than poison the aggregate
				deriveErr = multierror.Append(deriveErr, err)
				continue
			}
			shares = append(shares, share)
		}
		if len(shares) == 0 {
			return
		}
		privateShare, deriveErr = a.crypto.AggregateShares(shares)
	})
	if deriveErr != nil && privateShare == nil {
		return fmt.Errorf("could not derive private share: %w", deriveErr)
	}

	err = a.keystore.UpsertMyPrivateShare(obs.Epoch.ID, privateShare)
	if err != nil {
		return fmt.Errorf("could not persist private share: %w", err)
	}

	partial, err := a.crypto.PartialVK(privateShare, myIndex)
	if err != nil {
		return fmt.Errorf("could not derive partial verification key: %w", err)
	}

	var proposalID uint64
	err = a.submit(ctx, func(ctx context.Context) error {
		var err error
		proposalID, err = a.client.SubmitVerificationKeyShare(ctx, partial, resharing)
		return err
	})
	if err != nil {
		return err
	}

	a.log.Info().Uint64("proposal", proposalID).Msg("verification key share submitted")
	return nil
}

// checkMismatches audits every peer's submitted share against the partial
// key the accepted dealings dictate for that coordinate, and reports each
// divergence.
func (a *Agent) checkMismatches(ctx context.Context, obs *Observation) error {

	dealings, err := a.acceptedDealings(ctx, obs)
	if err != nil {
		return err
	}
	if len(dealings) == 0 {
		a.mem.mismatchesChecked = true
		return nil
	}

	shares, err := a.client.VKShares(ctx, obs.Epoch.ID)
	if err != nil {
		return fmt.Errorf("could not list shares: %w", err)
	}

	var localDigest []byte
	a.offload(func() {
		masterVK, deriveErr := a.crypto.MasterVKFromDealings(dealings)
		if deriveErr != nil {
			err = deriveErr
			return
		}
		localDigest = a.crypto.Digest(masterVK)
	})
	if err != nil {
		return fmt.Errorf("could not derive local master key: %w", err)
	}

	var result *multierror.Error
	for _, share := range shares {
		if share.Dealer == a.cfg.Address {
			continue
		}

		var expected []byte
		var deriveErr error
		index := share.Index
		a.offload(func() {
			expected, deriveErr = a.crypto.ExpectedPartialVK(dealings, index)
		})
		if deriveErr != nil {
			result = multierror.Append(result, fmt.Errorf("coordinate %d: %w", index, deriveErr))
			continue
		}
		if bytes.Equal(expected, share.Share) {
			continue
		}

		reportErr := a.submit(ctx, func(ctx context.Context) error {
			_, err := a.client.SubmitVKMismatch(ctx, share.Index, localDigest)
			return err
		})
		if reportErr != nil && classify(reportErr) != rejectionIgnore {
			result = multierror.Append(result, reportErr)
			continue
		}
		a.log.Warn().Uint64("accused", uint64(share.Index)).Msg("verification key mismatch reported")
	}

	err = result.ErrorOrNil()
	if err != nil {
		return err
	}
	a.mem.mismatchesChecked = true
	return nil
}

// voteMismatch recomputes the accused coordinate's expected partial key and
// votes on whether the submitted share diverges from it.
func (a *Agent) voteMismatch(ctx context.Context, obs *Observation, proposalID uint64) error {

	proposal, err := a.client.Proposal(ctx, proposalID)
	if err != nil {
		return fmt.Errorf("could not fetch proposal %d: %w", proposalID, err)
	}

	share, err := a.client.VKShare(ctx, obs.Epoch.ID, proposal.Subject)
	if err != nil {
		return fmt.Errorf("could not fetch share of %s: %w", proposal.Subject, err)
	}

	// a missing share cannot diverge; reject the report
	guilty := false
	if share != nil {
		dealings, err := a.acceptedDealings(ctx, obs)
		if err != nil {
			return err
		}
		var expected []byte
		var deriveErr error
		a.offload(func() {
			expected, deriveErr = a.crypto.ExpectedPartialVK(dealings, share.Index)
		})
		if deriveErr != nil {
			return fmt.Errorf("could not derive expected partial key: %w", deriveErr)
		}
		guilty = !bytes.Equal(expected, share.Share)
	}

	return a.submit(ctx, func(ctx context.Context) error {
		return a.client.VoteProposal(ctx, proposalID, guilty)
	})
}

// acceptedDealings collects the dealings of all dealers still active, i.e.
// those that survived the complaint phase.
func (a *Agent) acceptedDealings(ctx context.Context, obs *Observation) ([][]byte, error) {
	var accepted [][]byte
	for _, dealer := range obs.Dealers {
		if !dealer.Active {
			continue
		}
		dealings, err := a.client.Dealings(ctx, obs.Epoch.ID, dealer.Address)
		if err != nil {
			return nil, fmt.Errorf("could not fetch dealings of %s: %w", dealer.Address, err)
		}
		for _, dealing := range dealings {
			accepted = append(accepted, dealing.Commitment)
		}
	}
	return accepted, nil
}

// receiversOf maps the dealer records to the crypto receiver set.
func receiversOf(dealers []*dkg.DealerRecord) []module.Receiver {
	receivers := make([]module.Receiver, 0, len(dealers))
	for _, dealer := range dealers {
		receivers = append(receivers, module.Receiver{
			Index:     dealer.Index,
			PublicKey: dealer.BTEPublicKeyWithProof,
		})
	}
	return receivers
}
