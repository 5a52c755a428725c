// Package local implements module.ContractClient against an in-process
// coordinator contract. It is the client used by single-binary deployments
// and by the integration tests; a chain-backed client would replace it
// without touching the agent.
package local

import (
	"context"
	"fmt"
	"strconv"

	"github.com/quorumsafe/dkg-coordinator/contract"
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/model/events"
	"github.com/quorumsafe/dkg-coordinator/module"
)

// Client binds one dealer identity to the contract: every mutating call is
// sent with the configured sender address, mirroring how a transaction
// carries its signer.
type Client struct {
	contract *contract.Contract
	sender   dkg.Address
}

var _ module.ContractClient = (*Client)(nil)

func New(contract *contract.Contract, sender dkg.Address) *Client {
	return &Client{
		contract: contract,
		sender:   sender,
	}
}

// RegisterDealer submits a registration and recovers the assigned node
// index from the emitted event, the same way a chain client would parse a
// transaction log.
func (c *Client) RegisterDealer(ctx context.Context, bteKeyWithProof []byte, identityKey []byte, announceAddress string, resharing bool) (dkg.NodeIndex, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	evts, err := c.contract.RegisterDealer(contract.RegisterDealerRequest{
		Sender:                c.sender,
		BTEPublicKeyWithProof: bteKeyWithProof,
		IdentityKey:           identityKey,
		AnnounceAddress:       announceAddress,
		Resharing:             resharing,
	})
	if err != nil {
		return 0, err
	}
	return recoverNodeIndex(evts)
}

func (c *Client) SubmitDealing(ctx context.Context, index dkg.DealingIndex, commitment []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.contract.SubmitDealing(contract.SubmitDealingRequest{
		Sender:     c.sender,
		Index:      index,
		Commitment: commitment,
	})
	return err
}

func (c *Client) SubmitComplaint(ctx context.Context, accused dkg.NodeIndex, index dkg.DealingIndex, evidence []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	evts, err := c.contract.SubmitComplaint(contract.SubmitComplaintRequest{
		Sender:       c.sender,
		Accused:      accused,
		DealingIndex: index,
		Evidence:     evidence,
	})
	if err != nil {
		return 0, err
	}
	return recoverProposalID(evts)
}

func (c *Client) VoteProposal(ctx context.Context, proposalID uint64, yes bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.contract.VoteProposal(contract.VoteProposalRequest{
		Sender:     c.sender,
		ProposalID: proposalID,
		Yes:        yes,
	})
	return err
}

func (c *Client) ExecuteProposal(ctx context.Context, proposalID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.contract.ExecuteProposal(contract.ExecuteProposalRequest{
		Sender:     c.sender,
		ProposalID: proposalID,
	})
	return err
}

func (c *Client) SubmitVerificationKeyShare(ctx context.Context, share []byte, resharing bool) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	evts, err := c.contract.SubmitVerificationKeyShare(contract.SubmitVKShareRequest{
		Sender:    c.sender,
		Share:     share,
		Resharing: resharing,
	})
	if err != nil {
		return 0, err
	}
	return recoverProposalID(evts)
}

func (c *Client) SubmitVKMismatch(ctx context.Context, accused dkg.NodeIndex, localDigest []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	evts, err := c.contract.SubmitVKMismatch(contract.SubmitVKMismatchRequest{
		Sender:      c.sender,
		Accused:     accused,
		LocalDigest: localDigest,
	})
	if err != nil {
		return 0, err
	}
	return recoverProposalID(evts)
}

func (c *Client) AdvanceEpochState(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.contract.AdvanceEpochState()
	return err
}

func (c *Client) CurrentEpoch(ctx context.Context) (*dkg.Epoch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.CurrentEpoch()
}

func (c *Client) ContractState(ctx context.Context) (*dkg.ContractState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.State(), nil
}

func (c *Client) CurrentThreshold(ctx context.Context) (*uint64, error) {
	epoch, err := c.CurrentEpoch(ctx)
	if err != nil {
		return nil, err
	}
	return epoch.Threshold, nil
}

func (c *Client) InitialDealers(ctx context.Context) ([]dkg.Address, error) {
	epoch, err := c.CurrentEpoch(ctx)
	if err != nil {
		return nil, err
	}
	return epoch.InitialDealers, nil
}

// SelfDealer returns this client's dealer record for the current epoch, or
// nil when the sender has not registered yet.
func (c *Client) SelfDealer(ctx context.Context) (*dkg.DealerRecord, error) {
	epoch, err := c.CurrentEpoch(ctx)
	if err != nil {
		return nil, err
	}
	record, err := c.contract.Dealer(epoch.ID, c.sender)
	if contract.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) Dealers(ctx context.Context) ([]*dkg.DealerRecord, error) {
	epoch, err := c.CurrentEpoch(ctx)
	if err != nil {
		return nil, err
	}
	return c.contract.Dealers(epoch.ID, 0, 0)
}

func (c *Client) DealersAt(ctx context.Context, epoch dkg.EpochID) ([]*dkg.DealerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.Dealers(epoch, 0, 0)
}

func (c *Client) DealingStatus(ctx context.Context, epoch dkg.EpochID, dealer dkg.Address, index dkg.DealingIndex) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.contract.DealingStatus(epoch, dealer, index)
}

func (c *Client) Dealings(ctx context.Context, epoch dkg.EpochID, dealer dkg.Address) ([]*dkg.Dealing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.Dealings(epoch, dealer)
}

// VKShare returns the share the dealer submitted, or nil when absent.
func (c *Client) VKShare(ctx context.Context, epoch dkg.EpochID, dealer dkg.Address) (*dkg.VKShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	share, err := c.contract.VKShare(epoch, dealer)
	if contract.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return share, nil
}

func (c *Client) VKShares(ctx context.Context, epoch dkg.EpochID) ([]*dkg.VKShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.VKShares(epoch, "", 0)
}

func (c *Client) Proposal(ctx context.Context, proposalID uint64) (*dkg.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.Proposal(proposalID)
}

func (c *Client) Proposals(ctx context.Context) ([]*dkg.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.contract.Proposals(0, 0)
}

// recoverNodeIndex extracts the assigned node index from the registration
// events. A registration that emits no usable index is unusable: the agent
// cannot know its Lagrange coordinate, so this is fatal for the action.
func recoverNodeIndex(evts []events.Event) (dkg.NodeIndex, error) {
	value, ok := events.Find(evts, events.AttrNodeIndex)
	if !ok {
		return 0, dkg.NewNodeIndexRecoveryError("no node_index attribute in registration events")
	}
	index, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, dkg.NewNodeIndexRecoveryError("node_index attribute is not a number: " + value)
	}
	if index == 0 {
		return 0, dkg.NewNodeIndexRecoveryError("node_index attribute is zero")
	}
	return dkg.NodeIndex(index), nil
}

// recoverProposalID extracts the id of the proposal a submission opened.
func recoverProposalID(evts []events.Event) (uint64, error) {
	value, ok := events.Find(evts, events.AttrProposalID)
	if !ok {
		return 0, fmt.Errorf("no proposal_id attribute in submission events")
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("proposal_id attribute is not a number: %s", value)
	}
	return id, nil
}
