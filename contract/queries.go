package contract

import (
	"errors"
	"fmt"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/storage"
	"github.com/quorumsafe/dkg-coordinator/storage/badger/operation"
)

// The query surface runs in read-only transactions and never takes the
// contract mutex; badger snapshots give each query a consistent view.

// CurrentEpoch returns the epoch singleton.
func (c *Contract) CurrentEpoch() (*dkg.Epoch, error) {
	var epoch dkg.Epoch
	err := c.db.View(operation.RetrieveEpoch(&epoch))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve epoch: %w", err)
	}
	return &epoch, nil
}

// Dealer returns the dealer record registered under the address in the
// epoch, or storage.ErrNotFound.
func (c *Contract) Dealer(epoch dkg.EpochID, address dkg.Address) (*dkg.DealerRecord, error) {
	var record dkg.DealerRecord
	err := c.db.View(operation.RetrieveDealerRecord(epoch, address, &record))
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Dealers pages through the epoch's dealer records in node index order,
// starting strictly after the given index. A limit of 0 means no limit.
func (c *Contract) Dealers(epoch dkg.EpochID, startAfter dkg.NodeIndex, limit uint) ([]*dkg.DealerRecord, error) {
	var records []*dkg.DealerRecord
	err := c.db.View(operation.DealersForEpoch(epoch, startAfter, limit, &records))
	if err != nil {
		return nil, fmt.Errorf("could not list dealers: %w", err)
	}
	return records, nil
}

// DealingStatus reports whether the dealer has committed the dealing with
// the given index.
func (c *Contract) DealingStatus(epoch dkg.EpochID, dealer dkg.Address, index dkg.DealingIndex) (bool, error) {
	var submitted bool
	err := c.db.View(operation.ExistsDealing(epoch, dealer, index, &submitted))
	if err != nil {
		return false, fmt.Errorf("could not check dealing: %w", err)
	}
	return submitted, nil
}

// Dealings returns all dealings the dealer committed in the epoch, in
// dealing index order.
func (c *Contract) Dealings(epoch dkg.EpochID, dealer dkg.Address) ([]*dkg.Dealing, error) {
	var dealings []*dkg.Dealing
	err := c.db.View(operation.DealingsForDealer(epoch, dealer, &dealings))
	if err != nil {
		return nil, fmt.Errorf("could not list dealings: %w", err)
	}
	return dealings, nil
}

// VKShare returns the verification key share the dealer submitted, or
// storage.ErrNotFound.
func (c *Contract) VKShare(epoch dkg.EpochID, dealer dkg.Address) (*dkg.VKShare, error) {
	var share dkg.VKShare
	err := c.db.View(operation.RetrieveVKShare(epoch, dealer, &share))
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// VKShares pages through the epoch's shares in dealer address order. A
// limit of 0 means no limit.
func (c *Contract) VKShares(epoch dkg.EpochID, startAfter dkg.Address, limit uint) ([]*dkg.VKShare, error) {
	var shares []*dkg.VKShare
	err := c.db.View(operation.VKSharesForEpoch(epoch, startAfter, limit, &shares))
	if err != nil {
		return nil, fmt.Errorf("could not list shares: %w", err)
	}
	return shares, nil
}

// Proposal returns the proposal with the given id, or storage.ErrNotFound.
func (c *Contract) Proposal(id uint64) (*dkg.Proposal, error) {
	var proposal dkg.Proposal
	err := c.db.View(operation.RetrieveProposal(id, &proposal))
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Proposals pages through all proposals in id order, starting strictly
// after the given id. A limit of 0 means no limit.
func (c *Contract) Proposals(startAfter uint64, limit uint) ([]*dkg.Proposal, error) {
	var proposals []*dkg.Proposal
	err := c.db.View(operation.ProposalsList(startAfter, limit, &proposals))
	if err != nil {
		return nil, fmt.Errorf("could not list proposals: %w", err)
	}
	return proposals, nil
}

// LookupNodeIndex resolves a node index to the dealer address registered
// under it, or storage.ErrNotFound.
func (c *Contract) LookupNodeIndex(epoch dkg.EpochID, index dkg.NodeIndex) (dkg.Address, error) {
	var address dkg.Address
	err := c.db.View(operation.LookupDealerAddress(epoch, index, &address))
	if err != nil {
		return "", err
	}
	return address, nil
}

// Complaints returns all complaints filed in the epoch.
func (c *Contract) Complaints(epoch dkg.EpochID) ([]*dkg.Complaint, error) {
	var complaints []*dkg.Complaint
	err := c.db.View(operation.ComplaintsForEpoch(epoch, &complaints))
	if err != nil {
		return nil, fmt.Errorf("could not list complaints: %w", err)
	}
	return complaints, nil
}

// MismatchReports returns all mismatch reports filed in the epoch.
func (c *Contract) MismatchReports(epoch dkg.EpochID) ([]*dkg.MismatchReport, error) {
	var reports []*dkg.MismatchReport
	err := c.db.View(operation.MismatchReportsForEpoch(epoch, &reports))
	if err != nil {
		return nil, fmt.Errorf("could not list mismatch reports: %w", err)
	}
	return reports, nil
}

// IsNotFound reports whether the error is the storage not-found sentinel.
// Query callers use it to map absence to a nil result.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
