package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertVKShare stores a partial verification key share. Errors with
// storage.ErrAlreadyExists when the dealer already submitted this epoch.
func InsertVKShare(share *dkg.VKShare) func(*badger.Txn) error {
	return insert(makePrefix(codeVKShare, share.Epoch, share.Dealer), share)
}

// UpdateVKShare replaces a stored share, e.g. to set the verified flag.
func UpdateVKShare(share *dkg.VKShare) func(*badger.Txn) error {
	return update(makePrefix(codeVKShare, share.Epoch, share.Dealer), share)
}

// RetrieveVKShare retrieves the share submitted by the given dealer.
func RetrieveVKShare(epoch dkg.EpochID, dealer dkg.Address, share *dkg.VKShare) func(*badger.Txn) error {
	return retrieve(makePrefix(codeVKShare, epoch, dealer), share)
}

// VKSharesForEpoch collects all shares submitted in the given epoch, in
// dealer address order, starting strictly after the startAfter address
// (pass "" to start from the beginning). A limit of 0 means no limit.
func VKSharesForEpoch(epoch dkg.EpochID, startAfter dkg.Address, limit uint, shares *[]*dkg.VKShare) func(*badger.Txn) error {
	prefix := makePrefix(codeVKShare, epoch)

	var start []byte
	if startAfter != "" {
		start = makePrefix(codeVKShare, epoch, startAfter)
	}

	*shares = make([]*dkg.VKShare, 0, len(*shares))
	iteration := func() (checkFunc, createFunc, handleFunc) {
		var share dkg.VKShare
		create := func() interface{} {
			return &share
		}
		handle := func() error {
			entry := share
			*shares = append(*shares, &entry)
			if limit > 0 && uint(len(*shares)) >= limit {
				return errStopIteration
			}
			return nil
		}
		return hasPrefix(prefix), create, handle
	}

	return traverse(prefix, start, iteration)
}
