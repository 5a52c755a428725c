package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertDealerRecord stores a dealer registration record keyed by address.
// Errors with storage.ErrAlreadyExists on duplicate registration.
func InsertDealerRecord(epoch dkg.EpochID, record *dkg.DealerRecord) func(*badger.Txn) error {
	return insert(makePrefix(codeDealerByAddress, epoch, record.Address), record)
}

// UpdateDealerRecord replaces an existing dealer record, e.g. to toggle the
// active flag.
func UpdateDealerRecord(epoch dkg.EpochID, record *dkg.DealerRecord) func(*badger.Txn) error {
	return update(makePrefix(codeDealerByAddress, epoch, record.Address), record)
}

// RetrieveDealerRecord retrieves the dealer record for the given address.
func RetrieveDealerRecord(epoch dkg.EpochID, address dkg.Address, record *dkg.DealerRecord) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDealerByAddress, epoch, address), record)
}

// IndexDealerAddress indexes a dealer address by its node index, so dealers
// can be listed in node index order.
func IndexDealerAddress(epoch dkg.EpochID, index dkg.NodeIndex, address dkg.Address) func(*badger.Txn) error {
	return insert(makePrefix(codeDealerByIndex, epoch, index), address)
}

// LookupDealerAddress retrieves the address registered under a node index.
func LookupDealerAddress(epoch dkg.EpochID, index dkg.NodeIndex, address *dkg.Address) func(*badger.Txn) error {
	return retrieve(makePrefix(codeDealerByIndex, epoch, index), address)
}

// DealersForEpoch collects dealer records in ascending node index order,
// starting strictly after the startAfter index (pass 0 to start from the
// beginning, since indices start at 1). A limit of 0 means no limit.
func DealersForEpoch(epoch dkg.EpochID, startAfter dkg.NodeIndex, limit uint, records *[]*dkg.DealerRecord) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		prefix := makePrefix(codeDealerByIndex, epoch)

		var start []byte
		if startAfter > 0 {
			start = makePrefix(codeDealerByIndex, epoch, startAfter)
		}

		*records = make([]*dkg.DealerRecord, 0, len(*records))
		iteration := func() (checkFunc, createFunc, handleFunc) {
			var address dkg.Address
			create := func() interface{} {
				return &address
			}
			handle := func() error {
				var record dkg.DealerRecord
				err := retrieve(makePrefix(codeDealerByAddress, epoch, address), &record)(tx)
				if err != nil {
					return err
				}
				*records = append(*records, &record)
				if limit > 0 && uint(len(*records)) >= limit {
					return errStopIteration
				}
				return nil
			}
			return hasPrefix(prefix), create, handle
		}

		return traverse(prefix, start, iteration)(tx)
	}
}
