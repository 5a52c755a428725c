package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertDealing stores a committed dealing. Errors with
// storage.ErrAlreadyExists when the (epoch, dealer, index) slot is taken,
// which enforces the at-most-one-submission invariant at the storage layer.
func InsertDealing(dealing *dkg.Dealing) func(*badger.Txn) error {
	return insert(makePrefix(codeDealing, dealing.Epoch, dealing.Dealer, dealing.Index), dealing)
}

// ExistsDealing checks whether a dealing was committed for the given slot.
func ExistsDealing(epoch dkg.EpochID, dealer dkg.Address, index dkg.DealingIndex, out *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeDealing, epoch, dealer, index), out)
}

// DealingsForDealer collects all dealings committed by one dealer in the
// given epoch, in dealing index order.
func DealingsForDealer(epoch dkg.EpochID, dealer dkg.Address, dealings *[]*dkg.Dealing) func(*badger.Txn) error {
	prefix := makePrefix(codeDealing, epoch, dealer)

	*dealings = make([]*dkg.Dealing, 0, len(*dealings))
	iteration := func() (checkFunc, createFunc, handleFunc) {
		var dealing dkg.Dealing
		create := func() interface{} {
			return &dealing
		}
		handle := func() error {
			entry := dealing
			*dealings = append(*dealings, &entry)
			return nil
		}
		return hasPrefix(prefix), create, handle
	}

	return traverse(prefix, nil, iteration)
}

// CountDealingsForDealer counts the dealings committed by one dealer in the
// given epoch.
func CountDealingsForDealer(epoch dkg.EpochID, dealer dkg.Address, count *uint64) func(*badger.Txn) error {
	prefix := makePrefix(codeDealing, epoch, dealer)

	*count = 0
	iteration := func() (checkFunc, createFunc, handleFunc) {
		var dealing dkg.Dealing
		create := func() interface{} {
			return &dealing
		}
		handle := func() error {
			*count++
			return nil
		}
		return hasPrefix(prefix), create, handle
	}

	return traverse(prefix, nil, iteration)
}
