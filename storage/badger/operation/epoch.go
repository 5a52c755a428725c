package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertEpoch stores the initial epoch record. Only used at bootstrap.
func InsertEpoch(epoch *dkg.Epoch) func(*badger.Txn) error {
	return insert(makePrefix(codeEpoch), epoch)
}

// UpsertEpoch replaces the singleton epoch record. Used by phase advancement
// and reset.
func UpsertEpoch(epoch *dkg.Epoch) func(*badger.Txn) error {
	return upsert(makePrefix(codeEpoch), epoch)
}

// RetrieveEpoch retrieves the singleton epoch record.
func RetrieveEpoch(epoch *dkg.Epoch) func(*badger.Txn) error {
	return retrieve(makePrefix(codeEpoch), epoch)
}

// UpsertNodeIndexCounter stores the last node index allocated in the given
// epoch. Node indices start at 1, so a missing counter reads as 0.
func UpsertNodeIndexCounter(epoch dkg.EpochID, counter uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeNodeIndexCounter, epoch), counter)
}

// RetrieveNodeIndexCounter retrieves the last node index allocated in the
// given epoch.
func RetrieveNodeIndexCounter(epoch dkg.EpochID, counter *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeNodeIndexCounter, epoch), counter)
}

// UpsertProposalCounter stores the last proposal id allocated. Proposal ids
// are global across epochs, matching their use as stable references.
func UpsertProposalCounter(counter uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeProposalCounter), counter)
}

// RetrieveProposalCounter retrieves the last proposal id allocated.
func RetrieveProposalCounter(counter *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeProposalCounter), counter)
}
