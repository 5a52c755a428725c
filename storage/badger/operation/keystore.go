package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertMyKeyPair stores the serialized BTE key pair for the given epoch.
//
// CAUTION: this stores confidential key material and must only be used
// against the agent's private keystore database, never the contract state.
func InsertMyKeyPair(epoch dkg.EpochID, keyPair []byte) func(*badger.Txn) error {
	return insert(makePrefix(codeMyKeyPair, epoch), keyPair)
}

// RetrieveMyKeyPair retrieves the serialized BTE key pair for the given
// epoch.
func RetrieveMyKeyPair(epoch dkg.EpochID, keyPair *[]byte) func(*badger.Txn) error {
	return retrieve(makePrefix(codeMyKeyPair, epoch), keyPair)
}

// UpsertMyPrivateShare stores the recovered threshold private share for the
// given epoch. Derivation is pure, so overwrites are safe.
func UpsertMyPrivateShare(epoch dkg.EpochID, share []byte) func(*badger.Txn) error {
	return upsert(makePrefix(codeMyPrivateShare, epoch), share)
}

// RetrieveMyPrivateShare retrieves the threshold private share for the given
// epoch.
func RetrieveMyPrivateShare(epoch dkg.EpochID, share *[]byte) func(*badger.Txn) error {
	return retrieve(makePrefix(codeMyPrivateShare, epoch), share)
}
