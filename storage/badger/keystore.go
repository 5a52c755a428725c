package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/storage"
	"github.com/quorumsafe/dkg-coordinator/storage/badger/operation"
)

// Keystore implements storage.Keystore on a badger database holding the
// agent's private key material. It must be opened on a database separate
// from any shared state.
type Keystore struct {
	db *badger.DB
}

var _ storage.Keystore = (*Keystore)(nil)

func NewKeystore(db *badger.DB) *Keystore {
	return &Keystore{db: db}
}

func (k *Keystore) InsertMyKeyPair(epoch dkg.EpochID, keyPair []byte) error {
	err := k.db.Update(operation.InsertMyKeyPair(epoch, keyPair))
	if err != nil {
		return fmt.Errorf("could not insert key pair for epoch %d: %w", epoch, err)
	}
	return nil
}

func (k *Keystore) RetrieveMyKeyPair(epoch dkg.EpochID) ([]byte, error) {
	var keyPair []byte
	err := k.db.View(operation.RetrieveMyKeyPair(epoch, &keyPair))
	if err != nil {
		// pass storage sentinels through for the caller to match on
		return nil, err
	}
	return keyPair, nil
}

func (k *Keystore) UpsertMyPrivateShare(epoch dkg.EpochID, share []byte) error {
	err := k.db.Update(operation.UpsertMyPrivateShare(epoch, share))
	if err != nil {
		return fmt.Errorf("could not upsert private share for epoch %d: %w", epoch, err)
	}
	return nil
}

func (k *Keystore) RetrieveMyPrivateShare(epoch dkg.EpochID) ([]byte, error) {
	var share []byte
	err := k.db.View(operation.RetrieveMyPrivateShare(epoch, &share))
	if err != nil {
		return nil, err
	}
	return share, nil
}
