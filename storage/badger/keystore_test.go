package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumsafe/dkg-coordinator/storage"
	badgerstore "github.com/quorumsafe/dkg-coordinator/storage/badger"
	"github.com/quorumsafe/dkg-coordinator/utils/unittest"
)

func TestKeystoreKeyPair(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		keystore := badgerstore.NewKeystore(db)

		_, err := keystore.RetrieveMyKeyPair(0)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, keystore.InsertMyKeyPair(0, []byte("keypair-0")))

		keyPair, err := keystore.RetrieveMyKeyPair(0)
		require.NoError(t, err)
		assert.Equal(t, []byte("keypair-0"), keyPair)

		// key material is immutable once written
		err = keystore.InsertMyKeyPair(0, []byte("other"))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		// epochs are isolated
		_, err = keystore.RetrieveMyKeyPair(1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestKeystorePrivateShare(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		keystore := badgerstore.NewKeystore(db)

		_, err := keystore.RetrieveMyPrivateShare(0)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		// derivation is pure, so re-deriving after a restart overwrites
		require.NoError(t, keystore.UpsertMyPrivateShare(0, []byte("share-v1")))
		require.NoError(t, keystore.UpsertMyPrivateShare(0, []byte("share-v2")))

		share, err := keystore.RetrieveMyPrivateShare(0)
		require.NoError(t, err)
		assert.Equal(t, []byte("share-v2"), share)
	})
}
