package storage

import (
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// Keystore is the agent's only authoritative off-chain state: the private
// key material it generated for each epoch. Everything else the agent needs
// is reconstructed from chain state on restart.
type Keystore interface {

	// InsertMyKeyPair stores the serialized BTE key pair generated for the
	// given epoch.
	// Error returns: storage.ErrAlreadyExists
	InsertMyKeyPair(epoch dkg.EpochID, keyPair []byte) error

	// RetrieveMyKeyPair retrieves the BTE key pair for the given epoch.
	// Error returns: storage.ErrNotFound
	RetrieveMyKeyPair(epoch dkg.EpochID) ([]byte, error)

	// UpsertMyPrivateShare stores the recovered threshold private share for
	// the given epoch, overwriting any previous value. Share derivation is
	// pure, so overwriting after a restart is safe.
	UpsertMyPrivateShare(epoch dkg.EpochID, share []byte) error

	// RetrieveMyPrivateShare retrieves the threshold private share for the
	// given epoch.
	// Error returns: storage.ErrNotFound
	RetrieveMyPrivateShare(epoch dkg.EpochID) ([]byte, error)
}
