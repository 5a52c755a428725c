package module

import (
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// Receiver describes one dealing recipient: its Lagrange coordinate and its
// BTE public key (with proof) as registered on chain.
type Receiver struct {
	Index     dkg.NodeIndex
	PublicKey []byte
}

// KeyProofVerifier is the slice of the crypto capability set the contract
// needs: it checks proofs of possession on submitted BTE keys without ever
// interpreting the key material itself.
type KeyProofVerifier interface {

	// VerifyKeyProof checks the proof bundled with a BTE public key.
	// Error returns: dkg.InvalidProofError.
	VerifyKeyProof(publicKeyWithProof []byte) error
}

// BeaconCrypto is the full capability set the agent performs off-chain. All
// artifacts cross this boundary as opaque bytes; the coordinator core never
// inspects them. Every operation is pure and restartable.
type BeaconCrypto interface {
	KeyProofVerifier

	// GenerateKeyPair produces a fresh BTE key pair with its proof of
	// possession, serialized for the keystore.
	GenerateKeyPair() ([]byte, error)

	// PublicKeyWithProof extracts the shareable public part of a serialized
	// key pair.
	PublicKeyWithProof(keyPair []byte) ([]byte, error)

	// GenerateDealing produces the dealing commitment for the given
	// receivers under the given threshold: polynomial commitments plus one
	// encrypted share per receiver.
	GenerateDealing(keyPair []byte, threshold uint64, receivers []Receiver) ([]byte, error)

	// GenerateResharingDealing produces a dealing whose constant term is
	// derived from the dealer's prior epoch private share, Lagrange-weighted
	// over the resharing cohort's prior coordinates, so that the combined
	// dealings of the cohort preserve the previously established master key.
	GenerateResharingDealing(keyPair []byte, priorShare []byte, cohort []dkg.NodeIndex, threshold uint64, receivers []Receiver) ([]byte, error)

	// VerifyDealingShape structurally verifies a dealing against the epoch
	// parameters. Any dealer can run this on any dealing; a failure is
	// evidence for a complaint.
	// Error returns: dkg.InvalidProofError.
	VerifyDealingShape(dealing []byte, threshold uint64, receivers []Receiver) error

	// RecoverShare decrypts this receiver's share from a dealing and checks
	// it against the dealing's commitments.
	// Error returns: dkg.InvalidProofError when the share is inconsistent.
	RecoverShare(dealing []byte, keyPair []byte, myIndex dkg.NodeIndex) ([]byte, error)

	// AggregateShares combines the recovered shares from all accepted
	// dealings into this dealer's threshold private share.
	AggregateShares(shares [][]byte) ([]byte, error)

	// PartialVK derives the partial verification key for a private share at
	// the given Lagrange coordinate.
	PartialVK(privateShare []byte, index dkg.NodeIndex) ([]byte, error)

	// ExpectedPartialVK computes, from the accepted dealings alone, the
	// partial verification key that the dealer at the given coordinate must
	// submit. Used to audit peers' submissions.
	ExpectedPartialVK(dealings [][]byte, index dkg.NodeIndex) ([]byte, error)

	// MasterVK recovers the master verification key from at least threshold
	// partial keys.
	MasterVK(partials [][]byte, threshold uint64) ([]byte, error)

	// MasterVKFromDealings derives the master verification key directly from
	// the accepted dealings. Agents use it for the local derivation that
	// backs mismatch reports.
	MasterVKFromDealings(dealings [][]byte) ([]byte, error)

	// Digest produces the stable digest of a verification key used in
	// mismatch reports.
	Digest(vk []byte) []byte
}
