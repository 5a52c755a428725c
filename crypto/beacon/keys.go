package beacon

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/util/random"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// keyPairWire is the keystore form of a dealer key pair. The proof is a
// Schnorr signature over the public key, which demonstrates possession of
// the private scalar and keeps rogue-key registrations out of the cohort.
type keyPairWire struct {
	Private []byte
	Public  []byte
	Proof   []byte
}

// publicKeyWire is the on-chain form: the public point plus its proof.
type publicKeyWire struct {
	Public []byte
	Proof  []byte
}

// GenerateKeyPair produces a fresh key pair with its proof of possession.
func (s *Suite) GenerateKeyPair() ([]byte, error) {

	private := s.suite.Scalar().Pick(random.New())
	public := s.suite.Point().Mul(private, nil)

	publicBytes, err := public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal public key: %w", err)
	}
	privateBytes, err := private.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal private key: %w", err)
	}

	proof, err := schnorr.Sign(s.suite, private, publicBytes)
	if err != nil {
		return nil, fmt.Errorf("could not sign possession proof: %w", err)
	}

	return msgpack.Marshal(keyPairWire{
		Private: privateBytes,
		Public:  publicBytes,
		Proof:   proof,
	})
}

// PublicKeyWithProof extracts the shareable part of a serialized key pair.
func (s *Suite) PublicKeyWithProof(keyPair []byte) ([]byte, error) {
	var wire keyPairWire
	err := msgpack.Unmarshal(keyPair, &wire)
	if err != nil {
		return nil, fmt.Errorf("could not decode key pair: %w", err)
	}
	return msgpack.Marshal(publicKeyWire{
		Public: wire.Public,
		Proof:  wire.Proof,
	})
}

// VerifyKeyProof checks the proof of possession bundled with a public key.
func (s *Suite) VerifyKeyProof(publicKeyWithProof []byte) error {

	var wire publicKeyWire
	err := msgpack.Unmarshal(publicKeyWithProof, &wire)
	if err != nil {
		return dkg.NewInvalidProofErrorf("could not decode public key: %v", err)
	}

	public, err := s.unmarshalPoint(wire.Public)
	if err != nil {
		return dkg.NewInvalidProofErrorf("could not unmarshal public key: %v", err)
	}

	err = schnorr.Verify(s.suite, public, wire.Public, wire.Proof)
	if err != nil {
		return dkg.NewInvalidProofErrorf("possession proof does not verify: %v", err)
	}
	return nil
}
