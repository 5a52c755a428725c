// Package beacon implements the threshold key generation arithmetic the
// agents run off chain. Every artifact crosses the package boundary as
// opaque bytes so that the coordinator contract and storage never depend on
// the curve or the wire encoding.
//
// The scheme is a Feldman verifiable secret sharing over edwards25519: a
// dealing carries the polynomial commitments plus one encrypted share per
// receiver, receivers decrypt and check their share against the
// commitments, and partial verification keys are public commitments to the
// aggregated shares.
package beacon

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v4"
	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/group/edwards25519"
	"go.dedis.ch/kyber/v4/share"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/module"
)

// Suite implements module.BeaconCrypto over edwards25519.
type Suite struct {
	suite *edwards25519.SuiteEd25519
}

var _ module.BeaconCrypto = (*Suite)(nil)

func NewSuite() *Suite {
	return &Suite{suite: edwards25519.NewBlakeSHA256Ed25519()}
}

// Digest produces the stable digest used when comparing verification keys.
func (s *Suite) Digest(vk []byte) []byte {
	digest := sha256.Sum256(vk)
	return digest[:]
}

// maskStream seeds a key stream from the Diffie-Hellman point and the
// receiver coordinate, so each encrypted share gets an independent mask.
func (s *Suite) maskStream(dh kyber.Point, index uint32) (kyber.XOF, error) {
	dhBytes, err := dh.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal DH point: %w", err)
	}
	seed := make([]byte, 0, len(dhBytes)+4)
	seed = append(seed, dhBytes...)
	seed = binary.BigEndian.AppendUint32(seed, index)
	return s.suite.XOF(seed), nil
}

func (s *Suite) unmarshalPoint(data []byte) (kyber.Point, error) {
	point := s.suite.Point()
	err := point.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}
	return point, nil
}

func (s *Suite) unmarshalScalar(data []byte) (kyber.Scalar, error) {
	scalar := s.suite.Scalar()
	err := scalar.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}
	return scalar, nil
}

// priShareWire is the serialized form of a private share: the Lagrange
// coordinate plus the scalar.
type priShareWire struct {
	I uint32
	V []byte
}

// pubShareWire is the serialized form of a partial verification key.
type pubShareWire struct {
	I uint32
	V []byte
}

func (s *Suite) encodePriShare(sh *share.PriShare) ([]byte, error) {
	v, err := sh.V.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal share scalar: %w", err)
	}
	return msgpack.Marshal(priShareWire{I: sh.I, V: v})
}

func (s *Suite) decodePriShare(data []byte) (*share.PriShare, error) {
	var wire priShareWire
	err := msgpack.Unmarshal(data, &wire)
	if err != nil {
		return nil, fmt.Errorf("could not decode private share: %w", err)
	}
	v, err := s.unmarshalScalar(wire.V)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal share scalar: %w", err)
	}
	return &share.PriShare{I: wire.I, V: v}, nil
}

func (s *Suite) encodePubShare(sh *share.PubShare) ([]byte, error) {
	v, err := sh.V.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal share point: %w", err)
	}
	return msgpack.Marshal(pubShareWire{I: sh.I, V: v})
}

func (s *Suite) decodePubShare(data []byte) (*share.PubShare, error) {
	var wire pubShareWire
	err := msgpack.Unmarshal(data, &wire)
	if err != nil {
		return nil, fmt.Errorf("could not decode public share: %w", err)
	}
	v, err := s.unmarshalPoint(wire.V)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal share point: %w", err)
	}
	return &share.PubShare{I: wire.I, V: v}, nil
}

// ShareIndex returns the Lagrange coordinate a serialized private share was
// issued for.
func (s *Suite) ShareIndex(privateShare []byte) (dkg.NodeIndex, error) {
	sh, err := s.decodePriShare(privateShare)
	if err != nil {
		return 0, err
	}
	return dkg.NodeIndex(sh.I), nil
}
