package beacon

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v4"
	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/share"
	"go.dedis.ch/kyber/v4/util/random"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/module"
)

// dealingWire is the on-chain form of a dealing: the Feldman commitments of
// a fresh degree-(t-1) polynomial, plus one encrypted evaluation per
// receiver coordinate.
type dealingWire struct {
	Commitments [][]byte
	Shares      map[uint32]encShareWire
}

// encShareWire carries one receiver's share, masked with a key stream
// seeded from the Diffie-Hellman point between the dealing's ephemeral key
// and the receiver's registered public key.
type encShareWire struct {
	Ephemeral []byte
	Cipher    []byte
}

// GenerateDealing commits to a fresh random polynomial of degree
// threshold-1 and encrypts one evaluation for every receiver. The key pair
// is decoded up front so a corrupted keystore entry fails before anything
// hits the chain.
func (s *Suite) GenerateDealing(keyPair []byte, threshold uint64, receivers []module.Receiver) ([]byte, error) {

	var kp keyPairWire
	err := msgpack.Unmarshal(keyPair, &kp)
	if err != nil {
		return nil, fmt.Errorf("could not decode key pair: %w", err)
	}

	return s.deal(nil, threshold, receivers)
}

// GenerateResharingDealing commits to a polynomial whose constant term is
// the dealer's prior private share, weighted by the Lagrange coefficient of
// its prior coordinate over the resharing cohort. The constant commitments
// of the cohort's dealings then sum to the prior epoch's master key, so a
// reset extends the established key instead of replacing it. The cohort is
// the prior-epoch coordinates of all resharing dealers, and must include
// the coordinate the prior share was issued for.
func (s *Suite) GenerateResharingDealing(keyPair []byte, priorShare []byte, cohort []dkg.NodeIndex, threshold uint64, receivers []module.Receiver) ([]byte, error) {

	var kp keyPairWire
	err := msgpack.Unmarshal(keyPair, &kp)
	if err != nil {
		return nil, fmt.Errorf("could not decode key pair: %w", err)
	}

	prior, err := s.decodePriShare(priorShare)
	if err != nil {
		return nil, fmt.Errorf("could not decode prior share: %w", err)
	}

	lambda, err := s.lagrangeAtZero(prior.I, cohort)
	if err != nil {
		return nil, err
	}
	constant := s.suite.Scalar().Mul(lambda, prior.V)

	return s.deal(constant, threshold, receivers)
}

// deal builds the dealing wire form around the polynomial with the given
// constant term (nil picks a random one).
func (s *Suite) deal(constant kyber.Scalar, threshold uint64, receivers []module.Receiver) ([]byte, error) {

	priPoly := share.NewPriPoly(s.suite, int(threshold), constant, random.New())
	pubPoly := priPoly.Commit(s.suite.Point().Base())
	_, commits := pubPoly.Info()

	commitments := make([][]byte, 0, len(commits))
	for _, commit := range commits {
		data, err := commit.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("could not marshal commitment: %w", err)
		}
		commitments = append(commitments, data)
	}

	shares := make(map[uint32]encShareWire, len(receivers))
	for _, receiver := range receivers {

		var pub publicKeyWire
		err := msgpack.Unmarshal(receiver.PublicKey, &pub)
		if err != nil {
			return nil, fmt.Errorf("could not decode public key of receiver %d: %w", receiver.Index, err)
		}
		receiverPoint, err := s.unmarshalPoint(pub.Public)
		if err != nil {
			return nil, fmt.Errorf("could not unmarshal public key of receiver %d: %w", receiver.Index, err)
		}

		index, err := coordinateOf(receiver.Index)
		if err != nil {
			return nil, err
		}
		eval := priPoly.Eval(index)

		ephemeralScalar := s.suite.Scalar().Pick(random.New())
		ephemeral := s.suite.Point().Mul(ephemeralScalar, nil)
		dh := s.suite.Point().Mul(ephemeralScalar, receiverPoint)

		stream, err := s.maskStream(dh, index)
		if err != nil {
			return nil, err
		}
		mask := s.suite.Scalar().Pick(stream)
		cipher := s.suite.Scalar().Add(eval.V, mask)

		ephemeralBytes, err := ephemeral.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("could not marshal ephemeral key: %w", err)
		}
		cipherBytes, err := cipher.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("could not marshal encrypted share: %w", err)
		}

		shares[index] = encShareWire{
			Ephemeral: ephemeralBytes,
			Cipher:    cipherBytes,
		}
	}

	return msgpack.Marshal(dealingWire{
		Commitments: commitments,
		Shares:      shares,
	})
}

// VerifyDealingShape structurally verifies a dealing against the epoch
// parameters: exactly threshold well-formed commitments and one
// well-formed encrypted share per receiver. It cannot check share
// consistency, which only the addressed receiver can do.
func (s *Suite) VerifyDealingShape(dealing []byte, threshold uint64, receivers []module.Receiver) error {

	wire, err := s.decodeDealing(dealing)
	if err != nil {
		return dkg.NewInvalidProofErrorf("could not decode dealing: %v", err)
	}

	if uint64(len(wire.Commitments)) != threshold {
		return dkg.NewInvalidProofErrorf("dealing has %d commitments, need %d", len(wire.Commitments), threshold)
	}
	for i, commitment := range wire.Commitments {
		_, err := s.unmarshalPoint(commitment)
		if err != nil {
			return dkg.NewInvalidProofErrorf("commitment %d is not a curve point: %v", i, err)
		}
	}

	for _, receiver := range receivers {
		enc, ok := wire.Shares[uint32(receiver.Index)]
		if !ok {
			return dkg.NewInvalidProofErrorf("dealing has no share for receiver %d", receiver.Index)
		}
		_, err := s.unmarshalPoint(enc.Ephemeral)
		if err != nil {
			return dkg.NewInvalidProofErrorf("ephemeral key for receiver %d is not a curve point: %v", receiver.Index, err)
		}
		_, err = s.unmarshalScalar(enc.Cipher)
		if err != nil {
			return dkg.NewInvalidProofErrorf("encrypted share for receiver %d is not a scalar: %v", receiver.Index, err)
		}
	}

	return nil
}

// RecoverShare decrypts this receiver's share from a dealing and checks it
// against the dealing's commitments. A share that fails the commitment
// check is evidence for a complaint against the dealer.
func (s *Suite) RecoverShare(dealing []byte, keyPair []byte, myIndex dkg.NodeIndex) ([]byte, error) {

	var kp keyPairWire
	err := msgpack.Unmarshal(keyPair, &kp)
	if err != nil {
		return nil, fmt.Errorf("could not decode key pair: %w", err)
	}
	private, err := s.unmarshalScalar(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal private key: %w", err)
	}

	wire, err := s.decodeDealing(dealing)
	if err != nil {
		return nil, dkg.NewInvalidProofErrorf("could not decode dealing: %v", err)
	}

	index, err := coordinateOf(myIndex)
	if err != nil {
		return nil, err
	}
	enc, ok := wire.Shares[index]
	if !ok {
		return nil, dkg.NewInvalidProofErrorf("dealing has no share for receiver %d", myIndex)
	}

	ephemeral, err := s.unmarshalPoint(enc.Ephemeral)
	if err != nil {
		return nil, dkg.NewInvalidProofErrorf("ephemeral key is not a curve point: %v", err)
	}
	cipher, err := s.unmarshalScalar(enc.Cipher)
	if err != nil {
		return nil, dkg.NewInvalidProofErrorf("encrypted share is not a scalar: %v", err)
	}

	dh := s.suite.Point().Mul(private, ephemeral)
	stream, err := s.maskStream(dh, index)
	if err != nil {
		return nil, err
	}
	mask := s.suite.Scalar().Pick(stream)
	value := s.suite.Scalar().Sub(cipher, mask)

	pubPoly, err := s.pubPolyOf(wire)
	if err != nil {
		return nil, dkg.NewInvalidProofErrorf("could not rebuild commitment polynomial: %v", err)
	}

	expected := pubPoly.Eval(index).V
	actual := s.suite.Point().Mul(value, nil)
	if !actual.Equal(expected) {
		return nil, dkg.NewInvalidProofErrorf("decrypted share does not match commitments at index %d", myIndex)
	}

	return s.encodePriShare(&share.PriShare{I: index, V: value})
}

// AggregateShares sums the shares recovered from all accepted dealings into
// the dealer's threshold private share for the epoch.
func (s *Suite) AggregateShares(shares [][]byte) ([]byte, error) {

	if len(shares) == 0 {
		return nil, fmt.Errorf("no shares to aggregate")
	}

	total := s.suite.Scalar().Zero()
	var index uint32
	for i, data := range shares {
		sh, err := s.decodePriShare(data)
		if err != nil {
			return nil, fmt.Errorf("could not decode share %d: %w", i, err)
		}
		if i == 0 {
			index = sh.I
		} else if sh.I != index {
			return nil, fmt.Errorf("share %d has coordinate %d, others have %d", i, sh.I, index)
		}
		total = total.Add(total, sh.V)
	}

	return s.encodePriShare(&share.PriShare{I: index, V: total})
}

func (s *Suite) decodeDealing(data []byte) (*dealingWire, error) {
	var wire dealingWire
	err := msgpack.Unmarshal(data, &wire)
	if err != nil {
		return nil, err
	}
	return &wire, nil
}

// lagrangeAtZero computes the Lagrange basis coefficient at zero for the
// given coordinate over the cohort of coordinates. Polynomial evaluation
// maps coordinate i to abscissa i+1, so the coefficients follow the same
// convention.
func (s *Suite) lagrangeAtZero(mine uint32, cohort []dkg.NodeIndex) (kyber.Scalar, error) {

	xi := s.suite.Scalar().SetInt64(int64(mine) + 1)
	num := s.suite.Scalar().One()
	den := s.suite.Scalar().One()

	found := false
	for _, member := range cohort {
		coord, err := coordinateOf(member)
		if err != nil {
			return nil, err
		}
		if coord == mine {
			found = true
			continue
		}
		xj := s.suite.Scalar().SetInt64(int64(coord) + 1)
		num = num.Mul(num, xj)
		den = den.Mul(den, s.suite.Scalar().Sub(xj, xi))
	}
	if !found {
		return nil, fmt.Errorf("coordinate %d is not part of the resharing cohort", mine)
	}

	return num.Div(num, den), nil
}

// coordinateOf converts a node index into the 32-bit evaluation coordinate
// the polynomial arithmetic uses.
func coordinateOf(index dkg.NodeIndex) (uint32, error) {
	if index > math.MaxUint32 {
		return 0, fmt.Errorf("node index %d exceeds the coordinate space", index)
	}
	return uint32(index), nil
}

// pubPolyOf rebuilds the commitment polynomial of a dealing.
func (s *Suite) pubPolyOf(wire *dealingWire) (*share.PubPoly, error) {
	commits := make([]kyber.Point, 0, len(wire.Commitments))
	for i, data := range wire.Commitments {
		point, err := s.unmarshalPoint(data)
		if err != nil {
			return nil, fmt.Errorf("commitment %d is not a curve point: %w", i, err)
		}
		commits = append(commits, point)
	}
	return share.NewPubPoly(s.suite, s.suite.Point().Base(), commits), nil
}
