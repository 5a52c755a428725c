package beacon

import (
	"fmt"

	"go.dedis.ch/kyber/v4/share"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// PartialVK derives the partial verification key for a private share: the
// public commitment to the aggregated scalar, tagged with its Lagrange
// coordinate.
func (s *Suite) PartialVK(privateShare []byte, index dkg.NodeIndex) ([]byte, error) {

	sh, err := s.decodePriShare(privateShare)
	if err != nil {
		return nil, err
	}
	coord, err := coordinateOf(index)
	if err != nil {
		return nil, err
	}
	if sh.I != coord {
		return nil, fmt.Errorf("share has coordinate %d, want %d", sh.I, index)
	}

	return s.encodePubShare(&share.PubShare{
		I: sh.I,
		V: s.suite.Point().Mul(sh.V, nil),
	})
}

// ExpectedPartialVK computes, from the accepted dealings alone, the partial
// verification key the dealer at the given coordinate must submit: the sum
// of every dealing's commitment polynomial evaluated at that coordinate.
func (s *Suite) ExpectedPartialVK(dealings [][]byte, index dkg.NodeIndex) ([]byte, error) {

	if len(dealings) == 0 {
		return nil, fmt.Errorf("no dealings to evaluate")
	}
	coord, err := coordinateOf(index)
	if err != nil {
		return nil, err
	}

	total := s.suite.Point().Null()
	for i, data := range dealings {
		wire, err := s.decodeDealing(data)
		if err != nil {
			return nil, fmt.Errorf("could not decode dealing %d: %w", i, err)
		}
		pubPoly, err := s.pubPolyOf(wire)
		if err != nil {
			return nil, fmt.Errorf("dealing %d: %w", i, err)
		}
		total = total.Add(total, pubPoly.Eval(coord).V)
	}

	return s.encodePubShare(&share.PubShare{I: coord, V: total})
}

// MasterVK recovers the master verification key from at least threshold
// partial keys by Lagrange interpolation in the exponent.
func (s *Suite) MasterVK(partials [][]byte, threshold uint64) ([]byte, error) {

	if uint64(len(partials)) < threshold {
		return nil, fmt.Errorf("have %d partial keys, need %d", len(partials), threshold)
	}

	shares := make([]*share.PubShare, 0, len(partials))
	for i, data := range partials {
		sh, err := s.decodePubShare(data)
		if err != nil {
			return nil, fmt.Errorf("could not decode partial key %d: %w", i, err)
		}
		shares = append(shares, sh)
	}

	master, err := share.RecoverCommit(s.suite, shares, int(threshold), len(shares))
	if err != nil {
		return nil, fmt.Errorf("could not interpolate master key: %w", err)
	}

	return master.MarshalBinary()
}

// MasterVKFromDealings derives the master verification key directly from the
// accepted dealings: each dealing's constant commitment is its contribution
// to the master secret's public image, so the master key is their sum.
func (s *Suite) MasterVKFromDealings(dealings [][]byte) ([]byte, error) {

	if len(dealings) == 0 {
		return nil, fmt.Errorf("no dealings to derive from")
	}

	total := s.suite.Point().Null()
	for i, data := range dealings {
		wire, err := s.decodeDealing(data)
		if err != nil {
			return nil, fmt.Errorf("could not decode dealing %d: %w", i, err)
		}
		if len(wire.Commitments) == 0 {
			return nil, fmt.Errorf("dealing %d has no commitments", i)
		}
		constant, err := s.unmarshalPoint(wire.Commitments[0])
		if err != nil {
			return nil, fmt.Errorf("dealing %d: constant commitment is not a curve point: %w", i, err)
		}
		total = total.Add(total, constant)
	}

	return total.MarshalBinary()
}
