package dkg

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
)

// KeyGenState tracks the contribution of a single dealer: its commitment (set at most once) and the values other
// players sent for it, Values[j] = f(me+1, j+1). Acks[j] holds iff Values[j] is present.
type KeyGenState struct {
	commitment *math.BivariateCommitment
	values     []math.Scalar
}

func newKeyGenState(n int) KeyGenState {
	return KeyGenState{nil, make([]math.Scalar, n)}
}

// Commitment returns the dealer's commitment, or nil if none was received yet.
func (s *KeyGenState) Commitment() *math.BivariateCommitment {
	return s.commitment
}

// Acks returns, per player, whether a verified value was received from it.
func (s *KeyGenState) Acks() []bool {
	acks := make([]bool, len(s.values))
	for j, v := range s.values {
		acks[j] = v != nil
	}
	return acks
}

func (s *KeyGenState) ValueCount() int {
	count := 0
	for _, v := range s.values {
		if v != nil {
			count++
		}
	}
	return count
}

// InterpolateValues interpolates the received values (j+1, Values[j]) at 0. The result is this player's share
// f(me+1, 0) of the dealer's secret. It needs at least degree+1 values.
func (s *KeyGenState) InterpolateValues(degree int) (math.Scalar, error) {
	if s.ValueCount() < degree+1 {
		return nil, fmt.Errorf("got %d values, need %d to interpolate", s.ValueCount(), degree+1)
	}

	indices := make([]int, 0, len(s.values))
	ys := make([]math.Scalar, 0, len(s.values))
	for j, v := range s.values {
		if v != nil {
			indices = append(indices, j)
			ys = append(ys, v)
		}
	}

	ip, err := math.NewInterpolator(math.BLS12381G1, indices)
	if err != nil {
		return nil, err
	}
	return ip.ScalarAtZero(ys)
}

func (s *KeyGenState) zeroize() {
	for j, v := range s.values {
		if v != nil {
			v.Zeroize()
			s.values[j] = nil
		}
	}
}

// KeyGenState encoding: hasCommitment ∥ [commitment] ∥ n ∥ {hasValue ∥ [value]}[n].
func (s *KeyGenState) MarshalTo(target codec.Target) {
	target.WriteOptional(s.commitment)
	target.WriteInt(len(s.values))
	for _, v := range s.values {
		target.WriteOptional(v)
	}
}

func unmarshalKeyGenState(source codec.Source, n int, degree int) KeyGenState {
	s := newKeyGenState(n)
	if source.ReadBool() {
		s.commitment = math.UnmarshalBivariateCommitment(source, degree)
	}
	source.ReadIntInRange(n, n)
	for j := range s.values {
		s.values[j] = codec.ReadOptional(source, math.BLS12381G1.Scalar)
	}
	return s
}
