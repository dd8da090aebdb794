package math

import "github.com/bftkit/thresholdcore/internal/codec"

type Point interface {
	codec.Codec[Point]

	// v.Curve() returns the group the point belongs to.
	Curve() Curve

	// v.New() returns a new point of the same group, set to the identity element.
	New() Point

	// v.Clone() returns a copy of v.
	Clone() Point

	// v.Set(u) sets v = u, and returns v.
	Set(u Point) Point

	// v.Add(p, q) sets v = p + q, and returns v.
	Add(p, q Point) Point

	// v.Subtract(p, q) sets v = p - q, and returns v.
	Subtract(p, q Point) Point

	// v.Negate(p) sets v = -p, and returns v.
	Negate(p Point) Point

	// v.ScalarBaseMult(x) sets v = x * G, where G is the generator of the group, and returns v.
	ScalarBaseMult(x Scalar) Point

	// v.ScalarMult(x, q) sets v = x * q, and returns v.
	ScalarMult(x Scalar, q Point) Point

	// v.Equal(u) reports whether v and u represent the same group element.
	Equal(u Point) bool

	// v.IsIdentity() reports whether v is the identity element.
	IsIdentity() bool

	// v.Bytes() returns the canonical compressed encoding of v, all points of a group encode to the same length.
	Bytes() []byte

	// v.SetBytes(x) sets v to the point encoded by x. Only canonical compressed encodings of elements of the prime
	// order group are accepted. Otherwise SetBytes returns nil and an error, and the receiver is unchanged.
	SetBytes(x []byte) (Point, error)
}

type Points []Point

// Sum returns the sum of all points, or nil if p is empty.
func (p Points) Sum() Point {
	var result Point
	for _, pᵢ := range p {
		if result == nil {
			result = pᵢ.Clone()
		} else {
			result.Add(result, pᵢ)
		}
	}
	return result
}

// Equal reports whether both lists hold the same points in the same order.
func (p Points) Equal(q Points) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if !p[i].Equal(q[i]) {
			return false
		}
	}
	return true
}

func (p Points) MarshalTo(target codec.Target) {
	for _, pᵢ := range p {
		pᵢ.MarshalTo(target)
	}
}

// UnmarshalPoints reads n points of the given curve.
func UnmarshalPoints(source codec.Source, curve Curve, n int) Points {
	result := make(Points, n)
	for i := range result {
		result[i] = curve.Point().UnmarshalFrom(source)
	}
	return result
}
