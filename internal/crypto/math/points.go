package math

import (
	"crypto/subtle"
	"fmt"

	"filippo.io/nistec"
	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/cloudflare/circl/ecc/bls12381"
)

// blsScalar converts x into the scalar representation of the pairing library. x must be reduced mod the BLS12-381
// group order.
func blsScalar(x Scalar) *bls12381.Scalar {
	if !x.Modulus().Equal(bls12381GroupOrder) {
		panic("scalar is not an element of the BLS12-381 scalar field")
	}
	k := new(bls12381.Scalar)
	k.SetBytes(x.Bytes())
	return k
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

type G1Point struct {
	value bls12381.G1
}

func newG1Point() *G1Point {
	p := &G1Point{}
	p.value.SetIdentity()
	return p
}

func (v *G1Point) Curve() Curve {
	return BLS12381G1
}

func (v *G1Point) New() Point {
	return newG1Point()
}

func (v *G1Point) Clone() Point {
	return &G1Point{v.value}
}

func (v *G1Point) Set(u Point) Point {
	v.value = u.(*G1Point).value
	return v
}

func (v *G1Point) Add(p Point, q Point) Point {
	v.value.Add(&p.(*G1Point).value, &q.(*G1Point).value)
	return v
}

func (v *G1Point) Subtract(p Point, q Point) Point {
	negQ := q.(*G1Point).value
	negQ.Neg()
	v.value.Add(&p.(*G1Point).value, &negQ)
	return v
}

func (v *G1Point) Negate(p Point) Point {
	v.value = p.(*G1Point).value
	v.value.Neg()
	return v
}

func (v *G1Point) ScalarBaseMult(x Scalar) Point {
	v.value.ScalarMult(blsScalar(x), bls12381.G1Generator())
	return v
}

func (v *G1Point) ScalarMult(x Scalar, q Point) Point {
	v.value.ScalarMult(blsScalar(x), &q.(*G1Point).value)
	return v
}

func (v *G1Point) Equal(q Point) bool {
	u, ok := q.(*G1Point)
	return ok && v.value.IsEqual(&u.value)
}

func (v *G1Point) IsIdentity() bool {
	return v.value.IsIdentity()
}

func (v *G1Point) Bytes() []byte {
	return v.value.BytesCompressed()
}

func (v *G1Point) SetBytes(x []byte) (Point, error) {
	if len(x) != g1CompressedLength {
		return nil, fmt.Errorf("invalid G1 point length: %d, expected: %d (compressed format)", len(x), g1CompressedLength)
	}
	var p bls12381.G1
	if err := p.SetBytes(x); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(p.BytesCompressed(), x) != 1 {
		return nil, fmt.Errorf("invalid G1 point: not in canonical form")
	}
	v.value = p
	return v, nil
}

func (v *G1Point) MarshalTo(target codec.Target) {
	target.WriteBytes(v.value.BytesCompressed())
}

func (v *G1Point) UnmarshalFrom(source codec.Source) Point {
	if _, err := v.SetBytes(source.ReadBytes(g1CompressedLength)); err != nil {
		panic("failed to unmarshal G1 point: " + err.Error())
	}
	return v
}

func (v *G1Point) IsNil() bool {
	return v == nil
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

type G2Point struct {
	value bls12381.G2
}

func newG2Point() *G2Point {
	p := &G2Point{}
	p.value.SetIdentity()
	return p
}

func (v *G2Point) Curve() Curve {
	return BLS12381G2
}

func (v *G2Point) New() Point {
	return newG2Point()
}

func (v *G2Point) Clone() Point {
	return &G2Point{v.value}
}

func (v *G2Point) Set(u Point) Point {
	v.value = u.(*G2Point).value
	return v
}

func (v *G2Point) Add(p Point, q Point) Point {
	v.value.Add(&p.(*G2Point).value, &q.(*G2Point).value)
	return v
}

func (v *G2Point) Subtract(p Point, q Point) Point {
	negQ := q.(*G2Point).value
	negQ.Neg()
	v.value.Add(&p.(*G2Point).value, &negQ)
	return v
}

func (v *G2Point) Negate(p Point) Point {
	v.value = p.(*G2Point).value
	v.value.Neg()
	return v
}

func (v *G2Point) ScalarBaseMult(x Scalar) Point {
	v.value.ScalarMult(blsScalar(x), bls12381.G2Generator())
	return v
}

func (v *G2Point) ScalarMult(x Scalar, q Point) Point {
	v.value.ScalarMult(blsScalar(x), &q.(*G2Point).value)
	return v
}

func (v *G2Point) Equal(q Point) bool {
	u, ok := q.(*G2Point)
	return ok && v.value.IsEqual(&u.value)
}

func (v *G2Point) IsIdentity() bool {
	return v.value.IsIdentity()
}

func (v *G2Point) Bytes() []byte {
	return v.value.BytesCompressed()
}

func (v *G2Point) SetBytes(x []byte) (Point, error) {
	if len(x) != g2CompressedLength {
		return nil, fmt.Errorf("invalid G2 point length: %d, expected: %d (compressed format)", len(x), g2CompressedLength)
	}
	var p bls12381.G2
	if err := p.SetBytes(x); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(p.BytesCompressed(), x) != 1 {
		return nil, fmt.Errorf("invalid G2 point: not in canonical form")
	}
	v.value = p
	return v, nil
}

func (v *G2Point) MarshalTo(target codec.Target) {
	target.WriteBytes(v.value.BytesCompressed())
}

func (v *G2Point) UnmarshalFrom(source codec.Source) Point {
	if _, err := v.SetBytes(source.ReadBytes(g2CompressedLength)); err != nil {
		panic("failed to unmarshal G2 point: " + err.Error())
	}
	return v
}

func (v *G2Point) IsNil() bool {
	return v == nil
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

type P256Point struct {
	value nistec.P256Point
}

func (v *P256Point) Curve() Curve {
	return P256
}

func (v *P256Point) New() Point {
	return &P256Point{*nistec.NewP256Point()}
}

func (v *P256Point) Clone() Point {
	return &P256Point{*nistec.NewP256Point().Set(&v.value)}
}

func (v *P256Point) Set(u Point) Point {
	v.value.Set(&u.(*P256Point).value)
	return v
}

func (v *P256Point) Add(p Point, q Point) Point {
	v.value.Add(&p.(*P256Point).value, &q.(*P256Point).value)
	return v
}

func (v *P256Point) Subtract(p Point, q Point) Point {
	negQ := nistec.NewP256Point().Negate(&q.(*P256Point).value)
	v.value.Add(&p.(*P256Point).value, negQ)
	return v
}

func (v *P256Point) Negate(p Point) Point {
	v.value.Negate(&p.(*P256Point).value)
	return v
}

func (v *P256Point) ScalarBaseMult(x Scalar) Point {
	_, _ = v.value.ScalarBaseMult(x.Bytes())
	return v
}

func (v *P256Point) ScalarMult(x Scalar, q Point) Point {
	_, _ = v.value.ScalarMult(&q.(*P256Point).value, x.Bytes())
	return v
}

func (v *P256Point) Equal(q Point) bool {
	u, ok := q.(*P256Point)
	return ok && subtle.ConstantTimeCompare(v.value.BytesCompressed(), u.value.BytesCompressed()) == 1
}

func (v *P256Point) IsIdentity() bool {
	// The identity is the only point with a single byte encoding.
	return len(v.value.BytesCompressed()) == 1
}

func (v *P256Point) Bytes() []byte {
	return v.value.BytesCompressed()
}

func (v *P256Point) SetBytes(x []byte) (Point, error) {
	if len(x) != p256CompressedLength {
		return nil, fmt.Errorf("invalid P256 point length: %d, expected: %d (compressed format)", len(x), p256CompressedLength)
	}
	p, err := nistec.NewP256Point().SetBytes(x)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(p.BytesCompressed(), x) != 1 {
		return nil, fmt.Errorf("invalid P256 point: not in canonical form")
	}
	v.value.Set(p)
	return v, nil
}

func (v *P256Point) MarshalTo(target codec.Target) {
	target.WriteBytes(v.value.BytesCompressed())
}

func (v *P256Point) UnmarshalFrom(source codec.Source) Point {
	if _, err := v.SetBytes(source.ReadBytes(p256CompressedLength)); err != nil {
		panic("failed to unmarshal P256 point: " + err.Error())
	}
	return v
}

func (v *P256Point) IsNil() bool {
	return v == nil
}
