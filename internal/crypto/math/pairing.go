package math

import "github.com/cloudflare/circl/ecc/bls12381"

// GT is an element of the pairing target group. Only equality tests are needed by this module.
type GT struct {
	value *bls12381.Gt
}

// Pair computes e(p, q) for p ∈ G1 and q ∈ G2.
// The result is the identity if either argument is the identity.
func Pair(p Point, q Point) GT {
	P, Q := &p.(*G1Point).value, &q.(*G2Point).value
	if P.IsIdentity() || Q.IsIdentity() {
		one := &bls12381.Gt{}
		one.SetIdentity()
		return GT{one}
	}
	return GT{bls12381.Pair(P, Q)}
}

func (z GT) Equal(u GT) bool {
	return z.value.IsEqual(u.value)
}

func (z GT) IsIdentity() bool {
	return z.value.IsIdentity()
}

// PairingEqual reports whether e(a1, b1) == e(a2, b2), for a1, a2 ∈ G1 and b1, b2 ∈ G2.
func PairingEqual(a1 Point, b1 Point, a2 Point, b2 Point) bool {
	return Pair(a1, b1).Equal(Pair(a2, b2))
}

// HashToG1 maps msg to a point of G1 (hash_to_curve, random oracle variant) using the given domain separation tag.
func HashToG1(msg []byte, dst string) Point {
	p := newG1Point()
	p.value.Hash(msg, []byte(dst))
	return p
}

// HashToG2 maps msg to a point of G2 (hash_to_curve, random oracle variant) using the given domain separation tag.
func HashToG2(msg []byte, dst string) Point {
	p := newG2Point()
	p.value.Hash(msg, []byte(dst))
	return p
}
