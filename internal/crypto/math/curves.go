package math

import (
	"fmt"

	"filippo.io/nistec"
	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/cloudflare/circl/ecc/bls12381"
)

var SupportedCurves = []Curve{
	BLS12381G1,
	BLS12381G2,
	P256,
}

var (
	// r = 0x73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001, shared by G1, G2 and GT.
	bls12381GroupOrder = NewModulus("52435875175126190479447740508185965837690552500527637822603658699938581184513")

	// NIST 800-186, Section 3.2.1.3
	p256GroupOrder = NewModulus("115792089210356248762697446949407573529996955224135760342422259061068512044369")
)

const (
	g1CompressedLength   = bls12381.G1SizeCompressed
	g2CompressedLength   = bls12381.G2SizeCompressed
	p256CompressedLength = 33
)

type bls12381G1Curve struct{}
type bls12381G2Curve struct{}
type p256Curve struct{}

// BLS12381G1 and BLS12381G2 are the source groups of the BLS12-381 pairing. They share the scalar field Fr.
var BLS12381G1 = &bls12381G1Curve{}
var BLS12381G2 = &bls12381G2Curve{}

// P256 is used for the long-term identity keys of the participants only.
var P256 = &p256Curve{}

func (c *bls12381G1Curve) internal() {}
func (c *bls12381G2Curve) internal() {}
func (c *p256Curve) internal()       {}

func (c *bls12381G1Curve) Name() string { return "BLS12381G1" }
func (c *bls12381G2Curve) Name() string { return "BLS12381G2" }
func (c *p256Curve) Name() string       { return "P256" }

func (c *bls12381G1Curve) GroupOrder() *Modulus { return bls12381GroupOrder }
func (c *bls12381G2Curve) GroupOrder() *Modulus { return bls12381GroupOrder }
func (c *p256Curve) GroupOrder() *Modulus       { return p256GroupOrder }

func (c *bls12381G1Curve) Scalar() Scalar { return NewScalar(bls12381GroupOrder) }
func (c *bls12381G2Curve) Scalar() Scalar { return NewScalar(bls12381GroupOrder) }
func (c *p256Curve) Scalar() Scalar       { return NewScalar(p256GroupOrder) }

func (c *bls12381G1Curve) Point() Point { return newG1Point() }
func (c *bls12381G2Curve) Point() Point { return newG2Point() }
func (c *p256Curve) Point() Point       { return &P256Point{*nistec.NewP256Point()} }

func (c *bls12381G1Curve) Generator() Point { return &G1Point{*bls12381.G1Generator()} }
func (c *bls12381G2Curve) Generator() Point { return &G2Point{*bls12381.G2Generator()} }
func (c *p256Curve) Generator() Point       { return &P256Point{*nistec.NewP256Point().SetGenerator()} }

func (c *bls12381G1Curve) ScalarBytes() int { return bls12381.ScalarSize }
func (c *bls12381G2Curve) ScalarBytes() int { return bls12381.ScalarSize }
func (c *p256Curve) ScalarBytes() int       { return 32 }

func (c *bls12381G1Curve) PointBytes() int { return g1CompressedLength }
func (c *bls12381G2Curve) PointBytes() int { return g2CompressedLength }
func (c *p256Curve) PointBytes() int       { return p256CompressedLength }

func (c *bls12381G1Curve) MarshalTo(target codec.Target) { target.WriteBytes([]byte{curveToIndex(c)}) }
func (c *bls12381G2Curve) MarshalTo(target codec.Target) { target.WriteBytes([]byte{curveToIndex(c)}) }
func (c *p256Curve) MarshalTo(target codec.Target)       { target.WriteBytes([]byte{curveToIndex(c)}) }

func UnmarshalCurve(src codec.Source) Curve {
	var index [1]byte
	src.ReadBytesInto(index[:])
	if int(index[0]) >= len(SupportedCurves) {
		panic(fmt.Sprintf("curve lookup failed, index: %d", index[0]))
	}
	return SupportedCurves[index[0]]
}

func curveToIndex(curve Curve) byte {
	for i, c := range SupportedCurves {
		if c == curve {
			return byte(i)
		}
	}
	panic("curve not found in SupportedCurves")
}
