// Constant time scalar arithmetic based on the bigmod package from Go's internal stdlib, exported via
// filippo.io/bigmod.

package math

import (
	"crypto/subtle"
	"io"
	"math/big"

	"filippo.io/bigmod"
	"github.com/bftkit/thresholdcore/internal/codec"
)

// Scalar is an element of the field of integers modulo a prime group order. Scalars of different moduli must not be
// mixed, any arithmetic operation on scalars with different moduli panics.
type Scalar = *scalar
type Scalars []Scalar

type Nat = *bigmod.Nat

var _ codec.Codec[*scalar] = &scalar{}

type scalar struct {
	value   Nat
	modulus *Modulus
}

// NewScalar returns the zero scalar mod m.
func NewScalar(m *Modulus) Scalar {
	return &scalar{bigmod.NewNat().ExpandFor(&m.value), m}
}

// NewScalarFromString parses a decimal value smaller than the modulus. Non-constant time, for tests and
// initialization only.
func NewScalarFromString(value string, modulus *Modulus) Scalar {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid scalar value: " + value)
	}
	valueParsed, err := bigmod.NewNat().SetBytes(n.Bytes(), &modulus.value)
	if err != nil {
		panic("invalid scalar value: " + value + ", error: " + err.Error())
	}
	return &scalar{valueParsed.ExpandFor(&modulus.value), modulus}
}

func (x *scalar) IsNil() bool {
	return x == nil
}

// x.Set(y) copies the value of y into x and returns x.
func (x *scalar) Set(y Scalar) Scalar {
	requireEqualModulus(x, y)
	copy(x.value.Bits(), y.value.Bits())
	return x
}

// x.SetUint(y) sets x = y and returns x. y must be smaller than the modulus.
func (x *scalar) SetUint(y uint) Scalar {
	x.value.SetUint(y).ExpandFor(&x.modulus.value)
	return x
}

// x.SetBytes(y) sets x to the canonical big-endian encoding y. If y is not smaller than the modulus, an error is
// returned and the receiver is unchanged.
func (x *scalar) SetBytes(y []byte) (Scalar, error) {
	if _, err := x.value.SetBytes(y, &x.modulus.value); err != nil {
		return nil, err
	}
	return x, nil
}

// SetRandom sets x to a value statistically close to uniform in [0, modulus). It reads exactly Size()+16 bytes from
// rand, so a deterministic reader yields a deterministic scalar. It is also used to map XOF output to scalars.
func (x *scalar) SetRandom(rand io.Reader) (Scalar, error) {
	rngBytes := make([]byte, x.modulus.Size()+16)
	if _, err := io.ReadFull(rand, rngBytes); err != nil {
		return nil, err
	}

	// A modulus larger than any value of rngBytes, so loading the bytes needs no reduction.
	largeModBytes := make([]byte, len(rngBytes)+1)
	largeModBytes[0] = 1
	largeMod, err := bigmod.NewModulus(largeModBytes)
	if err != nil {
		return nil, err
	}

	t := bigmod.NewNat()
	if _, err := t.SetBytes(rngBytes, largeMod); err != nil {
		return nil, err
	}
	x.value.Mod(t, &x.modulus.value)
	clear(rngBytes)
	return x, nil
}

// x.Add(y) computes x = x + y and returns x.
func (x *scalar) Add(y Scalar) Scalar {
	requireEqualModulus(x, y)
	x.value.Add(y.value, &x.modulus.value)
	return x
}

// x.Subtract(y) computes x = x - y and returns x.
func (x *scalar) Subtract(y Scalar) Scalar {
	requireEqualModulus(x, y)
	x.value.Sub(y.value, &x.modulus.value)
	return x
}

// x.Multiply(y) computes x = x * y and returns x.
func (x *scalar) Multiply(y Scalar) Scalar {
	requireEqualModulus(x, y)
	x.value.Mul(y.value, &x.modulus.value)
	return x
}

// x.Negate() computes x = -x and returns x.
func (x *scalar) Negate() Scalar {
	zero := NewScalar(x.modulus)
	zero.value.Sub(x.value, &x.modulus.value)
	return x.Set(zero)
}

// x.InverseVarTime() computes x = x^-1 and returns (x, true), or (nil, false) if x is zero.
func (x *scalar) InverseVarTime() (Scalar, bool) {
	if _, ok := x.value.InverseVarTime(x.value, &x.modulus.value); !ok {
		return nil, false
	}
	return x, true
}

// x.Exp(e) computes x = x^e with e interpreted as big-endian integer.
func (x *scalar) Exp(e []byte) Scalar {
	x.value.Exp(x.value, e, &x.modulus.value)
	return x
}

func (x *scalar) IsZero() bool {
	return x.value.IsZero() == 1
}

func (x *scalar) IsOne() bool {
	return x.value.IsOne() == 1
}

func (x *scalar) Clone() Scalar {
	return NewScalar(x.modulus).Set(x)
}

// Modulus returns the shared modulus reference, must not be modified.
func (x *scalar) Modulus() *Modulus {
	return x.modulus
}

// Bytes returns the canonical big-endian encoding of x, Modulus().Size() bytes long.
func (x *scalar) Bytes() []byte {
	return x.value.Bytes(&x.modulus.value)
}

// Zeroize overwrites the value of x with zero.
func (x *scalar) Zeroize() {
	clear(x.value.Bits())
}

func (x *scalar) MarshalTo(target codec.Target) {
	target.WriteBytes(x.value.Bytes(&x.modulus.value))
}

// UnmarshalFrom reads a canonical encoding into x. The modulus of x must be set.
func (x *scalar) UnmarshalFrom(source codec.Source) Scalar {
	b := source.ReadBytes(x.modulus.Size())
	if _, err := x.value.SetBytes(b, &x.modulus.value); err != nil {
		panic(err)
	}
	return x
}

// x.Equal(y) reports whether both scalars have the same value and modulus, in constant time w.r.t. the value.
func (x *scalar) Equal(y Scalar) bool {
	if x == y {
		return true
	}
	if !x.modulus.Equal(y.modulus) {
		return false
	}
	return subtle.ConstantTimeCompare(x.Bytes(), y.Bytes()) == 1
}

// String is non-constant time, for tests and debugging only.
func (x *scalar) String() string {
	return new(big.Int).SetBytes(x.value.Bytes(&x.modulus.value)).String()
}

func requireEqualModulus(x Scalar, y Scalar) {
	if !x.modulus.Equal(y.modulus) {
		panic("scalars have different moduli")
	}
}

func (ω Scalars) MarshalTo(target codec.Target) {
	for _, ωᵢ := range ω {
		ωᵢ.MarshalTo(target)
	}
}

// ω.Sum() returns the sum of all scalars in ω, or nil if ω is empty.
func (ω Scalars) Sum() Scalar {
	var result Scalar
	for _, ωᵢ := range ω {
		if result == nil {
			result = ωᵢ.Clone()
		} else {
			result.Add(ωᵢ)
		}
	}
	return result
}

// Zeroize overwrites all scalars in ω with zero.
func (ω Scalars) Zeroize() {
	for _, ωᵢ := range ω {
		if ωᵢ != nil {
			ωᵢ.Zeroize()
		}
	}
}
