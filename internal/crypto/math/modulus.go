package math

import (
	"math/big"

	"filippo.io/bigmod"
)

// Modulus of a prime order group. Instances are created once at package initialization and shared by reference.
type Modulus struct {
	value bigmod.Modulus
}

// NewModulus parses a decimal modulus. Non-constant time, to be used for initialization only.
func NewModulus(value string) *Modulus {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid modulus value: " + value)
	}
	m, err := bigmod.NewModulus(n.Bytes())
	if err != nil {
		panic("invalid modulus value: " + value + ", error: " + err.Error())
	}
	return &Modulus{*m}
}

func (m *Modulus) Equal(other *Modulus) bool {
	return m == other || (&m.value).Nat().Equal((&other.value).Nat()) == 1
}

// Size returns the length of the canonical big-endian encoding of elements mod m.
func (m *Modulus) Size() int {
	return (&m.value).Size()
}

func (m *Modulus) Bytes() []byte {
	return (&m.value).Nat().Bytes(&m.value)
}
