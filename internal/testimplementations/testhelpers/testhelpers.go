package testhelpers

import (
	"io"
	"testing"

	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/testimplementations"
	"github.com/stretchr/testify/require"
)

// NewP256Keys returns n keyrings and their public keys, in matching order.
func NewP256Keys(t *testing.T, n int, rand io.Reader) ([]dkgtypes.P256Keyring, []dkgtypes.P256PublicKey) {
	krs := make([]dkgtypes.P256Keyring, n)
	eks := make([]dkgtypes.P256PublicKey, n)
	for i := 0; i < n; i++ {
		kr, err := testimplementations.NewRandomP256Keyring(rand)
		require.NoError(t, err)
		krs[i] = kr
		eks[i] = kr.PublicKey()
	}
	return krs, eks
}

// FlipBit returns a copy of data with one bit inverted.
func FlipBit(data []byte, bit int) []byte {
	out := append([]byte(nil), data...)
	out[bit/8] ^= 1 << (bit % 8)
	return out
}
