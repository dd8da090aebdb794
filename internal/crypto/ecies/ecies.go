package ecies

import (
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/xof"
	"golang.org/x/crypto/chacha20poly1305"
)

// Hybrid encryption towards the long-term P-256 keys of the participants. A fresh ephemeral key pair E = g^r is
// generated per ciphertext, the AEAD key is derived from (ek, E, ek^r, ad). Since every key is used exactly once, a
// constant nonce is sufficient.
//
// Ciphertext layout: E (33 bytes, compressed) ∥ AEAD(m, ad) (len(m) + 16 bytes).

// Overhead is the number of bytes a ciphertext is longer than its plaintext.
const Overhead = dkgtypes.P256CompressedPointLength + chacha20poly1305.Overhead

var zeroNonce [chacha20poly1305.NonceSize]byte

// Encrypt encrypts m for the holder of the secret key matching ek. The associated data ad is authenticated, but
// not included in the ciphertext.
func Encrypt(ek dkgtypes.P256PublicKey, m []byte, ad []byte, rand io.Reader) ([]byte, error) {
	if !ek.IsValid() {
		return nil, fmt.Errorf("invalid encryption key")
	}

	r, err := dkgtypes.NewP256KeyPair(rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	E := r.PublicKey

	ekʳ, err := r.SecretKey.ECDH(ek)
	if err != nil {
		return nil, err
	}
	clear(r.SecretKey)

	aead, err := chacha20poly1305.New(deriveKey(ek, E, ekʳ, ad))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(m)+Overhead)
	out = append(out, E.Bytes()...)
	return aead.Seal(out, zeroNonce[:], m, ad), nil
}

// Decrypt decrypts a ciphertext created by Encrypt using the keyring's secret key. It fails if the ciphertext, the
// associated data or the recipient do not match.
func Decrypt(dk dkgtypes.P256Keyring, c []byte, ad []byte) ([]byte, error) {
	if len(c) < Overhead {
		return nil, fmt.Errorf("invalid ciphertext: too short (%d bytes)", len(c))
	}

	E, err := dkgtypes.NewP256PublicKey(c[:dkgtypes.P256CompressedPointLength])
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}

	Eᵈᵏ, err := dk.ECDH(E)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: failed to compute ECDH shared secret: %w", err)
	}

	aead, err := chacha20poly1305.New(deriveKey(dk.PublicKey(), E, Eᵈᵏ, ad))
	if err != nil {
		return nil, err
	}

	m, err := aead.Open(nil, zeroNonce[:], c[dkgtypes.P256CompressedPointLength:], ad)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}
	return m, nil
}

// EncryptAll encrypts m[i] for ek[i], with associated data ad(i).
func EncryptAll(ek []dkgtypes.P256PublicKey, m [][]byte, ad func(i int) []byte, rand io.Reader) ([][]byte, error) {
	if len(ek) != len(m) {
		return nil, fmt.Errorf("number of encryption keys (%d) must match number of messages (%d)", len(ek), len(m))
	}
	c := make([][]byte, len(m))
	for i := range m {
		var err error
		if c[i], err = Encrypt(ek[i], m[i], ad(i), rand); err != nil {
			return nil, fmt.Errorf("failed to encrypt message for recipient %d: %w", i, err)
		}
	}
	return c, nil
}

func deriveKey(ek dkgtypes.P256PublicKey, E dkgtypes.P256PublicKey, shared []byte, ad []byte) []byte {
	h := xof.New("thresholdcore/ecies/key")
	h.WriteBytes(ek.Bytes())
	h.WriteBytes(E.Bytes())
	h.WriteBytes(shared)
	h.WriteBytes(ad)
	return h.Bytes(chacha20poly1305.KeySize)
}
