package dkgtypes

import (
	"crypto/subtle"
	"fmt"
	"io"

	"filippo.io/nistec"
	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
)

// InstanceID uniquely identifies a key generation session. It is bound into every encrypted row and value, so
// ciphertexts of one session are useless in any other.
type InstanceID string

// P256Keyring wraps a participant's long-term identity secret key. Rows and values of the key generation are
// encrypted towards the public keys of such keyrings.
type P256Keyring interface {
	// PublicKey returns the public key matching the keyring's secret key.
	PublicKey() P256PublicKey

	// ECDH returns the x-coordinate of sk·publicKey for the keyring's secret key sk.
	ECDH(publicKey P256PublicKey) (sharedSecret P256ECDHSharedSecret, err error)
}

// P256CompressedPointLength is the length of a compressed P-256 point. The point at infinity is not a valid key.
const P256CompressedPointLength = 33

// P256PublicKey must be created via NewP256PublicKey or NewP256KeyPair, the zero value is an invalid key.
type P256PublicKey struct {
	value              *nistec.P256Point
	compressedEncoding []byte
}

// P256SecretKeyLength is the length of a big-endian encoded P-256 secret scalar.
const P256SecretKeyLength = 32

type P256SecretKey []byte

type P256KeyPair struct {
	SecretKey P256SecretKey
	PublicKey P256PublicKey
}

// P256ECDHSharedSecretLength is the length of the x-coordinate returned by ECDH.
const P256ECDHSharedSecretLength = 32

type P256ECDHSharedSecret []byte

// NewP256KeyPair derives a key pair from rand. A deterministic rand yields a deterministic key pair.
func NewP256KeyPair(rand io.Reader) (P256KeyPair, error) {
	s, err := math.P256.Scalar().SetRandom(rand)
	if err != nil {
		return P256KeyPair{}, fmt.Errorf("failed to generate random secret key: %w", err)
	}
	if s.IsZero() {
		return P256KeyPair{}, fmt.Errorf("failed to generate random secret key: zero scalar")
	}

	sk := s.Bytes()
	pk, err := nistec.NewP256Point().ScalarBaseMult(sk)
	if err != nil {
		return P256KeyPair{}, fmt.Errorf("failed to compute public key from secret key: %w", err)
	}
	return P256KeyPair{sk, P256PublicKey{pk, pk.BytesCompressed()}}, nil
}

// NewP256PublicKey parses a canonical compressed P-256 point.
func NewP256PublicKey(value []byte) (P256PublicKey, error) {
	if len(value) != P256CompressedPointLength {
		return P256PublicKey{}, fmt.Errorf(
			"invalid public key length: %d, expected %d bytes", len(value), P256CompressedPointLength,
		)
	}
	p, err := nistec.NewP256Point().SetBytes(value)
	if err != nil {
		return P256PublicKey{}, fmt.Errorf("invalid public key: %w", err)
	}

	pkBytes := p.BytesCompressed()
	if subtle.ConstantTimeCompare(value, pkBytes) != 1 {
		return P256PublicKey{}, fmt.Errorf("invalid public key: non-canonical encoding")
	}
	return P256PublicKey{p, pkBytes}, nil
}

// ECDH computes the x-coordinate of sk·pk.
func (sk P256SecretKey) ECDH(pk P256PublicKey) (P256ECDHSharedSecret, error) {
	if !pk.IsValid() {
		return nil, fmt.Errorf("failed to compute ECDH: invalid public key")
	}
	p, err := nistec.NewP256Point().ScalarMult(pk.value, sk)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ECDH: %w", err)
	}
	s, err := p.BytesX()
	if err != nil {
		return nil, fmt.Errorf("failed to get x-coordinate of ECDH result: %w", err)
	}
	return s, nil
}

// Bytes returns a copy of the 33 byte compressed encoding, or nil for an invalid key.
func (pk P256PublicKey) Bytes() []byte {
	if pk.value == nil {
		return nil
	}
	var out [P256CompressedPointLength]byte
	copy(out[:], pk.compressedEncoding)
	return out[:]
}

func (pk P256PublicKey) IsValid() bool {
	return pk.value != nil
}

func (pk P256PublicKey) Equal(other P256PublicKey) bool {
	return (pk.value == nil && other.value == nil) ||
		subtle.ConstantTimeCompare(pk.compressedEncoding, other.compressedEncoding) == 1
}

func (pk P256PublicKey) MarshalTo(target codec.Target) {
	if !pk.IsValid() {
		panic("cannot marshal invalid public key")
	}
	target.WriteBytes(pk.compressedEncoding)
}

func (P256PublicKey) UnmarshalFrom(source codec.Source) P256PublicKey {
	pk, err := NewP256PublicKey(source.ReadBytes(P256CompressedPointLength))
	if err != nil {
		panic(err)
	}
	return pk
}

// IndexOf returns the position of pk in keys, or -1.
func IndexOf(keys []P256PublicKey, pk P256PublicKey) int {
	for i, k := range keys {
		if k.Equal(pk) {
			return i
		}
	}
	return -1
}
