package p256keyring

import (
	"crypto/subtle"
	"encoding"
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/keygen/keygentypes"
)

const SecretKeyLength = dkgtypes.P256SecretKeyLength // big-endian scalar mod the P-256 group order
const PublicKeyLength = keygentypes.P256ParticipantPublicKeyLength

var _ keygentypes.P256Keyring = &P256Keyring{}
var _ encoding.BinaryMarshaler = &P256Keyring{}
var _ encoding.BinaryUnmarshaler = &P256Keyring{}
var _ fmt.Stringer = &P256Keyring{}
var _ fmt.GoStringer = &P256Keyring{}

// P256Keyring holds a participant's long-term identity key pair in memory and supports exporting it.
type P256Keyring struct {
	sk dkgtypes.P256SecretKey
	pk dkgtypes.P256PublicKey
}

// The secret key must never end up in logs.
func (kr *P256Keyring) String() string {
	return kr.GoString()
}

func (kr *P256Keyring) GoString() string {
	return fmt.Sprintf("P256Keyring{pk: \"%x\"}", kr.pk.Bytes())
}

// New generates a fresh key pair. Applications should pass crypto/rand.Reader.
func New(rand io.Reader) (*P256Keyring, error) {
	kp, err := dkgtypes.NewP256KeyPair(rand)
	if err != nil {
		return nil, err
	}
	return &P256Keyring{kp.SecretKey, kp.PublicKey}, nil
}

func (kr *P256Keyring) PublicKey() keygentypes.P256ParticipantPublicKey {
	return kr.pk.Bytes()
}

func (kr *P256Keyring) ECDH(publicKey keygentypes.P256ParticipantPublicKey) (keygentypes.P256ECDHSharedSecret, error) {
	pk, err := dkgtypes.NewP256PublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	sharedSecret, err := kr.sk.ECDH(pk)
	if err != nil {
		return nil, err
	}
	return keygentypes.P256ECDHSharedSecret(sharedSecret), nil
}

// MarshalBinary exports the key pair as secretKey ∥ compressed public key.
func (kr *P256Keyring) MarshalBinary() ([]byte, error) {
	if !kr.pk.IsValid() {
		return nil, fmt.Errorf("cannot marshal uninitialized keyring")
	}
	result := make([]byte, 0, SecretKeyLength+PublicKeyLength)
	result = append(result, kr.sk...)
	result = append(result, kr.pk.Bytes()...)
	return result, nil
}

// UnmarshalBinary imports a key pair exported by MarshalBinary. The public key is recomputed from the secret key and
// must match the encoded one.
func (kr *P256Keyring) UnmarshalBinary(data []byte) error {
	if len(data) != SecretKeyLength+PublicKeyLength {
		return fmt.Errorf("invalid data length: got %d, want %d", len(data), SecretKeyLength+PublicKeyLength)
	}

	s, err := math.P256.Scalar().SetBytes(data[:SecretKeyLength])
	if err != nil {
		return fmt.Errorf("failed to create secret key from bytes: %w", err)
	}
	if s.IsZero() {
		return fmt.Errorf("secret key must not be zero")
	}
	pk, err := dkgtypes.NewP256PublicKey(math.P256.Point().ScalarBaseMult(s).Bytes())
	if err != nil {
		return fmt.Errorf("failed to derive public key from secret key: %w", err)
	}
	if subtle.ConstantTimeCompare(data[SecretKeyLength:], pk.Bytes()) != 1 {
		return fmt.Errorf("public key mismatch, expected %x, got %x", data[SecretKeyLength:], pk.Bytes())
	}

	kr.sk = dkgtypes.P256SecretKey(s.Bytes())
	kr.pk = pk
	return nil
}
