package testimplementations

import (
	"errors"
	"io"

	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
)

var _ dkgtypes.P256Keyring = &p256Keyring{}
var _ dkgtypes.P256Keyring = &brokenKeyring{}

// p256Keyring keeps its secret key in memory.
type p256Keyring struct {
	keyPair dkgtypes.P256KeyPair
}

func NewP256Keyring(keyPair dkgtypes.P256KeyPair) dkgtypes.P256Keyring {
	return &p256Keyring{keyPair}
}

func NewRandomP256Keyring(rand io.Reader) (dkgtypes.P256Keyring, error) {
	k, err := dkgtypes.NewP256KeyPair(rand)
	if err != nil {
		return nil, err
	}
	return NewP256Keyring(k), nil
}

func (k *p256Keyring) PublicKey() dkgtypes.P256PublicKey {
	return k.keyPair.PublicKey
}

func (k *p256Keyring) ECDH(pubKey dkgtypes.P256PublicKey) (dkgtypes.P256ECDHSharedSecret, error) {
	return k.keyPair.SecretKey.ECDH(pubKey)
}

// brokenKeyring reports a public key, but fails every ECDH operation, like a keyring whose backing HSM is offline.
type brokenKeyring struct {
	publicKey dkgtypes.P256PublicKey
}

func NewBrokenKeyring(publicKey dkgtypes.P256PublicKey) dkgtypes.P256Keyring {
	return &brokenKeyring{publicKey}
}

func (k *brokenKeyring) PublicKey() dkgtypes.P256PublicKey {
	return k.publicKey
}

func (k *brokenKeyring) ECDH(dkgtypes.P256PublicKey) (dkgtypes.P256ECDHSharedSecret, error) {
	return nil, errors.New("keyring unavailable")
}
