package p256keyringshim

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/keygen/keygentypes"
)

var _ dkgtypes.P256Keyring = &wrappedP256Keyring{}

// wrappedP256Keyring adapts a byte-oriented keygentypes.P256Keyring to the internal dkgtypes.P256Keyring and checks
// the lengths of everything the external keyring returns.
type wrappedP256Keyring struct {
	keyring   keygentypes.P256Keyring
	publicKey dkgtypes.P256PublicKey
}

func New(keyring keygentypes.P256Keyring) (dkgtypes.P256Keyring, error) {
	if keyring == nil {
		return nil, fmt.Errorf("keyring must not be nil")
	}
	pk, err := dkgtypes.NewP256PublicKey(keyring.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &wrappedP256Keyring{keyring, pk}, nil
}

func (w *wrappedP256Keyring) PublicKey() dkgtypes.P256PublicKey {
	return w.publicKey
}

func (w *wrappedP256Keyring) ECDH(remotePublicKey dkgtypes.P256PublicKey) (dkgtypes.P256ECDHSharedSecret, error) {
	rpk := remotePublicKey.Bytes()
	if len(rpk) != keygentypes.P256ParticipantPublicKeyLength {
		return nil, fmt.Errorf(
			"invalid public key length: %d, expected %d bytes", len(rpk), keygentypes.P256ParticipantPublicKeyLength,
		)
	}

	sharedSecret, err := w.keyring.ECDH(rpk)
	if err != nil {
		return nil, fmt.Errorf("keyring ECDH operation failed: %w", err)
	}
	if len(sharedSecret) != keygentypes.P256ECDHSharedSecretLength {
		return nil, fmt.Errorf(
			"keyring ECDH operation returned a shared secret of %d bytes, expected %d bytes",
			len(sharedSecret), keygentypes.P256ECDHSharedSecretLength,
		)
	}
	return dkgtypes.P256ECDHSharedSecret(sharedSecret), nil
}
