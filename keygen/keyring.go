package keygen

import (
	"encoding"
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkg"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/internal/crypto/tpke"
	"github.com/bftkit/thresholdcore/internal/crypto/tsig"
	"github.com/ethereum/go-ethereum/common"
)

// Keyring is the activated key material of a participant. It encrypts towards the joint public key, produces and
// combines decryption shares, and produces and combines signature shares. All inputs and outputs are encoded bytes, as
// exchanged between participants.
//
// Shares received from other participants are verified before they are combined. Errors caused by a bad share match
// ErrMalformedMessage or ErrProtocolFault and name the offending participant, see FaultyPlayer.
type Keyring struct {
	inner *dkg.ThresholdKeyring
}

var _ encoding.BinaryMarshaler = &Keyring{}
var _ encoding.BinaryUnmarshaler = &Keyring{}
var _ fmt.Stringer = &Keyring{}
var _ fmt.GoStringer = &Keyring{}

// UnmarshalKeyring decodes a keyring as stored in a keygentypes.KeyringDatabaseValue.
func UnmarshalKeyring(data []byte) (*Keyring, error) {
	k := &Keyring{}
	if err := k.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return k, nil
}

// The secret shares must never end up in logs.
func (k *Keyring) String() string {
	return k.GoString()
}

func (k *Keyring) GoString() string {
	if k.inner == nil {
		return "Keyring{}"
	}
	return fmt.Sprintf("Keyring{player: %d, digest: %s}", k.PlayerIndex(), k.Digest())
}

// PlayerIndex returns the index of the participant owning the keyring.
func (k *Keyring) PlayerIndex() int {
	return k.inner.PlayerIndex()
}

// Digest identifies the public key material that all honest participants agreed on.
func (k *Keyring) Digest() common.Hash {
	return k.inner.Digest()
}

// Threshold returns T. Decryption and signing need T+1 shares.
func (k *Keyring) Threshold() int {
	return k.inner.TPKEPublicKey.T
}

// PublicKey returns the encoding of the joint encryption key.
func (k *Keyring) PublicKey() ([]byte, error) {
	return codec.Marshal(k.inner.TPKEPublicKey)
}

// VerificationKey returns the encoding of the verification key of decryption shares.
func (k *Keyring) VerificationKey() []byte {
	return k.inner.TPKEVerificationKey.Bytes()
}

// PublicKeySet returns the encoding of the group signature key and the participants' verification keys.
func (k *Keyring) PublicKeySet() []byte {
	return k.inner.SigPublicKeySet.Bytes()
}

// Encrypt encrypts plaintext under the joint public key. The id is bound into the ciphertext and all of its decryption
// shares.
func (k *Keyring) Encrypt(plaintext []byte, id int, rand io.Reader) ([]byte, error) {
	c, err := k.inner.TPKEPublicKey.Encrypt(tpke.RawShare{Data: plaintext, ID: id}, rand)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(c)
}

// PartialDecrypt returns the local decryption share of a ciphertext. Ciphertexts that are not well-formed are
// rejected.
func (k *Keyring) PartialDecrypt(ciphertext []byte) ([]byte, error) {
	c, err := decodeCiphertext(ciphertext)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(k.inner.TPKEPrivateKey.PartialDecrypt(c))
}

// VerifyDecryptionShare checks a decryption share of the given ciphertext.
func (k *Keyring) VerifyDecryptionShare(ciphertext []byte, share []byte) error {
	c, err := decodeCiphertext(ciphertext)
	if err != nil {
		return err
	}
	_, err = k.decodeDecryptionShare(c, share)
	return err
}

// Decrypt verifies the given decryption shares and combines them into the plaintext. At least T+1 shares are needed.
func (k *Keyring) Decrypt(ciphertext []byte, shares [][]byte) ([]byte, error) {
	c, err := decodeCiphertext(ciphertext)
	if err != nil {
		return nil, err
	}
	parts := make([]*tpke.PartiallyDecryptedShare, len(shares))
	for i, share := range shares {
		if parts[i], err = k.decodeDecryptionShare(c, share); err != nil {
			return nil, err
		}
	}
	raw, err := k.inner.TPKEPublicKey.FullDecrypt(c, parts)
	if err != nil {
		return nil, err
	}
	return raw.Data, nil
}

// Sign returns the local signature share of msg.
func (k *Keyring) Sign(msg []byte) ([]byte, error) {
	return codec.Marshal(k.inner.SigPrivateKey.Sign(msg))
}

// VerifySignatureShare checks a signature share of msg.
func (k *Keyring) VerifySignatureShare(msg []byte, share []byte) error {
	_, err := k.decodeSignatureShare(msg, share)
	return err
}

// CombineSignatures verifies the given signature shares of msg and combines them into a group signature. At least T+1
// shares are needed.
func (k *Keyring) CombineSignatures(msg []byte, shares [][]byte) ([]byte, error) {
	decoded := make([]*tsig.SignatureShare, len(shares))
	for i, share := range shares {
		var err error
		if decoded[i], err = k.decodeSignatureShare(msg, share); err != nil {
			return nil, err
		}
	}
	sig, err := k.inner.SigPublicKeySet.Combine(decoded)
	if err != nil {
		return nil, err
	}
	return sig.Bytes(), nil
}

// VerifySignature checks a group signature of msg.
func (k *Keyring) VerifySignature(msg []byte, sig []byte) bool {
	p, err := math.BLS12381G1.Point().SetBytes(sig)
	if err != nil {
		return false
	}
	return k.inner.SigPublicKeySet.Verify(msg, p)
}

// MarshalBinary exports the keyring, including the secret shares.
func (k *Keyring) MarshalBinary() ([]byte, error) {
	if k.inner == nil {
		return nil, fmt.Errorf("cannot marshal empty keyring")
	}
	return k.inner.Bytes()
}

func (k *Keyring) UnmarshalBinary(data []byte) error {
	inner, err := codec.Unmarshal(data, &dkg.ThresholdKeyring{})
	if err != nil {
		return fmt.Errorf("failed to unmarshal keyring: %w", err)
	}
	k.inner = inner
	return nil
}

func (k *Keyring) zeroize() {
	if k.inner != nil {
		k.inner.Zeroize()
	}
}

func decodeCiphertext(data []byte) (*tpke.EncryptedShare, error) {
	c, err := codec.Unmarshal(data, &tpke.EncryptedShare{})
	if err != nil {
		return nil, dkgtypes.MalformedMessage(dkgtypes.NoPlayer, fmt.Errorf("failed to decode ciphertext: %w", err))
	}
	if !c.WellFormed() {
		return nil, dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "ciphertext is not well-formed")
	}
	return c, nil
}

func (k *Keyring) decodeDecryptionShare(c *tpke.EncryptedShare, data []byte) (*tpke.PartiallyDecryptedShare, error) {
	part, err := codec.Unmarshal(data, &tpke.PartiallyDecryptedShare{})
	if err != nil {
		return nil, dkgtypes.MalformedMessage(dkgtypes.NoPlayer, fmt.Errorf("failed to decode decryption share: %w", err))
	}
	if err := k.inner.TPKEVerificationKey.CheckPartial(c, part); err != nil {
		return nil, err
	}
	return part, nil
}

func (k *Keyring) decodeSignatureShare(msg []byte, data []byte) (*tsig.SignatureShare, error) {
	share, err := codec.Unmarshal(data, &tsig.SignatureShare{})
	if err != nil {
		return nil, dkgtypes.MalformedMessage(dkgtypes.NoPlayer, fmt.Errorf("failed to decode signature share: %w", err))
	}
	if err := k.inner.SigPublicKeySet.VerifyShare(msg, share); err != nil {
		return nil, err
	}
	return share, nil
}
