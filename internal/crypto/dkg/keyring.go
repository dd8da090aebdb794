package dkg

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/internal/crypto/tpke"
	"github.com/bftkit/thresholdcore/internal/crypto/tsig"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ThresholdKeyring is the key material a player obtains from a completed key generation. The secret shares of the
// encryption and the signature scheme are equal, both are F(me+1) for the joint polynomial F.
type ThresholdKeyring struct {
	TPKEPrivateKey      *tpke.PrivateKeyShare
	TPKEPublicKey       *tpke.PublicKey
	TPKEVerificationKey *tpke.VerificationKey
	SigPrivateKey       *tsig.PrivateKeyShare
	SigPublicKeySet     *tsig.PublicKeySet
}

var _ codec.Codec[*ThresholdKeyring] = &ThresholdKeyring{}

func newThresholdKeyring(me int, share math.Scalar, vk *tpke.VerificationKey, pks *tsig.PublicKeySet) *ThresholdKeyring {
	return &ThresholdKeyring{
		tpke.NewPrivateKeyShare(share, me),
		vk.PublicKey(),
		vk,
		tsig.NewPrivateKeyShare(share.Clone(), me),
		pks,
	}
}

// ConfirmDigest is the value players vote on during confirmation: Keccak256(verificationKey ∥ publicKeySet).
func ConfirmDigest(vk *tpke.VerificationKey, pks *tsig.PublicKeySet) common.Hash {
	return crypto.Keccak256Hash(vk.Bytes(), pks.Bytes())
}

func (k *ThresholdKeyring) Digest() common.Hash {
	return ConfirmDigest(k.TPKEVerificationKey, k.SigPublicKeySet)
}

// PlayerIndex returns the index of the player owning this keyring.
func (k *ThresholdKeyring) PlayerIndex() int {
	return k.TPKEPrivateKey.ID()
}

// Zeroize wipes both secret shares. The keyring must not be used afterwards.
func (k *ThresholdKeyring) Zeroize() {
	k.TPKEPrivateKey.Zeroize()
	k.SigPrivateKey.Zeroize()
}

// ThresholdKeyring encoding: tpkePrivateKey ∥ len ∥ verificationKey ∥ sigPrivateKey ∥ publicKeySet.
func (k *ThresholdKeyring) MarshalTo(target codec.Target) {
	target.Write(k.TPKEPrivateKey)
	target.WriteLengthPrefixedBytes(k.TPKEVerificationKey.Bytes())
	target.Write(k.SigPrivateKey)
	target.Write(k.SigPublicKeySet)
}

func (k *ThresholdKeyring) UnmarshalFrom(source codec.Source) *ThresholdKeyring {
	k.TPKEPrivateKey = (&tpke.PrivateKeyShare{}).UnmarshalFrom(source)
	vk, err := codec.Unmarshal(source.ReadLengthPrefixedBytes(), &tpke.VerificationKey{})
	if err != nil {
		panic(err)
	}
	k.TPKEVerificationKey = vk
	k.TPKEPublicKey = vk.PublicKey()
	k.SigPrivateKey = (&tsig.PrivateKeyShare{}).UnmarshalFrom(source)
	k.SigPublicKeySet = (&tsig.PublicKeySet{}).UnmarshalFrom(source)

	if !vk.Matches(k.TPKEPrivateKey) {
		panic(fmt.Sprintf("private key share %d does not match the verification key", k.TPKEPrivateKey.ID()))
	}
	if k.SigPrivateKey.ID() != k.TPKEPrivateKey.ID() {
		panic("inconsistent player indices of the private key shares")
	}
	return k
}

func (k *ThresholdKeyring) IsNil() bool {
	return k == nil
}

// Bytes returns the encoding of the keyring, including the secret shares.
func (k *ThresholdKeyring) Bytes() ([]byte, error) {
	return codec.Marshal(k)
}
