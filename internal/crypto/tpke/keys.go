package tpke

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
)

// PublicKey is the joint encryption key Y = s·G1 of a threshold T: any T+1 decryption shares recover a plaintext.
type PublicKey struct {
	Y math.Point
	T int
}

// PrivateKeyShare is the secret share s_i of decryptor i, with s_i = F(i+1) for the joint polynomial F.
type PrivateKeyShare struct {
	share math.Scalar
	id    int
}

// VerificationKey holds the public key and the points Z[i] = s_i·G2 used to verify partial decryptions.
type VerificationKey struct {
	Y math.Point
	T int
	Z []math.Point
}

func NewPublicKey(Y math.Point, t int) *PublicKey {
	return &PublicKey{Y, t}
}

func NewPrivateKeyShare(share math.Scalar, id int) *PrivateKeyShare {
	return &PrivateKeyShare{share, id}
}

func NewVerificationKey(Y math.Point, t int, Z []math.Point) *VerificationKey {
	return &VerificationKey{Y, t, Z}
}

func (sk *PrivateKeyShare) ID() int {
	return sk.id
}

// Zeroize wipes the secret share.
func (sk *PrivateKeyShare) Zeroize() {
	sk.share.Zeroize()
}

// PublicKey returns the public key part of the verification key.
func (vk *VerificationKey) PublicKey() *PublicKey {
	return NewPublicKey(vk.Y, vk.T)
}

// N returns the number of decryptors.
func (vk *VerificationKey) N() int {
	return len(vk.Z)
}

// Matches reports whether sk is the share belonging to Z[sk.ID()].
func (vk *VerificationKey) Matches(sk *PrivateKeyShare) bool {
	return sk.id >= 0 && sk.id < len(vk.Z) && vk.Z[sk.id].Equal(math.BLS12381G2.Point().ScalarBaseMult(sk.share))
}

func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.T == other.T && pk.Y.Equal(other.Y)
}

func (vk *VerificationKey) Equal(other *VerificationKey) bool {
	return vk.T == other.T && vk.Y.Equal(other.Y) && math.Points(vk.Z).Equal(other.Z)
}

// PublicKey encoding: t ∥ len(Y) ∥ Y.
func (pk *PublicKey) MarshalTo(target codec.Target) {
	target.WriteInt(pk.T)
	target.WriteLengthPrefixedBytes(pk.Y.Bytes())
}

func (pk *PublicKey) UnmarshalFrom(source codec.Source) *PublicKey {
	pk.T = source.ReadNonNegativeInt()
	pk.Y = readPoint(source, math.BLS12381G1)
	return pk
}

func (pk *PublicKey) IsNil() bool {
	return pk == nil
}

// VerificationKey encoding: t ∥ len(Y) ∥ Y ∥ {len(Z[i]) ∥ Z[i]} for i in 0..N-1. The number of points is implied by
// the length of the encoding, so the key must be the last element read from a source.
func (vk *VerificationKey) MarshalTo(target codec.Target) {
	target.WriteInt(vk.T)
	target.WriteLengthPrefixedBytes(vk.Y.Bytes())
	for _, Zᵢ := range vk.Z {
		target.WriteLengthPrefixedBytes(Zᵢ.Bytes())
	}
}

func (vk *VerificationKey) UnmarshalFrom(source codec.Source) *VerificationKey {
	vk.T = source.ReadNonNegativeInt()
	vk.Y = readPoint(source, math.BLS12381G1)
	vk.Z = nil
	for source.Available() > 0 {
		vk.Z = append(vk.Z, readPoint(source, math.BLS12381G2))
	}
	if len(vk.Z) <= vk.T {
		panic(fmt.Sprintf("verification key with %d points cannot serve threshold %d", len(vk.Z), vk.T))
	}
	return vk
}

func (vk *VerificationKey) IsNil() bool {
	return vk == nil
}

// Bytes returns the canonical encoding of the verification key.
func (vk *VerificationKey) Bytes() []byte {
	data, err := codec.Marshal(vk)
	if err != nil {
		panic(err)
	}
	return data
}

// PrivateKeyShare encoding: id ∥ share.
func (sk *PrivateKeyShare) MarshalTo(target codec.Target) {
	target.WriteInt(sk.id)
	target.Write(sk.share)
}

func (sk *PrivateKeyShare) UnmarshalFrom(source codec.Source) *PrivateKeyShare {
	sk.id = source.ReadNonNegativeInt()
	sk.share = math.BLS12381G1.Scalar().UnmarshalFrom(source)
	return sk
}

func (sk *PrivateKeyShare) IsNil() bool {
	return sk == nil
}

// String never reveals the secret share.
func (sk *PrivateKeyShare) String() string {
	return fmt.Sprintf("tpke.PrivateKeyShare{id: %d}", sk.id)
}

func readPoint(source codec.Source, curve math.Curve) math.Point {
	p, err := curve.Point().SetBytes(source.ReadLengthPrefixedBytes())
	if err != nil {
		panic(err)
	}
	return p
}
