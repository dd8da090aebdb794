package tsig

import (
	"errors"
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
)

// Threshold BLS signatures with signatures in G1 and public keys in G2. A signature share of player i on m is
// s_i·H(m); any T+1 valid shares combine to s·H(m), which verifies under the group key s·G2.

const hashDST = "THRESHOLDCORE-TSIG-V01-CS01-with-BLS12381G1_XMD:SHA-256_SSWU_RO_"

var (
	ErrInsufficientShares = errors.New("insufficient signature shares")
	ErrDuplicateSigner    = errors.New("duplicate signer")
	ErrInvalidShare       = errors.New("invalid signature share")
)

type PrivateKeyShare struct {
	share math.Scalar
	id    int
}

// PublicKeySet holds the group key and the verification points Keys[i] = s_i·G2 of all players.
type PublicKeySet struct {
	T        int
	GroupKey math.Point
	Keys     []math.Point
}

type SignatureShare struct {
	Sig      math.Point // G1
	SignerID int
}

func NewPrivateKeyShare(share math.Scalar, id int) *PrivateKeyShare {
	return &PrivateKeyShare{share, id}
}

func NewPublicKeySet(t int, groupKey math.Point, keys []math.Point) *PublicKeySet {
	return &PublicKeySet{t, groupKey, keys}
}

func (sk *PrivateKeyShare) ID() int {
	return sk.id
}

func (sk *PrivateKeyShare) Zeroize() {
	sk.share.Zeroize()
}

func (sk *PrivateKeyShare) String() string {
	return fmt.Sprintf("tsig.PrivateKeyShare{id: %d}", sk.id)
}

// Sign returns the signature share s_i·H(msg).
func (sk *PrivateKeyShare) Sign(msg []byte) *SignatureShare {
	H := math.HashToG1(msg, hashDST)
	return &SignatureShare{H.ScalarMult(sk.share, H), sk.id}
}

// VerifyShare checks e(sig_i, G2) == e(H(msg), Keys[i]). The returned error blames the signer.
func (pks *PublicKeySet) VerifyShare(msg []byte, share *SignatureShare) error {
	if share.SignerID < 0 || share.SignerID >= len(pks.Keys) {
		return dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "signer id %d out of range [0, %d)", share.SignerID, len(pks.Keys))
	}
	H := math.HashToG1(msg, hashDST)
	if !math.PairingEqual(share.Sig, math.BLS12381G2.Generator(), H, pks.Keys[share.SignerID]) {
		return dkgtypes.ProtocolFault(share.SignerID, ErrInvalidShare)
	}
	return nil
}

// Combine interpolates at least T+1 shares into a group signature. Shares must have been verified beforehand.
func (pks *PublicKeySet) Combine(shares []*SignatureShare) (math.Point, error) {
	if len(shares) < pks.T+1 {
		return nil, dkgtypes.InsufficientQuorum(
			fmt.Errorf("%w: got %d, need %d", ErrInsufficientShares, len(shares), pks.T+1),
		)
	}

	seen := make(map[int]bool, len(shares))
	indices := make([]int, len(shares))
	sigs := make([]math.Point, len(shares))
	for i, s := range shares {
		if s.SignerID < 0 || s.SignerID >= len(pks.Keys) {
			return nil, dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "signer id %d out of range [0, %d)", s.SignerID, len(pks.Keys))
		}
		if seen[s.SignerID] {
			return nil, dkgtypes.ProtocolFault(s.SignerID, ErrDuplicateSigner)
		}
		seen[s.SignerID] = true
		indices[i] = s.SignerID
		sigs[i] = s.Sig
	}

	ip, err := math.NewInterpolator(math.BLS12381G1, indices)
	if err != nil {
		return nil, err
	}
	return ip.PointAtZero(sigs)
}

// Verify checks a combined signature against the group key.
func (pks *PublicKeySet) Verify(msg []byte, sig math.Point) bool {
	if sig.Curve() != math.BLS12381G1 {
		return false
	}
	H := math.HashToG1(msg, hashDST)
	return math.PairingEqual(sig, math.BLS12381G2.Generator(), H, pks.GroupKey)
}

func (pks *PublicKeySet) Equal(other *PublicKeySet) bool {
	return pks.T == other.T && pks.GroupKey.Equal(other.GroupKey) && math.Points(pks.Keys).Equal(other.Keys)
}

// PublicKeySet encoding: t ∥ groupKey ∥ n ∥ keys[n].
func (pks *PublicKeySet) MarshalTo(target codec.Target) {
	target.WriteInt(pks.T)
	target.Write(pks.GroupKey)
	target.WriteInt(len(pks.Keys))
	math.Points(pks.Keys).MarshalTo(target)
}

func (pks *PublicKeySet) UnmarshalFrom(source codec.Source) *PublicKeySet {
	pks.T = source.ReadNonNegativeInt()
	pks.GroupKey = math.BLS12381G2.Point().UnmarshalFrom(source)
	n := source.ReadIntInRange(pks.T+1, source.Available()/math.BLS12381G2.PointBytes())
	pks.Keys = math.UnmarshalPoints(source, math.BLS12381G2, n)
	return pks
}

func (pks *PublicKeySet) IsNil() bool {
	return pks == nil
}

// Bytes returns the canonical encoding of the public key set.
func (pks *PublicKeySet) Bytes() []byte {
	data, err := codec.Marshal(pks)
	if err != nil {
		panic(err)
	}
	return data
}

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

func (s *SignatureShare) MarshalTo(target codec.Target) {
	target.WriteInt(s.SignerID)
	target.Write(s.Sig)
}

func (s *SignatureShare) UnmarshalFrom(source codec.Source) *SignatureShare {
	s.SignerID = source.ReadNonNegativeInt()
	s.Sig = math.BLS12381G1.Point().UnmarshalFrom(source)
	return s
}

func (s *SignatureShare) IsNil() bool {
	return s == nil
}
