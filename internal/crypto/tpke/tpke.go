package tpke

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/internal/crypto/xof"
)

// Threshold public-key encryption (Baek-Zheng style) over the BLS12-381 pairing:
//
//	Encrypt:        r ← Fr, U = r·G1, V = m ⊕ H1(r·Y), W = r·H2(U, V)
//	well-formed:    e(G1, W) == e(U, H2(U, V))
//	PartialDecrypt: U_i = s_i·U
//	Verify:         e(U_i, G2) == e(U, Z_i)
//	FullDecrypt:    r·Y = Σ λ_i·U_i, m = V ⊕ H1(r·Y)

const (
	h1DST = "thresholdcore/tpke/h1"
	h2DST = "THRESHOLDCORE-TPKE-H2-V01-CS01-with-BLS12381G2_XMD:SHA-256_SSWU_RO_"
)

var (
	ErrInsufficientShares = errors.New("insufficient decryption shares")
	ErrDuplicateDecryptor = errors.New("duplicate decryptor")
	ErrShareIDMismatch    = errors.New("decryption share belongs to a different encrypted share")
	ErrInvalidPartial     = errors.New("invalid partial decryption")
	ErrNotWellFormed      = errors.New("ciphertext is not well-formed")
)

// RawShare is a plaintext, tagged with the id of the encrypted share it belongs to.
type RawShare struct {
	Data []byte
	ID   int
}

type EncryptedShare struct {
	U  math.Point // G1
	V  []byte
	W  math.Point // G2
	ID int
}

type PartiallyDecryptedShare struct {
	Ui          math.Point // G1
	DecryptorID int
	ShareID     int
}

// Encrypt encrypts raw.Data under pk. The ciphertext is as long as the plaintext.
func (pk *PublicKey) Encrypt(raw RawShare, rand io.Reader) (*EncryptedShare, error) {
	r, err := math.BLS12381G1.Scalar().SetRandom(rand)
	if err != nil {
		return nil, fmt.Errorf("failed to sample encryption randomness: %w", err)
	}
	defer r.Zeroize()

	U := math.BLS12381G1.Point().ScalarBaseMult(r)
	T := math.BLS12381G1.Point().ScalarMult(r, pk.Y)
	V := h1(T, len(raw.Data))
	subtle.XORBytes(V, V, raw.Data)
	W := h2(U, V)
	W.ScalarMult(r, W)

	return &EncryptedShare{U, V, W, raw.ID}, nil
}

// WellFormed checks e(G1, W) == e(U, H2(U, V)). It binds V to the ciphertext, a modified V is rejected here.
func (c *EncryptedShare) WellFormed() bool {
	return math.PairingEqual(math.BLS12381G1.Generator(), c.W, c.U, h2(c.U, c.V))
}

// PartialDecrypt returns U_i = s_i·U.
func (sk *PrivateKeyShare) PartialDecrypt(c *EncryptedShare) *PartiallyDecryptedShare {
	return &PartiallyDecryptedShare{
		Ui:          math.BLS12381G1.Point().ScalarMult(sk.share, c.U),
		DecryptorID: sk.id,
		ShareID:     c.ID,
	}
}

// Verify reports whether c is well-formed and part is a valid partial decryption of it.
func (vk *VerificationKey) Verify(c *EncryptedShare, part *PartiallyDecryptedShare) bool {
	return vk.CheckPartial(c, part) == nil
}

// CheckPartial is like Verify but returns a fault error. Only a bad partial decryption blames the decryptor.
func (vk *VerificationKey) CheckPartial(c *EncryptedShare, part *PartiallyDecryptedShare) error {
	if !c.WellFormed() {
		return dkgtypes.MalformedMessage(dkgtypes.NoPlayer, ErrNotWellFormed)
	}
	if part.DecryptorID < 0 || part.DecryptorID >= len(vk.Z) {
		return dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "decryptor id %d out of range [0, %d)", part.DecryptorID, len(vk.Z))
	}
	if part.ShareID != c.ID {
		return dkgtypes.ProtocolFault(part.DecryptorID, fmt.Errorf("%w: got %d, expected %d", ErrShareIDMismatch, part.ShareID, c.ID))
	}
	if !math.PairingEqual(part.Ui, math.BLS12381G2.Generator(), c.U, vk.Z[part.DecryptorID]) {
		return dkgtypes.ProtocolFault(part.DecryptorID, ErrInvalidPartial)
	}
	return nil
}

// FullDecrypt combines at least T+1 partial decryptions of c. The partial decryptions are not verified here, callers
// must run Verify on shares received from other players first.
func (pk *PublicKey) FullDecrypt(c *EncryptedShare, parts []*PartiallyDecryptedShare) (RawShare, error) {
	if len(parts) < pk.T+1 {
		return RawShare{}, dkgtypes.InsufficientQuorum(
			fmt.Errorf("%w: got %d, need %d", ErrInsufficientShares, len(parts), pk.T+1),
		)
	}

	seen := make(map[int]bool, len(parts))
	indices := make([]int, len(parts))
	points := make([]math.Point, len(parts))
	for i, part := range parts {
		if part.DecryptorID < 0 {
			return RawShare{}, dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "negative decryptor id %d", part.DecryptorID)
		}
		if part.ShareID != c.ID {
			return RawShare{}, dkgtypes.ProtocolFault(
				part.DecryptorID, fmt.Errorf("%w: got %d, expected %d", ErrShareIDMismatch, part.ShareID, c.ID),
			)
		}
		if seen[part.DecryptorID] {
			return RawShare{}, dkgtypes.ProtocolFault(part.DecryptorID, ErrDuplicateDecryptor)
		}
		seen[part.DecryptorID] = true
		indices[i] = part.DecryptorID
		points[i] = part.Ui
	}

	ip, err := math.NewInterpolator(math.BLS12381G1, indices)
	if err != nil {
		return RawShare{}, err
	}
	T, err := ip.PointAtZero(points)
	if err != nil {
		return RawShare{}, err
	}

	data := h1(T, len(c.V))
	subtle.XORBytes(data, data, c.V)
	return RawShare{data, c.ID}, nil
}

// h1 maps a G1 element to a mask of n bytes.
func h1(T math.Point, n int) []byte {
	h := xof.New(h1DST)
	h.WriteBytes(T.Bytes())
	h.WriteInt(n)
	return h.Bytes(n)
}

// h2 maps (U, V) to G2.
func h2(U math.Point, V []byte) math.Point {
	msg, err := codec.MarshalUsing(func(t codec.Target) {
		t.WriteLengthPrefixedBytes(U.Bytes())
		t.WriteLengthPrefixedBytes(V)
	})
	if err != nil {
		panic(err)
	}
	return math.HashToG2(msg, h2DST)
}

// EncryptedShare encoding: len(U) ∥ U ∥ len(W) ∥ W ∥ id ∥ len(V) ∥ V.
func (c *EncryptedShare) MarshalTo(target codec.Target) {
	target.WriteLengthPrefixedBytes(c.U.Bytes())
	target.WriteLengthPrefixedBytes(c.W.Bytes())
	target.WriteInt(c.ID)
	target.WriteInt(len(c.V))
	target.WriteBytes(c.V)
}

func (c *EncryptedShare) UnmarshalFrom(source codec.Source) *EncryptedShare {
	c.U = readPoint(source, math.BLS12381G1)
	c.W = readPoint(source, math.BLS12381G2)
	c.ID = source.ReadInt()
	c.V = append([]byte(nil), source.ReadBytes(source.ReadNonNegativeInt())...)
	return c
}

func (c *EncryptedShare) IsNil() bool {
	return c == nil
}

// PartiallyDecryptedShare encoding: decryptorId ∥ shareId ∥ len(Ui) ∥ Ui.
func (p *PartiallyDecryptedShare) MarshalTo(target codec.Target) {
	target.WriteInt(p.DecryptorID)
	target.WriteInt(p.ShareID)
	target.WriteLengthPrefixedBytes(p.Ui.Bytes())
}

func (p *PartiallyDecryptedShare) UnmarshalFrom(source codec.Source) *PartiallyDecryptedShare {
	p.DecryptorID = source.ReadNonNegativeInt()
	p.ShareID = source.ReadInt()
	p.Ui = readPoint(source, math.BLS12381G1)
	return p
}

func (p *PartiallyDecryptedShare) IsNil() bool {
	return p == nil
}
