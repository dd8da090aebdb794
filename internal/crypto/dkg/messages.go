package dkg

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/internal/crypto/tpke"
	"github.com/bftkit/thresholdcore/internal/crypto/tsig"
)

// CommitMessage is broadcast by a dealer. It carries the dealer's bivariate commitment and, for each player j, the
// row polynomial f(·, j+1) encrypted towards j's public key.
type CommitMessage struct {
	Commitment    *math.BivariateCommitment
	EncryptedRows [][]byte
}

// ValueMessage is broadcast by a player after accepting the row of Proposer. EncryptedValues[k] holds the value
// f(k+1, me+1) of that row, encrypted towards player k.
type ValueMessage struct {
	Proposer        int
	EncryptedValues [][]byte
}

// ConfirmMessage announces the public key material a player derived. Dealers lists the F+1 dealers whose secrets were
// summed up, it allows players that finished a different subset to recompute the agreed keys.
type ConfirmMessage struct {
	VerificationKey *tpke.VerificationKey
	PublicKeySet    *tsig.PublicKeySet
	Dealers         []int
}

var (
	_ codec.Marshaler = &CommitMessage{}
	_ codec.Marshaler = &ValueMessage{}
	_ codec.Marshaler = &ConfirmMessage{}
)

// CommitMessage encoding: commitment ∥ n ∥ {len ∥ row}[n].
func (m *CommitMessage) MarshalTo(target codec.Target) {
	target.Write(m.Commitment)
	codec.WriteList(target, m.EncryptedRows, codec.Target.WriteLengthPrefixedBytes)
}

// UnmarshalCommitMessage decodes a commit message of a session with n players and fault tolerance f.
func UnmarshalCommitMessage(data []byte, n int, f int) (*CommitMessage, error) {
	return codec.UnmarshalUsing(data, func(source codec.Source) *CommitMessage {
		m := &CommitMessage{}
		m.Commitment = math.UnmarshalBivariateCommitment(source, f)
		m.EncryptedRows = readCiphertexts(source, n)
		return m
	})
}

// ValueMessage encoding: proposer ∥ n ∥ {len ∥ value}[n].
func (m *ValueMessage) MarshalTo(target codec.Target) {
	target.WriteInt(m.Proposer)
	codec.WriteList(target, m.EncryptedValues, codec.Target.WriteLengthPrefixedBytes)
}

func UnmarshalValueMessage(data []byte, n int) (*ValueMessage, error) {
	return codec.UnmarshalUsing(data, func(source codec.Source) *ValueMessage {
		m := &ValueMessage{}
		m.Proposer = source.ReadIndex(n)
		m.EncryptedValues = readCiphertexts(source, n)
		return m
	})
}

// ConfirmMessage encoding: len ∥ verificationKey ∥ publicKeySet ∥ k ∥ dealers[k].
func (m *ConfirmMessage) MarshalTo(target codec.Target) {
	target.WriteLengthPrefixedBytes(m.VerificationKey.Bytes())
	target.Write(m.PublicKeySet)
	codec.WriteList(target, m.Dealers, codec.Target.WriteInt)
}

func UnmarshalConfirmMessage(data []byte, n int) (*ConfirmMessage, error) {
	return codec.UnmarshalUsing(data, func(source codec.Source) *ConfirmMessage {
		m := &ConfirmMessage{}
		vk, err := codec.Unmarshal(source.ReadLengthPrefixedBytes(), &tpke.VerificationKey{})
		if err != nil {
			panic(err)
		}
		m.VerificationKey = vk
		m.PublicKeySet = (&tsig.PublicKeySet{}).UnmarshalFrom(source)
		m.Dealers = codec.ReadList(source, n, func(s codec.Source) int { return s.ReadIndex(n) })
		return m
	})
}

func readCiphertexts(source codec.Source, n int) [][]byte {
	source.ReadIntInRange(n, n)
	ciphertexts := make([][]byte, n)
	for i := range ciphertexts {
		ciphertexts[i] = source.ReadLengthPrefixedBytes()
		if ciphertexts[i] == nil {
			panic(fmt.Sprintf("missing ciphertext for player %d", i))
		}
	}
	return ciphertexts
}
