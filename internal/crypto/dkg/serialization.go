package dkg

import (
	"fmt"
	"slices"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/ethereum/go-ethereum/common"
)

// Session state encoding, used for crash recovery of the local node only. It contains the received values, so it
// must be stored like a secret key.
//
//	n ∥ f ∥ publicKeys[n] ∥ {len ∥ KeyGenState}[n] ∥ k ∥ finished[k] ∥ m ∥ {digest ∥ count}[m] ∥ confirmSent
//
// followed by
//
//	started ∥ readyReported ∥ excludeFaultyDealers ∥ wiped ∥ abortedBy ∥ excluded[n] ∥ {confirmedBy ∥ dealers}[n] ∥
//	mismatches[n]
//
// The derived keys are not part of the state, an activated keyring is persisted separately.

func (s *Session) MarshalTo(target codec.Target) {
	n := s.N()
	target.WriteInt(n)
	target.WriteInt(s.f)
	for _, pk := range s.publicKeys {
		target.Write(pk)
	}
	for i := range s.states {
		state, err := codec.Marshal(&s.states[i])
		if err != nil {
			panic(err)
		}
		target.WriteLengthPrefixedBytes(state)
		clear(state)
	}
	codec.WriteList(target, s.finished, codec.Target.WriteInt)
	codec.WriteList(target, s.confirmations, func(t codec.Target, c confirmation) {
		t.WriteBytes(c.digest.Bytes())
		t.WriteInt(c.count)
	})
	target.WriteBool(s.confirmSent)

	target.WriteBool(s.started)
	target.WriteBool(s.readyReported)
	target.WriteBool(s.excludeFaultyDealers)
	target.WriteBool(s.wiped)
	target.WriteInt(s.abortedBy)
	for _, excluded := range s.excluded {
		target.WriteBool(excluded)
	}
	for i := range s.confirmedBy {
		target.WriteInt(s.confirmedBy[i])
		codec.WriteList(target, s.confirmDealers[i], codec.Target.WriteInt)
	}
	for _, senders := range s.mismatches {
		codec.WriteList(target, senders, codec.Target.WriteInt)
	}
}

// Bytes returns the session state encoding.
func (s *Session) Bytes() ([]byte, error) {
	return codec.Marshal(s)
}

// RestoreSession recreates a session from its state encoding. The keyring must be the one the session was created
// with. Options that are part of the state, like faulty dealer exclusion, are restored from the encoding.
func RestoreSession(
	iid dkgtypes.InstanceID, data []byte, keyring dkgtypes.P256Keyring, opts ...Option,
) (*Session, error) {
	s, err := codec.Unmarshal(data, NewSessionUnmarshaler(iid, keyring, opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to restore key generation session: %w", err)
	}
	return s, nil
}

type sessionUnmarshaler struct {
	iid     dkgtypes.InstanceID
	keyring dkgtypes.P256Keyring
	opts    []Option
}

// NewSessionUnmarshaler returns an unmarshaler restoring sessions of the given instance, e.g., for kv.ReadObject.
func NewSessionUnmarshaler(
	iid dkgtypes.InstanceID, keyring dkgtypes.P256Keyring, opts ...Option,
) codec.Unmarshaler[*Session] {
	return &sessionUnmarshaler{iid, keyring, opts}
}

func (u *sessionUnmarshaler) UnmarshalFrom(source codec.Source) *Session {
	if u.keyring == nil {
		panic("keyring must not be nil")
	}
	s := unmarshalSession(source, u.iid, u.keyring)
	excludeFaultyDealers := s.excludeFaultyDealers
	for _, opt := range u.opts {
		opt(s)
	}
	s.excludeFaultyDealers = excludeFaultyDealers
	return s
}

func unmarshalSession(source codec.Source, iid dkgtypes.InstanceID, keyring dkgtypes.P256Keyring) *Session {
	n := source.ReadIntInRange(1, source.Available()/dkgtypes.P256CompressedPointLength)
	f := source.ReadIntInRange(0, (n-1)/3)
	publicKeys := make([]dkgtypes.P256PublicKey, n)
	for i := range publicKeys {
		publicKeys[i] = dkgtypes.P256PublicKey{}.UnmarshalFrom(source)
		if dkgtypes.IndexOf(publicKeys[:i], publicKeys[i]) >= 0 {
			panic(fmt.Sprintf("duplicate public key of player %d", i))
		}
	}
	me := dkgtypes.IndexOf(publicKeys, keyring.PublicKey())
	if me < 0 {
		panic("keyring's public key is not among the players' public keys")
	}

	s := newSession(iid, publicKeys, f, me, keyring)
	for i := range s.states {
		state, err := codec.UnmarshalUsing(source.ReadLengthPrefixedBytes(), func(src codec.Source) KeyGenState {
			return unmarshalKeyGenState(src, n, f)
		})
		if err != nil {
			panic(fmt.Sprintf("invalid state of dealer %d: %v", i, err))
		}
		s.states[i] = state
	}

	s.finished = codec.ReadList(source, n, func(src codec.Source) int { return src.ReadIndex(n) })
	for i, d := range s.finished {
		for _, e := range s.finished[:i] {
			if d == e {
				panic(fmt.Sprintf("dealer %d listed as finished twice", d))
			}
		}
	}
	s.confirmations = codec.ReadList(source, n, func(src codec.Source) confirmation {
		return confirmation{common.BytesToHash(src.ReadBytes(common.HashLength)), src.ReadIntInRange(1, n)}
	})
	s.confirmSent = source.ReadBool()

	s.started = source.ReadBool()
	s.readyReported = source.ReadBool()
	s.excludeFaultyDealers = source.ReadBool()
	s.wiped = source.ReadBool()
	s.abortedBy = source.ReadIntInRange(dkgtypes.NoPlayer, n-1)
	for i := range s.excluded {
		s.excluded[i] = source.ReadBool()
	}

	votes := make([]int, len(s.confirmations))
	for i := range s.confirmedBy {
		s.confirmedBy[i] = source.ReadIntInRange(-1, len(s.confirmations)-1)
		dealers := codec.ReadList(source, f+1, func(src codec.Source) int { return src.ReadIndex(n) })
		if s.confirmedBy[i] >= 0 {
			if len(dealers) != f+1 {
				panic(fmt.Sprintf("confirmation of player %d lists %d dealers", i, len(dealers)))
			}
			votes[s.confirmedBy[i]]++
			s.confirmDealers[i] = dealers
		} else if len(dealers) != 0 {
			panic(fmt.Sprintf("dealers recorded for player %d without confirmation", i))
		}
	}
	for i, c := range s.confirmations {
		if votes[i] != c.count {
			panic(fmt.Sprintf("confirmation count %d of digest %s does not match %d recorded votes", c.count, c.digest, votes[i]))
		}
	}
	for d := range s.mismatches {
		senders := codec.ReadList(source, n, func(src codec.Source) int { return src.ReadIndex(n) })
		for i, sender := range senders {
			if slices.Contains(senders[:i], sender) {
				panic(fmt.Sprintf("sender %d listed twice for dealer %d", sender, d))
			}
		}
		if len(senders) > 0 {
			s.mismatches[d] = senders
		}
	}
	return s
}
