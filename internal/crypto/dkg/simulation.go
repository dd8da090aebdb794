package dkg

import (
	"fmt"
	"slices"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/testimplementations/unsaferand"
)

// An in-memory execution of the key generation between all players. Messages are encoded and decoded on delivery, but
// no networking is involved.
//
// 🚨🚨🚨  SECURITY WARNING                                                       🚨🚨🚨
// 🚨🚨🚨  This simulation is NOT secure. It is meant for testing purposes only.  🚨🚨🚨

// SimulateForTest runs a full key generation with honest players and returns the activated keyring of every player.
// The simulation is deterministic for a given InstanceID.
func SimulateForTest(
	iid dkgtypes.InstanceID,
	publicKeys []dkgtypes.P256PublicKey,
	f int,
	keyrings []dkgtypes.P256Keyring, // keyrings for all players
	opts ...Option,
) ([]*ThresholdKeyring, error) {
	n := len(publicKeys)
	if len(keyrings) != n {
		return nil, fmt.Errorf("got %d keyrings for %d players", len(keyrings), n)
	}

	sessions := make([]*Session, n)
	for i, keyring := range keyrings {
		var err error
		rand := unsaferand.New("simulate-keygen-values", iid, i)
		sessions[i], err = NewSession(iid, publicKeys, f, keyring, append(slices.Clone(opts), WithRandomness(rand))...)
		if err != nil {
			return nil, err
		}
	}

	commits := make([][]byte, n)
	for i, s := range sessions {
		msg, err := s.StartKeygen(unsaferand.New("simulate-keygen-commit", iid, i))
		if err != nil {
			return nil, err
		}
		if commits[i], err = codec.Marshal(msg); err != nil {
			return nil, err
		}
	}

	var values [][]byte
	var valueSenders []int
	for dealer, data := range commits {
		for _, s := range sessions {
			msg, err := UnmarshalCommitMessage(data, n, f)
			if err != nil {
				return nil, err
			}
			value, err := s.HandleCommit(dealer, msg)
			if err != nil {
				return nil, fmt.Errorf("player %d rejected commit of dealer %d: %w", s.PlayerIndex(), dealer, err)
			}
			encoded, err := codec.Marshal(value)
			if err != nil {
				return nil, err
			}
			values = append(values, encoded)
			valueSenders = append(valueSenders, s.PlayerIndex())
		}
	}

	confirms := make([][]byte, n)
	for k, data := range values {
		for _, s := range sessions {
			msg, err := UnmarshalValueMessage(data, n)
			if err != nil {
				return nil, err
			}
			ready, err := s.HandleSendValue(valueSenders[k], msg)
			if err != nil {
				return nil, fmt.Errorf("player %d rejected value of player %d: %w", s.PlayerIndex(), valueSenders[k], err)
			}
			if ready {
				confirm, err := s.MakeConfirm()
				if err != nil {
					return nil, err
				}
				if confirms[s.PlayerIndex()], err = codec.Marshal(confirm); err != nil {
					return nil, err
				}
			}
		}
	}

	keys := make([]*ThresholdKeyring, n)
	for sender, data := range confirms {
		if data == nil {
			return nil, fmt.Errorf("player %d did not confirm", sender)
		}
		for _, s := range sessions {
			msg, err := UnmarshalConfirmMessage(data, n)
			if err != nil {
				return nil, err
			}
			if _, err := s.HandleConfirm(sender, msg); err != nil {
				return nil, err
			}
		}
	}
	for i, s := range sessions {
		var err error
		if keys[i], err = s.ActiveKeyring(); err != nil {
			return nil, fmt.Errorf("player %d has no active keyring: %w", i, err)
		}
	}
	return keys, nil
}
