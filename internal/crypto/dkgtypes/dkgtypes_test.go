package dkgtypes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/testimplementations/unsaferand"
	"github.com/stretchr/testify/require"
)

func TestECDHAgreement(t *testing.T) {
	a, err := NewP256KeyPair(unsaferand.New("a"))
	require.NoError(t, err)
	b, err := NewP256KeyPair(unsaferand.New("b"))
	require.NoError(t, err)

	ab, err := a.SecretKey.ECDH(b.PublicKey)
	require.NoError(t, err)
	ba, err := b.SecretKey.ECDH(a.PublicKey)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Len(t, ab, P256ECDHSharedSecretLength)

	_, err = a.SecretKey.ECDH(P256PublicKey{})
	require.Error(t, err)
}

func TestPublicKeyEncoding(t *testing.T) {
	kp, err := NewP256KeyPair(unsaferand.New("encoding"))
	require.NoError(t, err)

	pk, err := NewP256PublicKey(kp.PublicKey.Bytes())
	require.NoError(t, err)
	require.True(t, pk.Equal(kp.PublicKey))

	data, err := codec.Marshal(pk)
	require.NoError(t, err)
	pk2, err := codec.Unmarshal(data, P256PublicKey{})
	require.NoError(t, err)
	require.True(t, pk2.Equal(pk))

	_, err = NewP256PublicKey(pk.Bytes()[:32])
	require.Error(t, err)
	require.Nil(t, P256PublicKey{}.Bytes())
}

func TestIndexOf(t *testing.T) {
	keys := make([]P256PublicKey, 3)
	for i := range keys {
		kp, err := NewP256KeyPair(unsaferand.New("index", i))
		require.NoError(t, err)
		keys[i] = kp.PublicKey
	}
	require.Equal(t, 2, IndexOf(keys, keys[2]))

	other, err := NewP256KeyPair(unsaferand.New("other"))
	require.NoError(t, err)
	require.Equal(t, -1, IndexOf(keys, other.PublicKey))
}

func TestFaultErrors(t *testing.T) {
	detail := errors.New("detail")
	err := fmt.Errorf("handling message: %w", ProtocolFault(3, detail))

	require.ErrorIs(t, err, ErrProtocolFault)
	require.ErrorIs(t, err, detail)
	require.NotErrorIs(t, err, ErrMalformedMessage)
	require.Equal(t, ErrProtocolFault, FaultKind(err))

	player, ok := FaultyPlayer(err)
	require.True(t, ok)
	require.Equal(t, 3, player)

	quorum := InsufficientQuorumf("need %d more", 2)
	require.ErrorIs(t, quorum, ErrInsufficientQuorum)
	_, ok = FaultyPlayer(quorum)
	require.False(t, ok)

	require.Nil(t, FaultKind(detail))
	require.ErrorIs(t, MalformedMessage(1, nil), ErrMalformedMessage)
	_, ok = FaultyDealer(err)
	require.False(t, ok)
}

func TestValueFaultNamesBothPlayers(t *testing.T) {
	err := ValueFault(4, 0, errors.New("bad value"))
	require.ErrorIs(t, err, ErrProtocolFault)
	require.EqualError(t, err, "protocol fault (player 4 or dealer 0): bad value")

	player, ok := FaultyPlayer(err)
	require.True(t, ok)
	require.Equal(t, 4, player)
	dealer, ok := FaultyDealer(err)
	require.True(t, ok)
	require.Equal(t, 0, dealer)
}
