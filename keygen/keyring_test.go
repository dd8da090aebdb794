package keygen

import (
	"testing"

	"github.com/bftkit/thresholdcore/dummykeygen"
	"github.com/bftkit/thresholdcore/internal/testimplementations/testhelpers"
	"github.com/bftkit/thresholdcore/internal/testimplementations/unsaferand"
	"github.com/stretchr/testify/require"
)

func simulatedKeyrings(t *testing.T, n int, f int, seed string) []*Keyring {
	iid, config, p256Keyrings, err := dummykeygen.Setup(n, f, seed)
	require.NoError(t, err)
	values, err := dummykeygen.Simulate(iid, config, p256Keyrings)
	require.NoError(t, err)

	keyrings := make([]*Keyring, n)
	for i, v := range values {
		keyrings[i], err = UnmarshalKeyring(v.Keyring)
		require.NoError(t, err)
		require.Equal(t, v.Digest, keyrings[i].Digest())
	}
	return keyrings
}

func decryptionShares(t *testing.T, keyrings []*Keyring, ciphertext []byte, players ...int) [][]byte {
	shares := make([][]byte, len(players))
	for i, p := range players {
		var err error
		shares[i], err = keyrings[p].PartialDecrypt(ciphertext)
		require.NoError(t, err)
		require.NoError(t, keyrings[0].VerifyDecryptionShare(ciphertext, shares[i]))
	}
	return shares
}

func TestKeyringDecryptNeedsThresholdPlusOneShares(t *testing.T) {
	keyrings := simulatedKeyrings(t, 7, 2, "decrypt")
	require.Equal(t, 2, keyrings[0].Threshold())

	ciphertext, err := keyrings[4].Encrypt([]byte("encrypted transaction"), 17, unsaferand.New("encrypt"))
	require.NoError(t, err)

	_, err = keyrings[0].Decrypt(ciphertext, decryptionShares(t, keyrings, ciphertext, 1, 6))
	require.ErrorIs(t, err, ErrInsufficientQuorum)

	for _, players := range [][]int{{0, 1, 2}, {6, 3, 5}, {0, 1, 2, 3, 4, 5, 6}} {
		plaintext, err := keyrings[3].Decrypt(ciphertext, decryptionShares(t, keyrings, ciphertext, players...))
		require.NoError(t, err)
		require.Equal(t, []byte("encrypted transaction"), plaintext)
	}
}

func TestKeyringRejectsBadDecryptionShares(t *testing.T) {
	keyrings := simulatedKeyrings(t, 4, 1, "bad decryption shares")
	c1, err := keyrings[0].Encrypt([]byte("first"), 1, unsaferand.New("c1"))
	require.NoError(t, err)
	c2, err := keyrings[0].Encrypt([]byte("other"), 1, unsaferand.New("c2"))
	require.NoError(t, err)

	wrong, err := keyrings[2].PartialDecrypt(c2)
	require.NoError(t, err)
	err = keyrings[0].VerifyDecryptionShare(c1, wrong)
	require.ErrorIs(t, err, ErrProtocolFault)
	player, ok := FaultyPlayer(err)
	require.True(t, ok)
	require.Equal(t, 2, player)

	shares := append(decryptionShares(t, keyrings, c1, 1), wrong)
	_, err = keyrings[0].Decrypt(c1, shares)
	require.ErrorIs(t, err, ErrProtocolFault)

	_, err = keyrings[0].Decrypt(c1, append(shares[:1], []byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrMalformedMessage)

	duplicate := decryptionShares(t, keyrings, c1, 1, 1)
	_, err = keyrings[0].Decrypt(c1, duplicate)
	require.ErrorIs(t, err, ErrProtocolFault)
}

func TestKeyringRejectsTamperedCiphertext(t *testing.T) {
	keyrings := simulatedKeyrings(t, 4, 1, "tampered")
	ciphertext, err := keyrings[0].Encrypt([]byte("payload"), 3, unsaferand.New("tampered"))
	require.NoError(t, err)

	// The last bytes of the encoding hold V.
	tampered := testhelpers.FlipBit(ciphertext, 8*len(ciphertext)-1)
	_, err = keyrings[1].PartialDecrypt(tampered)
	require.ErrorIs(t, err, ErrMalformedMessage)
	require.ErrorContains(t, err, "not well-formed")

	_, err = keyrings[1].PartialDecrypt(ciphertext[:len(ciphertext)-1])
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestKeyringThresholdSignatures(t *testing.T) {
	keyrings := simulatedKeyrings(t, 4, 1, "signatures")
	msg := []byte("block 42")

	shares := make([][]byte, len(keyrings))
	for i, k := range keyrings {
		var err error
		shares[i], err = k.Sign(msg)
		require.NoError(t, err)
		require.NoError(t, keyrings[0].VerifySignatureShare(msg, shares[i]))
	}

	_, err := keyrings[0].CombineSignatures(msg, shares[:1])
	require.ErrorIs(t, err, ErrInsufficientQuorum)

	sig1, err := keyrings[0].CombineSignatures(msg, shares[:2])
	require.NoError(t, err)
	sig2, err := keyrings[3].CombineSignatures(msg, shares[2:])
	require.NoError(t, err)
	require.Equal(t, sig1, sig2, "group signatures are unique")
	for _, k := range keyrings {
		require.True(t, k.VerifySignature(msg, sig1))
	}
	require.False(t, keyrings[0].VerifySignature([]byte("block 43"), sig1))
	require.False(t, keyrings[0].VerifySignature(msg, sig1[1:]))

	other, err := keyrings[1].Sign([]byte("block 43"))
	require.NoError(t, err)
	err = keyrings[0].VerifySignatureShare(msg, other)
	require.ErrorIs(t, err, ErrProtocolFault)
	player, ok := FaultyPlayer(err)
	require.True(t, ok)
	require.Equal(t, 1, player)

	_, err = keyrings[0].CombineSignatures(msg, [][]byte{shares[0], other})
	require.ErrorIs(t, err, ErrProtocolFault)
}

func TestKeyringMarshalBinary(t *testing.T) {
	keyrings := simulatedKeyrings(t, 4, 1, "marshal")
	data, err := keyrings[1].MarshalBinary()
	require.NoError(t, err)

	var restored Keyring
	require.NoError(t, restored.UnmarshalBinary(data))
	require.Equal(t, keyrings[1].Digest(), restored.Digest())
	require.Equal(t, 1, restored.PlayerIndex())
	require.Equal(t, keyrings[1].VerificationKey(), restored.VerificationKey())
	require.Equal(t, keyrings[1].PublicKeySet(), restored.PublicKeySet())

	pk1, err := keyrings[1].PublicKey()
	require.NoError(t, err)
	pk2, err := restored.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pk1, pk2)

	require.Error(t, restored.UnmarshalBinary(data[:len(data)-1]))
	_, err = (&Keyring{}).MarshalBinary()
	require.Error(t, err)

	require.Contains(t, keyrings[1].String(), "player: 1")
	require.Equal(t, "Keyring{}", (&Keyring{}).GoString())
}

func TestPeekMessageType(t *testing.T) {
	_, ok := PeekMessageType(nil)
	require.False(t, ok)
	_, ok = PeekMessageType([]byte{0})
	require.False(t, ok)
	typ, ok := PeekMessageType([]byte{byte(MessageTypeConfirm), 1})
	require.True(t, ok)
	require.Equal(t, "confirm", typ.String())
	require.Equal(t, "unknown(9)", MessageType(9).String())
}
