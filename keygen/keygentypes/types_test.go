package keygentypes

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/smartcontractkit/libocr/offchainreporting2plus/types"
	"github.com/stretchr/testify/require"
)

func TestConfigBinaryRoundTrip(t *testing.T) {
	config := Config{
		[]P256ParticipantPublicKey{{1, 2, 3}, {4, 5, 6}},
		1,
		true,
	}
	data, err := config.MarshalBinary()
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, config, decoded)

	require.Error(t, decoded.UnmarshalBinary([]byte(`{}`)))
	require.Error(t, decoded.UnmarshalBinary([]byte(`not json`)))
}

func TestMakeInstanceID(t *testing.T) {
	contract := common.HexToAddress("0x514910771af9ca656af840dff83e8264ecf986ca")
	a := MakeInstanceID(contract, types.ConfigDigest{1})
	b := MakeInstanceID(contract, types.ConfigDigest{2})
	require.NotEqual(t, a, b)
	require.Equal(t, a, MakeInstanceID(contract, types.ConfigDigest{1}))
}
