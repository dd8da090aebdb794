package dummykeygen

import (
	"crypto/sha256"
	"fmt"

	"github.com/bftkit/thresholdcore/internal/crypto/dkg"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/p256keyringshim"
	"github.com/bftkit/thresholdcore/internal/testimplementations/unsaferand"
	"github.com/bftkit/thresholdcore/keygen/keygentypes"
	"github.com/bftkit/thresholdcore/p256keyring"
	"github.com/ethereum/go-ethereum/common"
)

// 🚨🚨🚨  SECURITY WARNING                                                      🚨🚨🚨
// 🚨🚨🚨  All keys produced by this package are derived from a public seed.     🚨🚨🚨
// 🚨🚨🚨  Use it for tests and development networks only.                       🚨🚨🚨

// Placeholder config contract, instance ids only need to be unique per seed.
var configContract = common.HexToAddress("0x514910771af9ca656af840dff83e8264ecf986ca")

// Setup deterministically derives an instance id, a config and the participants' long-term keyrings from the seed.
func Setup(n int, f int, seed string) (keygentypes.InstanceID, keygentypes.Config, []keygentypes.P256Keyring, error) {
	rand := unsaferand.New("DummyKeygen-Setup", seed, n, f)
	iid := keygentypes.MakeInstanceID(configContract, sha256.Sum256([]byte(seed)))

	keyrings := make([]keygentypes.P256Keyring, n)
	publicKeys := make([]keygentypes.P256ParticipantPublicKey, n)
	for i := range keyrings {
		kr, err := p256keyring.New(rand)
		if err != nil {
			return "", keygentypes.Config{}, nil, err
		}
		keyrings[i] = kr
		publicKeys[i] = kr.PublicKey()
	}

	config := keygentypes.Config{
		ParticipantPublicKeys: publicKeys,
		F:                     f,
	}
	return iid, config, keyrings, nil
}

// Simulate runs the key generation between all participants in memory and returns the values every participant
// would have stored in its keyring database. Simulating the execution requires the keyrings of all participants.
func Simulate(
	iid keygentypes.InstanceID, config keygentypes.Config, keyrings []keygentypes.P256Keyring,
) ([]keygentypes.KeyringDatabaseValue, error) {
	n := len(config.ParticipantPublicKeys)
	if len(keyrings) != n {
		return nil, fmt.Errorf("got %d keyrings for %d participants", len(keyrings), n)
	}

	publicKeys := make([]dkgtypes.P256PublicKey, n)
	identities := make([]dkgtypes.P256Keyring, n)
	for i, pk := range config.ParticipantPublicKeys {
		var err error
		if publicKeys[i], err = dkgtypes.NewP256PublicKey(pk); err != nil {
			return nil, err
		}
		if identities[i], err = p256keyringshim.New(keyrings[i]); err != nil {
			return nil, err
		}
		if !publicKeys[i].Equal(identities[i].PublicKey()) {
			return nil, fmt.Errorf("keyring %d does not match the corresponding public key in the config", i)
		}
	}

	var opts []dkg.Option
	if config.ExcludeFaultyDealers {
		opts = append(opts, dkg.WithFaultyDealerExclusion())
	}
	results, err := dkg.SimulateForTest(dkgtypes.InstanceID(iid), publicKeys, config.F, identities, opts...)
	if err != nil {
		return nil, err
	}

	values := make([]keygentypes.KeyringDatabaseValue, n)
	for i, result := range results {
		data, err := result.Bytes()
		if err != nil {
			return nil, err
		}
		values[i] = keygentypes.KeyringDatabaseValue{Config: config, Digest: result.Digest(), Keyring: data}
	}
	return values, nil
}
