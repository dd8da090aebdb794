package keygentypes

import (
	"context"
	"encoding"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/smartcontractkit/libocr/offchainreporting2plus/types"
)

// The InstanceID is a string that uniquely identifies a key generation instance.
// Use MakeInstanceID to create an InstanceID from a config contract address and a config digest.
type InstanceID string

func MakeInstanceID(configContract common.Address, configDigest types.ConfigDigest) InstanceID {
	// A single configuration runs at most one key generation, so the configDigest suffices as an identifier.
	return InstanceID(fmt.Sprintf("thresholdcore/v1/%s/%s", configContract, configDigest))
}

// 33 bytes is the length of a compressed P-256 point (other than infinity), serialized according to SEC 1, Version 2.0,
// Section 2.3.3. The length of 33 bytes is enforced, points at infinity are not considered valid public keys.
const (
	P256CompressedPointLength      = 33
	P256ParticipantPublicKeyLength = P256CompressedPointLength
)

// 32 bytes is the length of the X-coordinate of a P-256 point, as returned by the ECDH function.
const P256ECDHSharedSecretLength = 32

type P256ParticipantPublicKey []byte
type P256ECDHSharedSecret []byte

// The P256Keyring interface guards a participant's P-256 secret key and provides methods to access the public key and
// compute shared secrets.
type P256Keyring interface {
	// Returns the public key associated with the keyring's internal P-256 secret key.
	PublicKey() P256ParticipantPublicKey

	// Computes the shared secret between the keyring's internal secret key (corresponding to keyring.PublicKey())
	// and the public key given as argument to this function.
	ECDH(publicKey P256ParticipantPublicKey) (sharedSecret P256ECDHSharedSecret, err error)
}

// Config of a key generation instance, identical for all participants.
type Config struct {
	// Public keys of the participants. The i-th participant's index in all messages is i.
	ParticipantPublicKeys []P256ParticipantPublicKey

	// Number of tolerated faulty participants. At least 3F+1 participants are required. F+1 decryption or signature
	// shares are needed to decrypt or sign with the generated keys.
	F int

	// If set, a dealer whose row fails verification is excluded instead of aborting the key generation.
	ExcludeFaultyDealers bool
}

var _ encoding.BinaryMarshaler = Config{}
var _ encoding.BinaryUnmarshaler = &Config{}

// This struct exists to make it easier to add a V2 in the future.
type versionedConfig struct {
	V1 *Config
}

// MarshalBinary implements encoding.BinaryMarshaler using JSON as the underlying representation.
func (c Config) MarshalBinary() ([]byte, error) {
	return json.Marshal(versionedConfig{V1: &c})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using JSON as the underlying representation.
func (c *Config) UnmarshalBinary(data []byte) error {
	var versioned versionedConfig
	if err := json.Unmarshal(data, &versioned); err != nil {
		return err
	}
	if versioned.V1 == nil {
		return fmt.Errorf("invalid versioned config: V1 is nil")
	}
	*c = *versioned.V1
	return nil
}

// An activated keyring with additional metadata to be stored in a database.
type KeyringDatabaseValue struct {
	Config Config
	Digest common.Hash // digest of the agreed public key material

	// Encoded keyring, including the local player's secret shares.
	Keyring []byte
}

// KeyringDatabase is a key-value database that maps InstanceIDs to KeyringDatabaseValue.
// KeyringDatabase is ever-growing, i.e. there is no deletion from the database.
//
// All its functions should be thread-safe.
type KeyringDatabase interface {
	// ReadKeyring reads the keyring of an instance from the database. If no keyring with the given instanceID is
	// found, it returns (nil, nil).
	ReadKeyring(ctx context.Context, iid InstanceID) (*KeyringDatabaseValue, error)

	// WriteKeyring writes a key-value pair consisting of an instanceID and a KeyringDatabaseValue.
	WriteKeyring(ctx context.Context, iid InstanceID, value KeyringDatabaseValue) error
}
