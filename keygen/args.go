package keygen

import (
	"errors"
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/keygen/keygentypes"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartcontractkit/libocr/commontypes"
	"github.com/smartcontractkit/libocr/offchainreporting2plus/ocr3_1types"
)

// Args are the dependencies and parameters of a key generation session.
type Args struct {
	// Optional, defaults to a logrus logger at info level.
	Logger commontypes.Logger

	// Optional, defaults to a private registry that is not exported anywhere.
	MetricsRegisterer prometheus.Registerer

	// Holds the crash-recovery state of the session. The state contains secret values, the database must be
	// protected like a key store.
	KeyValueDatabase ocr3_1types.KeyValueDatabase

	// Receives the activated keyring.
	KeyringDatabase keygentypes.KeyringDatabase

	// The local participant's long-term identity, its public key must be listed in Config.ParticipantPublicKeys.
	Keyring keygentypes.P256Keyring

	InstanceID keygentypes.InstanceID
	Config     keygentypes.Config

	// Optional, defaults to crypto/rand.Reader.
	Rand io.Reader
}

// Validate reports all problems of the arguments at once.
func (a *Args) Validate() error {
	var result *multierror.Error

	if a.KeyValueDatabase == nil {
		result = multierror.Append(result, errors.New("KeyValueDatabase must not be nil"))
	}
	if a.KeyringDatabase == nil {
		result = multierror.Append(result, errors.New("KeyringDatabase must not be nil"))
	}
	if a.InstanceID == "" {
		result = multierror.Append(result, errors.New("InstanceID must not be empty"))
	}

	n, f := len(a.Config.ParticipantPublicKeys), a.Config.F
	if f < 0 || n <= 3*f {
		result = multierror.Append(result, fmt.Errorf("%d participants cannot tolerate %d faults, need n > 3f", n, f))
	}

	seen := make(map[string]int, n)
	for i, pk := range a.Config.ParticipantPublicKeys {
		if _, err := dkgtypes.NewP256PublicKey(pk); err != nil {
			result = multierror.Append(result, fmt.Errorf("participant %d: %w", i, err))
			continue
		}
		if j, ok := seen[string(pk)]; ok {
			result = multierror.Append(result, fmt.Errorf("participants %d and %d share the same public key", j, i))
		}
		seen[string(pk)] = i
	}

	if a.Keyring == nil {
		result = multierror.Append(result, errors.New("Keyring must not be nil"))
	} else if _, ok := seen[string(a.Keyring.PublicKey())]; !ok {
		result = multierror.Append(result, errors.New("Keyring's public key is not among the participants"))
	}

	return result.ErrorOrNil()
}
