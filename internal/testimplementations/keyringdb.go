package testimplementations

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/bftkit/thresholdcore/keygen/keygentypes"
)

// InMemoryKeyringDatabase is a keygentypes.KeyringDatabase for tests.
type InMemoryKeyringDatabase struct {
	mu       sync.Mutex
	keyrings map[keygentypes.InstanceID]keygentypes.KeyringDatabaseValue
	writes   int

	// FailWrites makes every write fail.
	FailWrites bool
}

var _ keygentypes.KeyringDatabase = &InMemoryKeyringDatabase{}

func NewInMemoryKeyringDatabase() *InMemoryKeyringDatabase {
	return &InMemoryKeyringDatabase{keyrings: make(map[keygentypes.InstanceID]keygentypes.KeyringDatabaseValue)}
}

func (db *InMemoryKeyringDatabase) ReadKeyring(
	_ context.Context, iid keygentypes.InstanceID,
) (*keygentypes.KeyringDatabaseValue, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	value, ok := db.keyrings[iid]
	if !ok {
		return nil, nil
	}
	value.Keyring = bytes.Clone(value.Keyring)
	return &value, nil
}

func (db *InMemoryKeyringDatabase) WriteKeyring(
	_ context.Context, iid keygentypes.InstanceID, value keygentypes.KeyringDatabaseValue,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.FailWrites {
		return errors.New("write failed")
	}
	value.Keyring = bytes.Clone(value.Keyring)
	db.keyrings[iid] = value
	db.writes++
	return nil
}

// Writes returns the number of successful WriteKeyring calls.
func (db *InMemoryKeyringDatabase) Writes() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.writes
}
