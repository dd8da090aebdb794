package kv

import (
	"fmt"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/smartcontractkit/libocr/offchainreporting2plus/ocr3_1types"
)

// Access shim for the key/value store holding the crash-recovery state of key generation sessions.
// The keys are defined below. The values are marshaled/unmarshaled using the codec package.
//
// Note: Read semantics of the underlying ocr3_1types.KeyValueReader are followed, i.e. if no value for a given key
// exists, the zero value of the corresponding type is returned without an error (and unmarshaling is not attempted).

const sessionStateKey = "SessionState"

type storageKey []byte

// Returns the key/value store key for accessing the session state of the given instance.
func SessionStateKey(iid dkgtypes.InstanceID) storageKey {
	return storageKey(fmt.Sprintf("%s_%s", iid, sessionStateKey))
}

// ReadObject reads and unmarshals an object from the key/value store. If no value for the given key exists, the zero
// value of T is returned without an error (and unmarshaling is not attempted).
func ReadObject[T any](kvStore ocr3_1types.KeyValueReader, key storageKey, unmarshaler codec.Unmarshaler[T]) (T, error) {
	var zero T

	data, err := kvStore.Read(key)
	if err != nil {
		return zero, fmt.Errorf("kv.ReadObject, read from key/value store failed (key: %q): %w", key, err)
	}
	if data == nil {
		return zero, nil
	}
	defer clear(data)

	object, err := codec.Unmarshal(data, unmarshaler)
	if err != nil {
		return zero, fmt.Errorf("kv.ReadObject, unmarshaling failed (key: %q): %w", key, err)
	}
	return object, nil
}

// WriteObject marshals and writes an object to the key/value store. If the call is successful, the number of bytes
// written is returned.
func WriteObject(kvStore ocr3_1types.KeyValueReadWriter, key storageKey, marshaler codec.Marshaler) (int, error) {
	data, err := codec.Marshal(marshaler)
	if err != nil {
		return 0, fmt.Errorf("kv.WriteObject, marshaling failed (key: %q): %w", key, err)
	}
	defer clear(data)

	if err := kvStore.Write(key, data); err != nil {
		return 0, fmt.Errorf("kv.WriteObject, writing to key/value store failed (key: %q): %w", key, err)
	}
	return len(key) + len(data), nil
}

// DeleteObject removes the value stored for the given key.
func DeleteObject(kvStore ocr3_1types.KeyValueReadWriter, key storageKey) error {
	if err := kvStore.Delete(key); err != nil {
		return fmt.Errorf("kv.DeleteObject, deleting from key/value store failed (key: %q): %w", key, err)
	}
	return nil
}

// Update runs fn within a read/write transaction of db and commits it if fn succeeds.
func Update(db ocr3_1types.KeyValueDatabase, fn func(ocr3_1types.KeyValueReadWriter) error) error {
	tx, err := db.NewReadWriteTransaction()
	if err != nil {
		return fmt.Errorf("kv.Update, failed to open transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kv.Update, failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn within a read transaction of db.
func View(db ocr3_1types.KeyValueDatabase, fn func(ocr3_1types.KeyValueReader) error) error {
	tx, err := db.NewReadTransaction()
	if err != nil {
		return fmt.Errorf("kv.View, failed to open transaction: %w", err)
	}
	defer tx.Discard()
	return fn(tx)
}
