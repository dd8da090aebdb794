package kv

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/smartcontractkit/libocr/offchainreporting2plus/ocr3_1types"
)

var (
	errClosed    = errors.New("key value database closed")
	errDiscarded = errors.New("transaction discarded")
	errConflict  = errors.New("transaction conflicts with a concurrent commit")
)

// InMemoryKeyValueDatabase is an ocr3_1types.KeyValueDatabase for tests. Every transaction works on a snapshot of the
// store, a commit fails if another transaction committed since the snapshot was taken.
type InMemoryKeyValueDatabase struct {
	mu      sync.Mutex
	version uint64
	store   map[string][]byte
	closed  bool

	// FailCommits makes every commit fail, e.g., to simulate a full disk.
	FailCommits bool
}

var _ ocr3_1types.KeyValueDatabase = &InMemoryKeyValueDatabase{}

func NewInMemoryKeyValueDatabase() *InMemoryKeyValueDatabase {
	return &InMemoryKeyValueDatabase{store: make(map[string][]byte)}
}

func (d *InMemoryKeyValueDatabase) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.store)
	d.closed = true
	return nil
}

// Len returns the number of stored keys.
func (d *InMemoryKeyValueDatabase) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.store)
}

func (d *InMemoryKeyValueDatabase) NewReadTransaction() (ocr3_1types.KeyValueReadTransaction, error) {
	return d.snapshot()
}

func (d *InMemoryKeyValueDatabase) NewReadWriteTransaction() (ocr3_1types.KeyValueReadWriteTransaction, error) {
	return d.snapshot()
}

func (d *InMemoryKeyValueDatabase) snapshot() (*transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}
	return &transaction{parent: d, version: d.version, store: maps.Clone(d.store)}, nil
}

func (d *InMemoryKeyValueDatabase) commit(version uint64, store map[string][]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	if d.FailCommits {
		return errors.New("commit failed")
	}
	if d.version != version {
		return errConflict
	}
	d.store = store
	d.version++
	return nil
}

type transaction struct {
	parent  *InMemoryKeyValueDatabase
	version uint64

	mu    sync.Mutex
	store map[string][]byte // nil once committed or discarded
}

var _ ocr3_1types.KeyValueReadWriteTransaction = &transaction{}

func (tx *transaction) Read(key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.store == nil {
		return nil, errDiscarded
	}
	if v, ok := tx.store[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	return nil, nil
}

func (tx *transaction) Write(key []byte, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	value = bytes.Clone(value)

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.store == nil {
		return errDiscarded
	}
	tx.store[string(key)] = value
	return nil
}

func (tx *transaction) Delete(key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.store == nil {
		return errDiscarded
	}
	delete(tx.store, string(key))
	return nil
}

// Range iterates over the keys in [loKey, hiKeyExcl) in ascending order. An empty hiKeyExcl means no upper bound.
func (tx *transaction) Range(loKey []byte, hiKeyExcl []byte) ocr3_1types.KeyValueIterator {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.store == nil {
		return &iterator{err: errDiscarded}
	}

	var keys []string
	for k := range tx.store {
		if k >= string(loKey) && (len(hiKeyExcl) == 0 || k < string(hiKeyExcl)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return &iterator{keys: keys, tx: tx}
}

func (tx *transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.store == nil {
		return errDiscarded
	}
	store := tx.store
	tx.store = nil
	return tx.parent.commit(tx.version, store)
}

func (tx *transaction) Discard() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.store = nil
}

type iterator struct {
	err     error
	keys    []string
	next    int
	current []byte
	closed  bool
	tx      *transaction
}

var _ ocr3_1types.KeyValueIterator = &iterator{}

func (it *iterator) Next() bool {
	if it.closed || it.err != nil || it.next >= len(it.keys) {
		return false
	}
	it.current = []byte(it.keys[it.next])
	it.next++
	return true
}

func (it *iterator) Key() []byte {
	return bytes.Clone(it.current)
}

func (it *iterator) Value() ([]byte, error) {
	return it.tx.Read(it.current)
}

func (it *iterator) Err() error {
	return it.err
}

func (it *iterator) Close() error {
	it.closed = true
	return nil
}
