package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"cryptoavisos/storage"
)

var (
	ErrTxnClosed  = errors.New("state: transaction already closed")
	ErrEmptyKey   = errors.New("kv: key must not be empty")
	ErrNilManager = errors.New("state: manager not configured")
)

// KV is the read/write surface shared by the manager and its transactions.
// Values are RLP encoded; keys are hashed with keccak256 before they reach the
// backing database.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Manager owns the backing database and hands out transactions. Writes made
// through the manager itself are applied immediately; ledger operations use
// Update so that a failure leaves storage untouched.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Begin opens a buffered transaction over the current state.
func (m *Manager) Begin() *Txn {
	return &Txn{
		db:     m.db,
		writes: make(map[string][]byte),
	}
}

// Update runs fn inside a transaction, committing when fn returns nil and
// discarding every buffered write otherwise.
func (m *Manager) Update(fn func(tx *Txn) error) error {
	if m == nil || m.db == nil {
		return ErrNilManager
	}
	tx := m.Begin()
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// View runs fn against a transaction that is always discarded.
func (m *Manager) View(fn func(kv KV) error) error {
	if m == nil || m.db == nil {
		return ErrNilManager
	}
	tx := m.Begin()
	defer tx.Discard()
	return fn(tx)
}

func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	var found bool
	err := m.View(func(kv KV) error {
		var err error
		found, err = kv.KVGet(key, out)
		return err
	})
	return found, err
}

func (m *Manager) KVGetList(key []byte, out interface{}) error {
	return m.View(func(kv KV) error { return kv.KVGetList(key, out) })
}

func (m *Manager) KVPut(key []byte, value interface{}) error {
	return m.Update(func(tx *Txn) error { return tx.KVPut(key, value) })
}

func (m *Manager) KVDelete(key []byte) error {
	return m.Update(func(tx *Txn) error { return tx.KVDelete(key) })
}

func (m *Manager) KVAppend(key []byte, value []byte) error {
	return m.Update(func(tx *Txn) error { return tx.KVAppend(key, value) })
}

// Txn buffers writes in memory until Commit. Reads observe the buffered
// writes first and fall back to the database. Txn is not safe for concurrent
// use.
type Txn struct {
	db     storage.Database
	writes map[string][]byte // nil value marks a deletion
	order  []string
	closed bool
}

func (t *Txn) raw(hashed []byte) ([]byte, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	if value, ok := t.writes[string(hashed)]; ok {
		return value, nil
	}
	value, err := t.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (t *Txn) set(hashed []byte, value []byte) error {
	if t.closed {
		return ErrTxnClosed
	}
	key := string(hashed)
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = value
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return t.set(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, ErrEmptyKey
	}
	data, err := t.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key.
func (t *Txn) KVDelete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return t.set(kvKey(key), nil)
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (t *Txn) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	hashed := kvKey(key)
	data, err := t.raw(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return t.set(hashed, encoded)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (t *Txn) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	data, err := t.raw(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// Pending reports the number of buffered writes.
func (t *Txn) Pending() int {
	return len(t.order)
}

// Commit flushes every buffered write to the database as one batch.
func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	batch := new(storage.Batch)
	for _, key := range t.order {
		value := t.writes[key]
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value)
	}
	if err := t.db.WriteBatch(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Discard drops the buffered writes. Calling Discard on a closed transaction
// is a no-op.
func (t *Txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	t.writes = nil
	t.order = nil
}
