package storage

import (
	"bytes"
	"errors"
	"testing"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	lvl, err := NewMemLevelDB()
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { _ = lvl.Close() })
	return map[string]Database{
		"memdb":   NewMemDB(),
		"leveldb": lvl,
	}
}

func TestDatabaseGetMissing(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			ok, err := db.Has([]byte("missing"))
			if err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestDatabaseWriteBatch(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := db.Put([]byte("stale"), []byte("x")); err != nil {
				t.Fatalf("put: %v", err)
			}
			batch := new(Batch)
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("stale"))
			if batch.Len() != 3 {
				t.Fatalf("unexpected batch len %d", batch.Len())
			}
			if err := db.WriteBatch(batch); err != nil {
				t.Fatalf("write batch: %v", err)
			}
			got, err := db.Get([]byte("b"))
			if err != nil || !bytes.Equal(got, []byte("2")) {
				t.Fatalf("unexpected value %q err=%v", got, err)
			}
			if ok, _ := db.Has([]byte("stale")); ok {
				t.Fatalf("expected stale key to be deleted")
			}
		})
	}
}

func TestEmptyBatchIsNoop(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := db.WriteBatch(nil); err != nil {
				t.Fatalf("nil batch: %v", err)
			}
			if err := db.WriteBatch(new(Batch)); err != nil {
				t.Fatalf("empty batch: %v", err)
			}
		})
	}
}
