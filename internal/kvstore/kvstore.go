// Package kvstore wraps a single embedded badger database as the durable,
// ordered byte-keyed store underlying both the plain KV surface and the ADB
// overlay. It owns no visibility or rate-limit policy; that lives in
// internal/visibility, and internal/store and internal/adb layer Entry
// semantics on top of the raw Put/Get/Scan operations here.
package kvstore

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// Store is a thin wrapper around a *badger.DB providing the ordered
// byte-key operations the rest of the simulator depends on. The DB handle
// is safe for concurrent use from many goroutines; badger does its own
// internal locking per key.
type Store struct {
	db  *badger.DB
	log *zap.SugaredLogger
}

// Open opens (creating if absent) a badger database rooted at dir.
func Open(dir string, log *zap.SugaredLogger) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger(log)).
		WithCompression(options.ZSTD).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %q: %w", dir, err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put durably overwrites key with value. A successful Put survives process
// crash: badger's write-ahead value log and SyncWrites guarantee this.
func (s *Store) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// ErrNotFound is returned by Get when key has no stored value.
var ErrNotFound = badger.ErrKeyNotFound

// Get returns the value stored at key, or ErrNotFound if absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// KV is one key/value pair yielded by Scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Scan iterates keys in ascending lexicographic order starting at the
// first key >= from (or the least key if from is nil), invoking yield for
// each. Scan stops and returns nil as soon as yield returns false, so
// callers implement their own end-of-range and limit checks.
func (s *Store) Scan(from []byte, yield func(KV) (keepGoing bool)) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		if from == nil {
			it.Rewind()
		} else {
			it.Seek(from)
		}
		for ; it.Valid(); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			var value []byte
			if err := item.Value(func(val []byte) error {
				value = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			if !yield(KV{Key: key, Value: value}) {
				return nil
			}
		}
		return nil
	})
}

// Compare returns -1, 0 or +1 as a is lexicographically less than, equal
// to, or greater than b, exposed for callers that need to replicate
// badger's own key-ordering comparisons outside a transaction (the
// range-query boundary check in internal/store).
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}
