// Package store implements the plain KV surface: set/get/query handlers
// wiring internal/kvstore (durable bytes) through internal/visibility (the
// simulated-consistency gate and write-rate limiter) and internal/entry
// (the on-disk record format).
package store

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/exowarexyz/simulator/internal/apierr"
	"github.com/exowarexyz/simulator/internal/entry"
	"github.com/exowarexyz/simulator/internal/kvstore"
	"github.com/exowarexyz/simulator/internal/visibility"
	"go.uber.org/zap"
)

// MaxKeySize is the largest accepted KV key, in bytes.
const MaxKeySize = 512

// MaxValueSize is the largest accepted KV value, in bytes.
const MaxValueSize = 20 * 1024 * 1024

// Store is the plain KV surface. It is safe for concurrent use; the rate
// limiter is deliberately not made atomic with the preceding read (see
// Set), matching the simulated racy behavior described by the consistency
// model.
type Store struct {
	kv     *kvstore.Store
	bounds visibility.Bounds
	log    *zap.SugaredLogger

	rngMu sync.Mutex
	rng   *rand.Rand

	// nowMillis is overridable in tests; defaults to wall-clock time.
	nowMillis func() uint64
}

// New constructs a Store over kv with the given consistency bounds.
func New(kv *kvstore.Store, bounds visibility.Bounds, log *zap.SugaredLogger) *Store {
	return &Store{
		kv:        kv,
		bounds:    bounds,
		log:       log,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		nowMillis: func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

func (s *Store) now() uint64 {
	return s.nowMillis()
}

func (s *Store) newWrite(value []byte, nowMillis uint64) entry.Entry {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return visibility.NewWrite(value, s.bounds, nowMillis, s.rng)
}

// Set validates and stores a new Entry for key, applying the write-rate
// limiter and the visibility delay. It returns an *apierr.Error on any
// rejection.
func (s *Store) Set(key, value []byte) error {
	if len(key) > MaxKeySize {
		return apierr.New(apierr.KindKeyTooLarge, "key exceeds maximum size of 512 bytes")
	}
	if len(value) > MaxValueSize {
		return apierr.New(apierr.KindValueTooLarge, "value exceeds maximum size of 20MB")
	}

	nowMs := s.now()
	nowS := nowMs / 1000

	previous, err := s.loadEntry(key)
	if err != nil && !apierr.IsNotFound(err) {
		return err
	}
	if previous != nil && visibility.RateLimited(previous, nowS) {
		return apierr.New(apierr.KindUpdateRateExceeded, "key updated less than one second ago")
	}

	newEntry := s.newWrite(value, nowMs)
	if err := s.kv.Put(key, entry.Encode(newEntry)); err != nil {
		return apierr.Wrap(apierr.KindDB, "storing entry failed", err)
	}
	return nil
}

// Get returns the visible value stored at key, or a KindNotFound error if
// absent or not yet visible (the two cases are indistinguishable to the
// caller, by design).
func (s *Store) Get(key []byte) ([]byte, error) {
	e, err := s.loadEntry(key)
	if err != nil {
		return nil, err
	}
	if !e.Visible(s.now()) {
		return nil, apierr.New(apierr.KindNotFound, "key not found")
	}
	return e.Value, nil
}

// loadEntry fetches and decodes the Entry at key, mapping a missing key to
// KindNotFound and a decode failure to KindDecode.
func (s *Store) loadEntry(key []byte) (*entry.Entry, error) {
	raw, err := s.kv.Get(key)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, apierr.New(apierr.KindNotFound, "key not found")
		}
		return nil, apierr.Wrap(apierr.KindDB, "reading entry failed", err)
	}
	e, err := entry.Decode(raw)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindDecode, "stored entry is corrupt", err)
	}
	return &e, nil
}

// QueryItem is one result row from Query.
type QueryItem struct {
	Key   []byte
	Value []byte
}

// Query iterates the KV in ascending key order starting at start (or the
// least key), returning up to limit visible entries (limit <= 0 means
// unbounded). Invisible entries are skipped without being treated as the
// end boundary: an invisible entry whose key is >= end does not terminate
// the scan, which runs on until it meets a visible key >= end or the last
// key in the store.
// This mirrors the original implementation and is considered correct
// behavior, not a defect. A corrupt (undecodable) entry is a different
// matter: it stops the scan and is returned as a KindDecode error, exactly
// as Get does, rather than being skipped.
func (s *Store) Query(start, end []byte, limit int) ([]QueryItem, error) {
	if end != nil && start != nil && kvstore.Compare(start, end) >= 0 {
		return nil, nil
	}

	now := s.now()
	var results []QueryItem
	var decodeErr error
	scanErr := s.kv.Scan(start, func(kv kvstore.KV) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		e, err := entry.Decode(kv.Value)
		if err != nil {
			s.logWarn("query: corrupt entry at key", kv.Key, err)
			decodeErr = apierr.Wrap(apierr.KindDecode, "stored entry is corrupt", err)
			return false
		}
		if !e.Visible(now) {
			return true
		}
		if end != nil && kvstore.Compare(kv.Key, end) >= 0 {
			return false
		}
		results = append(results, QueryItem{Key: kv.Key, Value: e.Value})
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	if scanErr != nil {
		return nil, apierr.Wrap(apierr.KindDB, "scanning store failed", scanErr)
	}
	return results, nil
}

func (s *Store) logWarn(msg string, key []byte, err error) {
	if s.log == nil {
		return
	}
	s.log.Warnw(msg, "key", fmt.Sprintf("%x", key), "error", err)
}
