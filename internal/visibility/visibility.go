// Package visibility implements the simulated-eventual-consistency gate and
// the per-key write-rate limiter layered on top of internal/entry. Both are
// pure functions of timestamps and stored Entry values, independent of
// HTTP or storage, so they can be exercised without a server or a database.
package visibility

import (
	"math/rand"

	"github.com/exowarexyz/simulator/internal/entry"
)

// Bounds is the [min, max] millisecond range a write's visibility delay is
// drawn from. A zero Max means no delay is ever applied, regardless of Min.
type Bounds struct {
	Min uint64
	Max uint64
}

// SampleDelay draws a delay in milliseconds uniformly from [b.Min, b.Max]
// inclusive, or returns 0 if b.Max is 0.
func SampleDelay(b Bounds, rng *rand.Rand) uint64 {
	if b.Max == 0 {
		return 0
	}
	span := b.Max - b.Min
	return b.Min + uint64(rng.Int63n(int64(span)+1))
}

// RateLimited reports whether a write arriving at nowSeconds must be
// rejected because previous (the Entry currently stored at the same key,
// if any) was last updated less than one second ago. The comparison uses
// previous.UpdatedAt regardless of previous's own visibility: a write that
// is itself still invisible still blocks a second write within the same
// second. Concurrent callers may both observe previous == nil and both
// succeed; this is accepted racy behavior, not a bug to fix with locking.
func RateLimited(previous *entry.Entry, nowSeconds uint64) bool {
	if previous == nil {
		return false
	}
	if nowSeconds < previous.UpdatedAt {
		return true
	}
	return nowSeconds-previous.UpdatedAt < 1
}

// NewWrite builds the Entry a KV write should store: value as given,
// VisibleAt set nowMillis plus a delay sampled from bounds, UpdatedAt set
// to the second-resolution write time.
func NewWrite(value []byte, bounds Bounds, nowMillis uint64, rng *rand.Rand) entry.Entry {
	return entry.Entry{
		Value:     value,
		VisibleAt: nowMillis + SampleDelay(bounds, rng),
		UpdatedAt: nowMillis / 1000,
	}
}
