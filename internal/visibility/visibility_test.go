package visibility

import (
	"math/rand"
	"testing"

	"github.com/exowarexyz/simulator/internal/entry"
	"github.com/stretchr/testify/require"
)

func TestSampleDelayZeroBound(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	require.EqualValues(t, 0, SampleDelay(Bounds{Min: 0, Max: 0}, rng))
}

func TestSampleDelayWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := SampleDelay(Bounds{Min: 200, Max: 300}, rng)
		require.GreaterOrEqual(t, d, uint64(200))
		require.LessOrEqual(t, d, uint64(300))
	}
}

func TestRateLimitedNoPrevious(t *testing.T) {
	require.False(t, RateLimited(nil, 1000))
}

func TestRateLimitedWithinSameSecond(t *testing.T) {
	prev := entry.Entry{UpdatedAt: 1000}
	require.True(t, RateLimited(&prev, 1000))
}

func TestRateLimitedAfterOneSecond(t *testing.T) {
	prev := entry.Entry{UpdatedAt: 1000}
	require.False(t, RateLimited(&prev, 1001))
}

func TestNewWrite(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	e := NewWrite([]byte("v"), Bounds{Min: 0, Max: 0}, 1700000000123, rng)
	require.Equal(t, []byte("v"), e.Value)
	require.EqualValues(t, 1700000000123, e.VisibleAt)
	require.EqualValues(t, 1700000000, e.UpdatedAt)
}
