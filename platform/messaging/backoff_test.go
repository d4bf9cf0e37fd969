package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2}
	require.Equal(t, 10*time.Millisecond, b.Delay(1))
	require.Equal(t, 20*time.Millisecond, b.Delay(2))
	require.Equal(t, 40*time.Millisecond, b.Delay(3))
	require.Equal(t, 50*time.Millisecond, b.Delay(4))
	require.Equal(t, 50*time.Millisecond, b.Delay(30))
}

func TestBackoffFullJitterStaysWithinCap(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond, Multiplier: 2, Jitter: true}
	for attempt := 1; attempt < 50; attempt++ {
		d := b.Delay(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 40*time.Millisecond)
	}
}
