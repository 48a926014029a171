package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllow_ExhaustsBurst(t *testing.T) {
	l := New(1, 3)

	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"), "request %d should pass", i)
	}

	require.False(t, l.Allow("10.0.0.1"))

	// A different client has its own bucket.
	require.True(t, l.Allow("10.0.0.2"))
}

func TestAllow_RefillsOverTime(t *testing.T) {
	l := New(2, 2)

	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))

	// 1 second at 2 rps refills two tokens, capped at the burst.
	now = now.Add(time.Second)
	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
}

func TestSweep_DropsIdleBuckets(t *testing.T) {
	l := New(1, 1)

	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("10.0.0.1"))

	now = now.Add(10 * time.Minute)
	l.Sweep(5 * time.Minute)

	l.mu.Lock()
	_, ok := l.buckets["10.0.0.1"]
	l.mu.Unlock()
	require.False(t, ok)
}
