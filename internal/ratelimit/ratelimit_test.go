package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_Burst(t *testing.T) {
	rl := New(1, 3)
	defer rl.Stop()

	// Burst of 3 should be allowed immediately.
	assert.True(t, rl.Allow("provider-a"))
	assert.True(t, rl.Allow("provider-a"))
	assert.True(t, rl.Allow("provider-a"))
	assert.False(t, rl.Allow("provider-a"))
}

func TestAllow_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// A different key has its own bucket.
	assert.True(t, rl.Allow("b"))
}

func TestWait_RespectsContext(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	// Exhaust the bucket.
	require.True(t, rl.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx, "k")
	assert.Error(t, err)
}

func TestStop_Idempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	rl.Stop()
}
