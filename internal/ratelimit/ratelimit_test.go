package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSpacesCalls(t *testing.T) {
	// 100 calls/s means at least 10ms between permitted calls.
	l := New(100)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	elapsed := time.Since(start)

	// First call is free (burst of 1), the next two wait one interval each.
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	// One call per 10s: the second Wait would block far past the deadline.
	l := New(0.1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx))
	assert.Error(t, l.Wait(ctx))
}

func TestNewNonPositiveRateFallsBack(t *testing.T) {
	l := New(-5)
	assert.NoError(t, l.Wait(context.Background()))
}
