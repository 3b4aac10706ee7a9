package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	t.Parallel()
	l := New(Config{RPS: 1, Burst: 2})

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"), "third call within the same instant must be denied")
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	l := New(Config{RPS: 1, Burst: 1})

	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "a fresh key gets its own bucket")
}

func TestAllow_UnlimitedWhenRPSZero(t *testing.T) {
	t.Parallel()
	l := New(Config{})

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("1.2.3.4"))
	}
}

func TestSweep_DropsIdleBuckets(t *testing.T) {
	t.Parallel()
	l := New(Config{RPS: 1, Burst: 1})
	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("stale")
	assert.Len(t, l.buckets, 1)

	current = current.Add(idleTTL + time.Minute)
	l.Allow("fresh")
	assert.Len(t, l.buckets, 1, "stale bucket should be swept")
	_, ok := l.buckets["fresh"]
	assert.True(t, ok)
}
