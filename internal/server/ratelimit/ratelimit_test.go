package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurstThenThrottle(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("1.2.3.4"), "burst exhausted")
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, 1)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestTokensRefill(t *testing.T) {
	l := New(100, 1)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow("a"), "tokens refill over time")
}
