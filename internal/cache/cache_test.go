package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", 42, time.Minute)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("k", "v", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCachePurge(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Purge()

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheKeyNormalizesParts(t *testing.T) {
	assert.Equal(t, "90210|2026-01-01", cacheKey(" 90210 ", "", "2026-01-01"))
}
