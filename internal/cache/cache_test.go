package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/model"
)

func TestCacheL1RoundTrip(t *testing.T) {
	c := New(10, 1<<20, time.Hour, nil)
	fp := model.Fingerprint("abc123")
	resp := model.Response{FinalURL: "https://example.com/", Status: 200, Body: []byte("hi")}

	require.NoError(t, c.Put(context.Background(), fp, resp))

	got, ok := c.Get(context.Background(), fp)
	require.True(t, ok)
	assert.Equal(t, resp.FinalURL, got.FinalURL)
	assert.Equal(t, resp.Body, got.Body)
}

func TestCacheMissReturnsFalse(t *testing.T) {
	c := New(10, 1<<20, time.Hour, nil)
	_, ok := c.Get(context.Background(), model.Fingerprint("nonexistent"))
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := New(10, 1<<20, time.Hour, nil)
	fp := model.Fingerprint("key1")
	require.NoError(t, c.Put(context.Background(), fp, model.Response{Status: 200}))

	require.NoError(t, c.Invalidate(context.Background(), fp))

	_, ok := c.Get(context.Background(), fp)
	assert.False(t, ok)
}

func TestLRUEvictsLeastRecentlyUsedByCount(t *testing.T) {
	l := newLRU(2, 0)
	l.put("a", []byte("1"))
	l.put("b", []byte("2"))
	l.get("a") // touch a, making b the least recently used
	l.put("c", []byte("3"))

	_, aOK := l.get("a")
	_, bOK := l.get("b")
	_, cOK := l.get("c")
	assert.True(t, aOK)
	assert.False(t, bOK)
	assert.True(t, cOK)
}
