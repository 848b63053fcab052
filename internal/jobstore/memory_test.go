package jobstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore() (*MemoryStore, *clock) {
	c := &clock{t: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore(time.Hour, c.now), c
}

func TestMemoryStoreSetGet(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(got))

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	s, c := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Second))

	c.t = c.t.Add(9 * time.Second)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok, "entry should survive before its TTL")

	c.t = c.t.Add(2 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok, "entry should be absent after its TTL")
	assert.Equal(t, 0, s.Len(), "expired entry should be evicted on read")
}

func TestMemoryStoreDefaultTTL(t *testing.T) {
	s, c := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

	c.t = c.t.Add(59 * time.Minute)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	c.t = c.t.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStoreSweep(t *testing.T) {
	s, c := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("b"), time.Hour))

	c.t = c.t.Add(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, ok, _ := s.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value, time.Minute))
	value[0] = 'z'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[0] = 'y'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreRunStopsOnCancel(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestJSONHelpers(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	type payload struct {
		Status string `json:"status"`
	}
	require.NoError(t, PutJSON(ctx, s, StatusKey("abc"), payload{Status: "processing"}, time.Minute))

	var got payload
	ok, err := GetJSON(ctx, s, StatusKey("abc"), &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "processing", got.Status)

	ok, err = GetJSON(ctx, s, ResultKey("abc"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreIncrIsAtomicAndExpires(t *testing.T) {
	s, c := newTestStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Incr(ctx, "tries", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Incr(ctx, "tries", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)

	c.t = c.t.Add(61 * time.Second)
	n, err = s.Incr(ctx, "tries", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the first increment's ttl is kept, so the counter restarts")
}

func TestMemoryStoreIncrRejectsNonCounter(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("text"), time.Minute))

	_, err := s.Incr(ctx, "k", time.Minute)
	assert.Error(t, err)
}
