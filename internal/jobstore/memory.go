package jobstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"resume-insight/internal/shared/metrics"
	"resume-insight/internal/shared/telemetry"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in process memory. Expired entries are removed
// when read and by Sweep.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemoryStore builds an empty store. A nil now uses time.Now.
func NewMemoryStore(defaultTTL time.Duration, now func() time.Time) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        now,
	}
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	data := append([]byte(nil), value...)
	m.mu.Lock()
	m.entries[key] = entry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		metrics.AddCacheEvicted(1)
		return nil, false, nil
	}
	return append([]byte(nil), e.data...), true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || now.After(e.expiresAt) {
		m.entries[key] = entry{data: []byte("1"), expiresAt: now.Add(ttl)}
		return 1, nil
	}
	n, err := strconv.ParseInt(string(e.data), 10, 64)
	if err != nil {
		return 0, errors.Newf("value at %s is not a counter", key)
	}
	n++
	e.data = strconv.AppendInt(nil, n, 10)
	m.entries[key] = e
	return n, nil
}

// Len reports the number of entries held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	removed := 0
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	m.mu.Unlock()
	metrics.AddCacheEvicted(removed)
	return removed
}

// Run sweeps on every tick of interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				telemetry.Debug("jobstore.sweep", map[string]any{
					"removed":   n,
					"remaining": m.Len(),
				})
			}
		}
	}
}
