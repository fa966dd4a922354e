package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 2, 14, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockEntry struct {
	count     int64
	expiresAt time.Time
}

type mockStorage struct {
	mu         sync.Mutex
	clock      *fakeClock
	entries    map[string]mockEntry
	ttlUnknown bool
}

func newMockStorage(clock *fakeClock) *mockStorage {
	return &mockStorage{clock: clock, entries: make(map[string]mockEntry)}
}

func (m *mockStorage) live(key string) (mockEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return mockEntry{}, false
	}
	if !m.clock.Now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return mockEntry{}, false
	}
	return entry, true
}

func (m *mockStorage) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, _ := m.live(key)
	return entry.count, nil
}

func (m *mockStorage) IncrementWithExpiry(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok {
		entry = mockEntry{expiresAt: m.clock.Now().Add(window)}
	}
	entry.count++
	m.entries[key] = entry
	return entry.count, nil
}

func (m *mockStorage) TTL(_ context.Context, key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttlUnknown {
		return 0, false
	}
	entry, ok := m.live(key)
	if !ok {
		return 0, false
	}
	return entry.expiresAt.Sub(m.clock.Now()), true
}

// blindStorage hides the TTL capability of the wrapped store.
type blindStorage struct {
	inner *mockStorage
}

func (b blindStorage) Get(ctx context.Context, key string) (int64, error) {
	return b.inner.Get(ctx, key)
}

func (b blindStorage) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	return b.inner.IncrementWithExpiry(ctx, key, window)
}

type failingStorage struct{}

var errStoreDown = errors.New("connection refused")

func (failingStorage) Get(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func (failingStorage) IncrementWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}

type routeParams map[string]string

func (p routeParams) RouteParam(name string) string { return p[name] }

func (p routeParams) BodyField(string) string { return "" }
