package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryRecord struct {
	entry   Entry
	expires time.Time
}

// MemoryStore is an in-process Store. Leases expire lazily against an
// injectable clock and the store can be switched unavailable to simulate
// outages.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	records   map[string]memoryRecord
	available bool
	stats     MemoryStats
}

// MemoryStats counts successful operations.
type MemoryStats struct {
	Puts    int
	Renews  int
	Deletes int
	Lists   int
}

// NewMemoryStore creates an available, empty store on the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store whose leases follow now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		now:       now,
		records:   make(map[string]memoryRecord),
		available: true,
	}
}

// SetAvailable switches the simulated connectivity.
func (m *MemoryStore) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

func (m *MemoryStore) check(ctx context.Context, op, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, key, err)
	}
	if !m.available {
		return fmt.Errorf("%w: %s %s: store offline", ErrUnavailable, op, key)
	}
	return nil
}

// live returns the record at key, dropping it if its lease ran out.
func (m *MemoryStore) live(key string) (memoryRecord, bool) {
	rec, ok := m.records[key]
	if !ok {
		return rec, false
	}
	if !m.now().Before(rec.expires) {
		delete(m.records, key)
		return rec, false
	}
	return rec, true
}

func (m *MemoryStore) Put(ctx context.Context, entry Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "put", entry.Key); err != nil {
		return err
	}
	if rec, ok := m.live(entry.Key); ok && rec.entry.Host != "" && rec.entry.Host != entry.Host {
		return fmt.Errorf("%w: %s is registered by host %s", ErrConflict, entry.Key, rec.entry.Host)
	}
	entry.Tags = append([]string(nil), entry.Tags...)
	m.records[entry.Key] = memoryRecord{entry: entry, expires: m.now().Add(ttl)}
	m.stats.Puts++
	return nil
}

func (m *MemoryStore) Renew(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "renew", key); err != nil {
		return err
	}
	rec, ok := m.live(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	rec.expires = m.now().Add(ttl)
	m.records[key] = rec
	m.stats.Renews++
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "delete", key); err != nil {
		return err
	}
	delete(m.records, key)
	m.stats.Deletes++
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "list", prefix); err != nil {
		return nil, err
	}
	var entries []Entry
	for _, key := range m.sortedKeysLocked() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if rec, ok := m.live(key); ok {
			entries = append(entries, rec.entry)
		}
	}
	m.stats.Lists++
	return entries, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(ctx, "ping", "")
}

func (m *MemoryStore) Close() error {
	return nil
}

// Keys returns the keys with unexpired leases, sorted. It ignores
// availability so tests can inspect the store during a simulated outage.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for _, key := range m.sortedKeysLocked() {
		if _, ok := m.live(key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Get returns the live entry at key.
func (m *MemoryStore) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.live(key)
	return rec.entry, ok
}

// Stats returns operation counters.
func (m *MemoryStore) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MemoryStore) sortedKeysLocked() []string {
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
