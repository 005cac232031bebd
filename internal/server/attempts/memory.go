package attempts

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const stripes = 64

type entry struct {
	count     int
	expiresAt time.Time
}

// MemoryTracker keeps counters in a size-bounded LRU. Reads use Peek, so
// the eviction order is by last write. Expiry is checked lazily on access.
//
// The cache is safe on its own; the striped mutexes make the
// read-increment-write of a single name atomic without serializing
// unrelated names.
type MemoryTracker struct {
	cache *lru.Cache[string, entry]
	locks [stripes]sync.Mutex

	max int
	ttl time.Duration
	now func() time.Time
}

// MemoryOption customizes a MemoryTracker.
type MemoryOption func(*MemoryTracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(t *MemoryTracker) { t.now = now }
}

// WithTTL overrides TTL.
func WithTTL(d time.Duration) MemoryOption {
	return func(t *MemoryTracker) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// WithMaxAttempts overrides MaxAttempts.
func WithMaxAttempts(n int) MemoryOption {
	return func(t *MemoryTracker) {
		if n > 0 {
			t.max = n
		}
	}
}

// NewMemoryTracker returns a tracker holding at most capacity live entries.
// A non-positive capacity falls back to Capacity.
func NewMemoryTracker(capacity int, opts ...MemoryOption) (*MemoryTracker, error) {
	if capacity <= 0 {
		capacity = Capacity
	}
	c, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	t := &MemoryTracker{
		cache: c,
		max:   MaxAttempts,
		ttl:   TTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *MemoryTracker) lockFor(name string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return &t.locks[h.Sum32()%stripes]
}

// live returns the current count for name, dropping the entry if expired.
func (t *MemoryTracker) live(name string, now time.Time) int {
	e, ok := t.cache.Peek(name)
	if !ok {
		return 0
	}
	if !now.Before(e.expiresAt) {
		t.cache.Remove(name)
		return 0
	}
	return e.count
}

func (t *MemoryTracker) RecordFailure(_ context.Context, name string) error {
	mu := t.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	now := t.now()
	count := t.live(name, now) + 1
	t.cache.Add(name, entry{count: count, expiresAt: now.Add(t.ttl)})
	return nil
}

func (t *MemoryTracker) Evict(_ context.Context, name string) error {
	mu := t.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	t.cache.Remove(name)
	return nil
}

func (t *MemoryTracker) Exceeded(_ context.Context, name string) (bool, error) {
	mu := t.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	return t.live(name, t.now()) >= t.max, nil
}

func (t *MemoryTracker) Count(_ context.Context, name string) (int, error) {
	mu := t.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	return t.live(name, t.now()), nil
}
