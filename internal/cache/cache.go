// internal/cache/cache.go
package cache

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LookupFunc performs one external resolution for a missing key. A nil result
// is a valid outcome (resolution miss) and is cached like any other value.
type LookupFunc func(ctx context.Context) (*string, error)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

type entry struct {
	value     *string // nil is a cached negative result
	updatedAt time.Time
}

type lookupResult struct {
	value *string
	err   error
}

type lookupJob struct {
	ctx    context.Context
	key    string
	lookup LookupFunc
	result chan lookupResult
}

// ResolverCache is a bounded TTL key-value store with a single FIFO dispatch
// queue that releases at most one external lookup per rate-limit interval.
// One mutex guards the map, the write order and the counters together so
// eviction can never interleave with a lookup.
type ResolverCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // write order: front=oldest, back=newest

	maxSize int
	ttl     time.Duration
	now     func() time.Time

	limiter *rate.Limiter
	queue   chan *lookupJob
	done    chan struct{}

	hits   int64
	misses int64
}

// Option configures a ResolverCache.
type Option func(*ResolverCache)

// WithClock injects a clock so tests can control TTL expiry and eviction
// deterministically without real timers.
func WithClock(now func() time.Time) Option {
	return func(c *ResolverCache) {
		c.now = now
	}
}

// New creates a ResolverCache. requestsPerMinute paces the dispatch queue at
// one lookup per ceil(60000/rpm) milliseconds.
func New(maxSize int, ttl time.Duration, requestsPerMinute int, opts ...Option) *ResolverCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 45
	}

	intervalMs := int(math.Ceil(60000.0 / float64(requestsPerMinute)))

	c := &ResolverCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Every(time.Duration(intervalMs)*time.Millisecond), 1),
		queue:   make(chan *lookupJob, 1024),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.dispatch()
	return c
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9 ]+`)
var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeKey lowercases, strips non-alphanumerics except spaces, and
// collapses whitespace. Two distinct inputs can reduce to the same key; that
// collision is a known property of the keying scheme.
func NormalizeKey(key string) string {
	k := strings.ToLower(key)
	k = nonKeyChars.ReplaceAllString(k, "")
	k = multiSpace.ReplaceAllString(k, " ")
	return strings.TrimSpace(k)
}

// Get reports whether the normalized key is cached and fresh. Expired entries
// are deleted and reported as a miss. The returned value may be nil for a
// cached negative result while found is still true.
func (c *ResolverCache) Get(key string) (value *string, found bool) {
	k := NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.now().Sub(e.updatedAt) >= c.ttl {
		delete(c.entries, k)
		c.removeFromOrder(k)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.value, true
}

// Set stores a value (or nil negative result) under the normalized key,
// evicting the oldest ceil(20%) of entries first when the cache is full.
func (c *ResolverCache) Set(key string, value *string) {
	k := NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(k, value)
}

func (c *ResolverCache) setLocked(k string, value *string) {
	if _, ok := c.entries[k]; ok {
		c.entries[k] = &entry{value: value, updatedAt: c.now()}
		c.removeFromOrder(k)
		c.order = append(c.order, k)
		return
	}

	if len(c.entries) >= c.maxSize {
		evict := int(math.Ceil(float64(len(c.entries)) * 0.2))
		for i := 0; i < evict && len(c.order) > 0; i++ {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}

	c.entries[k] = &entry{value: value, updatedAt: c.now()}
	c.order = append(c.order, k)
}

// Do returns the cached value for key, or queues lookup behind the rate
// limiter on a miss. Both successful and failed lookups are cached; a failed
// lookup is stored as an explicit nil so the same key is not retried inside
// the TTL window. The returned error is only ever a context error.
func (c *ResolverCache) Do(ctx context.Context, key string, lookup LookupFunc) (*string, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	job := &lookupJob{
		ctx:    ctx,
		key:    NormalizeKey(key),
		lookup: lookup,
		result: make(chan lookupResult, 1),
	}

	select {
	case c.queue <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatch is the single consumer of the FIFO queue. It releases exactly one
// lookup per limiter interval, in arrival order, with no priority.
func (c *ResolverCache) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case job := <-c.queue:
			if err := c.limiter.Wait(job.ctx); err != nil {
				job.result <- lookupResult{err: err}
				continue
			}

			// A queued duplicate may have been resolved while waiting.
			c.mu.Lock()
			if e, ok := c.entries[job.key]; ok && c.now().Sub(e.updatedAt) < c.ttl {
				c.hits++
				c.mu.Unlock()
				job.result <- lookupResult{value: e.value}
				continue
			}
			c.mu.Unlock()

			value, err := job.lookup(job.ctx)
			if err != nil {
				value = nil // cache the failure as an explicit negative
			}

			c.mu.Lock()
			c.setLocked(job.key, value)
			c.mu.Unlock()

			job.result <- lookupResult{value: value}
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *ResolverCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  hitRate,
		Size:     len(c.entries),
		Capacity: c.maxSize,
	}
}

// Close stops the dispatch loop. Queued jobs are abandoned.
func (c *ResolverCache) Close() {
	close(c.done)
}

func (c *ResolverCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
