// Package respcache is the second tier of the response pipeline: a TTL map
// of recent LLM replies keyed by (state, lead, normalized utterance). A hit
// skips the LLM entirely, so two similar turns in the same state cost one
// completion.
package respcache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"

	"github.com/algonox/aados/internal/salesflow"
)

const (
	// DefaultTTL is how long a cached reply stays servable.
	DefaultTTL = time.Hour

	// DefaultMaxEntries bounds the cache before oldest-insertion eviction
	// kicks in.
	DefaultMaxEntries = 1000
)

// Key identifies one cached reply. The utterance contributes only a 4-byte
// FNV-1a hash: collisions are possible and acceptable, the worst case is a
// plausible reply for a same-state same-lead turn.
type Key struct {
	State  salesflow.SalesState
	LeadID string
	Hash   uint32
}

// NewKey builds a Key, normalizing the utterance first so trivial
// whitespace and case differences share an entry.
func NewKey(state salesflow.SalesState, leadID, utterance string) Key {
	h := fnv.New32a()
	h.Write([]byte(salesflow.Normalize(utterance)))
	return Key{State: state, LeadID: leadID, Hash: h.Sum32()}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

type entry struct {
	key     Key
	reply   string
	addedAt time.Time
}

// Cache is a bounded TTL reply cache. Safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	clock      func() time.Time

	mu      sync.Mutex
	byKey   map[Key]*list.Element
	byAge   *list.List // front = oldest insertion
	hits    uint64
	misses  uint64
	evicted uint64
	expired uint64
}

// Option is a functional option for New.
type Option func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithMaxEntries overrides the capacity bound.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) { c.clock = clock }
}

// New returns an empty Cache with the default TTL and capacity.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		clock:      time.Now,
		byKey:      make(map[Key]*list.Element),
		byAge:      list.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached reply for (state, leadID, utterance) if present
// and not expired. Expired entries are removed on sight.
func (c *Cache) Get(state salesflow.SalesState, leadID, utterance string) (string, bool) {
	k := NewKey(state, leadID, utterance)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[k]
	if !ok {
		c.misses++
		return "", false
	}
	e := el.Value.(*entry)
	if c.clock().Sub(e.addedAt) >= c.ttl {
		c.removeLocked(el)
		c.expired++
		c.misses++
		return "", false
	}
	c.hits++
	return e.reply, true
}

// Put stores a reply. Re-putting an existing key refreshes its value and
// its insertion age.
func (c *Cache) Put(state salesflow.SalesState, leadID, utterance, reply string) {
	k := NewKey(state, leadID, utterance)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[k]; ok {
		c.removeLocked(el)
	}
	e := &entry{key: k, reply: reply, addedAt: c.clock()}
	c.byKey[k] = c.byAge.PushBack(e)

	for len(c.byKey) > c.maxEntries {
		oldest := c.byAge.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evicted++
	}
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.byKey),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
		Expired:   c.expired,
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.byAge.Remove(el)
	delete(c.byKey, e.key)
}
