package remote

import (
	"hash/fnv"
	"sync"
	"time"

	"plansync/internal/clock"
	"plansync/internal/domain"
)

const shardCount = 16

// shard holds a slice of the key space. values and insertedAt are only
// ever mutated together while mu is held; a key present in one map and
// absent from the other is treated as missing.
type shard struct {
	mu         sync.Mutex
	values     map[string][]domain.ItemRecord
	insertedAt map[string]time.Time
}

func newShard() *shard {
	return &shard{
		values:     make(map[string][]domain.ItemRecord),
		insertedAt: make(map[string]time.Time),
	}
}

// lookup returns a valid entry or evicts an invalid one. Caller holds mu.
func (s *shard) lookup(key string, now time.Time, ttl time.Duration) ([]domain.ItemRecord, time.Time, bool) {
	value, hasValue := s.values[key]
	ts, hasTime := s.insertedAt[key]

	if !hasValue || !hasTime || ts.IsZero() || now.Sub(ts) > ttl {
		s.remove(key)
		return nil, time.Time{}, false
	}
	return value, ts, true
}

func (s *shard) store(key string, value []domain.ItemRecord, at time.Time) {
	s.values[key] = value
	s.insertedAt[key] = at
}

func (s *shard) remove(key string) {
	delete(s.values, key)
	delete(s.insertedAt, key)
}

// Cache is a TTL cache over remote item queries, keyed by
// domain.Query.Key. It is sharded; each key is guarded by its shard's
// lock, and Reflect locks every shard in index order.
type Cache struct {
	ttl    time.Duration
	clock  clock.Clock
	shards [shardCount]*shard

	closeMu sync.RWMutex
	closed  bool
}

// NewCache creates an empty cache. Call Close when done with it.
func NewCache(ttl time.Duration, clk clock.Clock) *Cache {
	c := &Cache{ttl: ttl, clock: clk}
	for i := range c.shards {
		c.shards[i] = newShard()
	}
	return c
}

// TTL returns the entry lifetime
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the cached result for q if it exists and is younger than
// the TTL. Expired or inconsistent entries are evicted.
func (c *Cache) Get(q domain.Query) ([]domain.ItemRecord, bool) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return nil, false
	}

	key := q.Key()
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	value, _, ok := s.lookup(key, c.clock.Now(), c.ttl)
	if !ok {
		return nil, false
	}
	return cloneRecords(value), true
}

// Set stores value for q, stamped with the current time
func (c *Cache) Set(q domain.Query, value []domain.ItemRecord) {
	c.Store(q, value, c.clock.Now())
}

// Store stores value for q as fetched at fetchedAt. An existing entry
// fetched later is kept, so a slow fill never replaces newer data.
func (c *Cache) Store(q domain.Query, value []domain.ItemRecord, fetchedAt time.Time) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed || fetchedAt.IsZero() {
		return
	}

	key := q.Key()
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existing, ok := s.lookup(key, c.clock.Now(), c.ttl); ok && existing.After(fetchedAt) {
		return
	}
	s.store(key, cloneRecords(value), fetchedAt)
}

// Evict removes the entry for q
func (c *Cache) Evict(q domain.Query) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	key := q.Key()
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
}

// Reflect rewrites every live entry in one critical section. fn receives
// the entry's query and a copy of its records and returns the new
// records and whether they changed. Entry timestamps are preserved.
func (c *Cache) Reflect(fn func(q domain.Query, records []domain.ItemRecord) ([]domain.ItemRecord, bool)) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return
	}

	for _, s := range c.shards {
		s.mu.Lock()
	}
	defer func() {
		for i := len(c.shards) - 1; i >= 0; i-- {
			c.shards[i].mu.Unlock()
		}
	}()

	now := c.clock.Now()
	for _, s := range c.shards {
		keys := make([]string, 0, len(s.values))
		for key := range s.values {
			keys = append(keys, key)
		}
		for _, key := range keys {
			value, ts, ok := s.lookup(key, now, c.ttl)
			if !ok {
				continue
			}
			q, err := domain.ParseQueryKey(key)
			if err != nil {
				s.remove(key)
				continue
			}
			if updated, changed := fn(q, cloneRecords(value)); changed {
				s.store(key, updated, ts)
			}
		}
	}
}

// Len returns the number of stored entries, valid or not
func (c *Cache) Len() int {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.values)
		s.mu.Unlock()
	}
	return n
}

// Close drops every entry. A closed cache misses on every Get and
// ignores every Set.
func (c *Cache) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.closed = true
	for i, s := range c.shards {
		s.mu.Lock()
		c.shards[i] = newShard()
		s.mu.Unlock()
	}
}

func cloneRecords(in []domain.ItemRecord) []domain.ItemRecord {
	if in == nil {
		return nil
	}
	out := make([]domain.ItemRecord, len(in))
	for i, r := range in {
		if r.Effort != nil {
			r.Effort = domain.Effort(*r.Effort)
		}
		out[i] = r
	}
	return out
}
