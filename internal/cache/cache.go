// Package cache provides a TTL-bounded query result cache with
// request coalescing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Status describes how a lookup was served.
type Status string

const (
	// StatusHit means a fresh cached result was served.
	StatusHit Status = "HIT"

	// StatusMiss means no usable entry existed and the result was computed.
	StatusMiss Status = "MISS"

	// StatusStale means an entry existed but had expired; the result
	// was recomputed and the entry replaced.
	StatusStale Status = "STALE"
)

// Key identifies a cacheable query. Two requests with the same
// normalized query, filters, and result count share an entry.
type Key struct {
	Query   string
	Filters map[string]string
	TopK    int
}

// source renders the key as a stable plaintext string. Stored
// alongside entries so Clear can match on substrings.
func (k Key) source() string {
	var sb strings.Builder
	sb.WriteString(normalizeQuery(k.Query))

	if len(k.Filters) > 0 {
		names := make([]string, 0, len(k.Filters))
		for name := range k.Filters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "|%s=%s", name, k.Filters[name])
		}
	}

	fmt.Fprintf(&sb, "|topk=%d", k.TopK)
	return sb.String()
}

// hash returns the SHA-256 hex digest of the key source.
func (k Key) hash() string {
	sum := sha256.Sum256([]byte(k.source()))
	return hex.EncodeToString(sum[:])
}

// normalizeQuery lowercases and collapses whitespace so trivially
// different spellings share an entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

type entry[V any] struct {
	value     V
	keySource string
	writtenAt time.Time
}

// Cache is a TTL-bounded LRU of computed query results. Concurrent
// lookups for the same key coalesce into a single computation.
type Cache[V any] struct {
	entries *lru.Cache[string, *entry[V]]
	ttl     time.Duration
	group   singleflight.Group
	clock   func() time.Time
}

// New creates a cache holding up to maxEntries results for ttl each.
func New[V any](maxEntries int, ttl time.Duration) (*Cache[V], error) {
	entries, err := lru.New[string, *entry[V]](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create cache storage: %w", err)
	}
	return &Cache[V]{
		entries: entries,
		ttl:     ttl,
		clock:   time.Now,
	}, nil
}

// GetOrCompute returns the cached value for key, or runs compute and
// stores the result. forceRefresh skips the lookup but still writes
// the fresh result back. Compute errors are not cached.
func (c *Cache[V]) GetOrCompute(
	ctx context.Context,
	key Key,
	forceRefresh bool,
	compute func(ctx context.Context) (V, error),
) (V, Status, error) {
	hash := key.hash()
	source := key.source()
	status := StatusMiss

	if !forceRefresh {
		if e, ok := c.entries.Get(hash); ok {
			switch {
			case e.keySource != source:
				// Entry does not round-trip to its key. Treat as
				// corrupt: evict and recompute.
				c.entries.Remove(hash)
			case c.clock().Sub(e.writtenAt) < c.ttl:
				return e.value, StatusHit, nil
			default:
				c.entries.Remove(hash)
				status = StatusStale
			}
		}
	}

	v, err, _ := c.group.Do(hash, func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Add(hash, &entry[V]{
			value:     value,
			keySource: source,
			writtenAt: c.clock(),
		})
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, status, err
	}

	return v.(V), status, nil
}

// Clear removes entries whose key source contains pattern. An empty
// pattern removes everything. Returns the number of entries removed.
func (c *Cache[V]) Clear(pattern string) int {
	if pattern == "" {
		n := c.entries.Len()
		c.entries.Purge()
		return n
	}

	removed := 0
	for _, hash := range c.entries.Keys() {
		e, ok := c.entries.Peek(hash)
		if !ok {
			continue
		}
		if strings.Contains(e.keySource, pattern) {
			c.entries.Remove(hash)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, expired ones included.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}
