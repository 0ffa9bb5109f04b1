// Package querycache implements the Query Cache (spec §4.6, component
// C6): a bounded LRU keyed by (operation, workspace_hash, hash_of_params)
// with an authoritative byte-cost budget and sliding expiration,
// generalizing the teacher's internal/cache/metrics_cache.go key-hashing
// idiom onto a real container/list LRU instead of its sync.Map
// approximation, since the cost-budget and refusal-on-overflow semantics
// need an exact eviction order a lock-free map can't give.
package querycache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
)

// Key identifies one cached result. Two calls with the same operation,
// workspace and parameters must hash to the same key regardless of
// parameter ordering, so callers build it through MakeKey rather than
// constructing one by hand.
type Key string

// MakeKey hashes params (formatted with %v, so a map or struct works as
// long as its field order is stable) into a fixed-width key alongside the
// operation name and workspace hash.
func MakeKey(operation, workspaceHash string, params interface{}) Key {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", params)))
	return Key(fmt.Sprintf("%s:%s:%s", operation, workspaceHash, hex.EncodeToString(sum[:16])))
}

type entry struct {
	key           Key
	workspaceHash string
	value         interface{}
	costBytes     int64
	expiresAt     time.Time
}

// Cache is a byte-budgeted, sliding-expiration LRU. The zero value is not
// usable; build one with New.
type Cache struct {
	mu sync.Mutex

	maxBytes      int64
	usedBytes     int64
	slidingExpire time.Duration

	ll    *list.List // back = most recently used
	items map[Key]*list.Element

	// byWorkspace lets ClearWorkspace find every entry for a workspace
	// without scanning the whole list.
	byWorkspace map[string]map[Key]bool
}

// New builds a Cache with a byte budget and sliding expiration window.
// maxBytes <= 0 or slidingExpire <= 0 fall back to the spec defaults
// (unbounded budget reads oddly, so 0 is coerced to a conservative 64MB;
// the config layer is expected to supply real values from
// QueryCacheConfig.MaxSizeMB/SlidingExpireMins).
func New(maxBytes int64, slidingExpire time.Duration) *Cache {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024 * 1024
	}
	if slidingExpire <= 0 {
		slidingExpire = 15 * time.Minute
	}
	return &Cache{
		maxBytes:      maxBytes,
		slidingExpire: slidingExpire,
		ll:            list.New(),
		items:         make(map[Key]*list.Element),
		byWorkspace:   make(map[string]map[Key]bool),
	}
}

// Get returns the cached value for key, if present and unexpired. A hit
// both moves the entry to the front (LRU) and slides its expiration
// forward, matching the sliding-expiration policy in §4.6.
func (c *Cache) Get(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		return nil, false
	}

	e.expiresAt = time.Now().Add(c.slidingExpire)
	c.ll.MoveToFront(el)
	return e.value, true
}

// Set inserts or replaces a cached value. If costBytes alone exceeds the
// cache's total budget, the insert is refused outright (§4.6: "refuses
// inserts once total cost exceeds cap") rather than silently evicting
// everything else to make room for one oversized entry.
func (c *Cache) Set(operation, workspaceHash string, key Key, value interface{}, costBytes int64) error {
	if costBytes > c.maxBytes {
		return lcierrors.New(lcierrors.ResourceExhausted, "querycache_set", nil).
			WithWorkspace(workspaceHash).
			WithSuggestion("cached value cost exceeds the total cache budget")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	for c.usedBytes+costBytes > c.maxBytes && c.ll.Len() > 0 {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
	}

	e := &entry{
		key:           key,
		workspaceHash: workspaceHash,
		value:         value,
		costBytes:     costBytes,
		expiresAt:     time.Now().Add(c.slidingExpire),
	}
	el := c.ll.PushFront(e)
	c.items[key] = el
	c.usedBytes += costBytes

	if c.byWorkspace[workspaceHash] == nil {
		c.byWorkspace[workspaceHash] = make(map[Key]bool)
	}
	c.byWorkspace[workspaceHash][key] = true
	return nil
}

// removeElement evicts one element and runs the byte-accounting callback
// inline (§4.6: "reference-counted eviction with callback decrementing
// the running byte total"). Caller must hold c.mu.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.usedBytes -= e.costBytes

	if ws, ok := c.byWorkspace[e.workspaceHash]; ok {
		delete(ws, e.key)
		if len(ws) == 0 {
			delete(c.byWorkspace, e.workspaceHash)
		}
	}
}

// ClearWorkspace evicts every entry namespaced under workspaceHash,
// returning the count removed. Best-effort: an entry added after the
// workspace side-index lookup starts is not guaranteed to be caught
// (§4.6 describes this as a best-effort operation, not a transactional
// one).
func (c *Cache) ClearWorkspace(workspaceHash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.byWorkspace[workspaceHash]
	if !ok {
		return 0
	}
	victims := make([]Key, 0, len(keys))
	for k := range keys {
		victims = append(victims, k)
	}
	for _, k := range victims {
		if el, ok := c.items[k]; ok {
			c.removeElement(el)
		}
	}
	return len(victims)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// UsedBytes reports the current running byte total.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}
