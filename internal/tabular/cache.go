// File path: internal/tabular/cache.go
package tabular

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/nexa-ai/nexa/internal/common/telemetry"
	"github.com/nexa-ai/nexa/internal/kb"
)

// DefaultCacheSize bounds how many reconstructed tables are retained.
const DefaultCacheSize = 64

type cacheEntry struct {
	key   string
	table *Table
}

// Cache retains reconstructed tables keyed by tenant, file, and a content
// hash over the raw source entries. A change in the underlying entries
// changes the hash, so stale reconstructions are never served; the hash also
// keeps tenants from ever observing each other's tables.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	ll       *list.List
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		capacity: size,
		items:    make(map[string]*list.Element, size),
		ll:       list.New(),
	}
}

// Reconstruct returns the cached table for a group, rebuilding and caching it
// on a miss. The group's raw content is hashed before any parsing happens, so
// a hit skips reconstruction entirely.
func (c *Cache) Reconstruct(group kb.TableGroup) (*Table, error) {
	key := groupKey(group)
	if t, ok := c.get(key); ok {
		telemetry.RecordTableCache(true)
		return t, nil
	}
	telemetry.RecordTableCache(false)
	t, err := Reconstruct(group)
	if err != nil {
		return nil, err
	}
	c.set(key, t)
	return t, nil
}

func (c *Cache) get(key string) (*Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(cacheEntry).table, true
	}
	return nil, false
}

func (c *Cache) set(key string, t *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value = cacheEntry{key: key, table: t}
		c.ll.MoveToFront(elem)
		return
	}
	elem := c.ll.PushFront(cacheEntry{key: key, table: t})
	c.items[key] = elem
	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail != nil {
			c.ll.Remove(tail)
			delete(c.items, tail.Value.(cacheEntry).key)
		}
	}
}

// Purge drops every cached table.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.ll = list.New()
}

// Len reports the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// groupKey derives the cache key for a table group: tenant, file, and an
// FNV-64 digest over the raw entry content in entry order.
func groupKey(group kb.TableGroup) string {
	h := fnv.New64a()
	for _, entry := range group.Entries {
		h.Write([]byte(entry.ID))
		h.Write([]byte{0})
		h.Write(entry.DataJSON)
		h.Write([]byte{0})
		h.Write([]byte(entry.Text))
		h.Write([]byte{0})
		for _, col := range entry.Header {
			h.Write([]byte(col))
			h.Write([]byte{1})
		}
		if len(entry.Row) > 0 {
			keys := make([]string, 0, len(entry.Row))
			for k := range entry.Row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				h.Write([]byte(k))
				h.Write([]byte{2})
				h.Write([]byte(renderValue(entry.Row[k])))
				h.Write([]byte{2})
			}
		}
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s|%s|%x", group.OrgID, group.FileKey, h.Sum64())
}
