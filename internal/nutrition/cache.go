package nutrition

import (
	"strings"
	"sync"

	"github.com/noot-app/recipebox/internal/types"
	"golang.org/x/text/cases"
)

// Key canonicalizes an ingredient name for cache identity: surrounding space is
// trimmed and the name is Unicode case folded, so "Egg " and "egg" share an entry
func Key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Cache memoizes resolved nutrition per ingredient name for the session.
// Entries are never evicted; Clear drops everything at once.
type Cache struct {
	mu      sync.RWMutex
	records map[string]types.NutritionRecord
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{records: make(map[string]types.NutritionRecord)}
}

// Lookup returns the cached record for name, if any
func (c *Cache) Lookup(name string) (types.NutritionRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[Key(name)]
	return rec, ok
}

// Store records the nutrition for name, overwriting any previous entry
func (c *Cache) Store(name string, record types.NutritionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[Key(name)] = record
}

// Len returns the number of cached names
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]types.NutritionRecord)
}
