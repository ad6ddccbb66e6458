package tokens

import "sync"

// Scope lists the operations a token may call. An empty scope allows everything.
type Scope map[string]bool

// Entry is one API token.
type Entry struct {
	RateLimit int
	Scope     Scope
}

// Cache is the in-memory token table consulted on every authenticated request.
type Cache struct {
	mu sync.RWMutex
	m  map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole table. The map is copied.
func (c *Cache) Replace(m map[string]Entry) {
	next := make(map[string]Entry, len(m))
	for k, v := range m {
		next[k] = v
	}
	c.mu.Lock()
	c.m = next
	c.mu.Unlock()
}

// Ready returns true if the table has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m != nil
}

// Valid checks whether the token is known.
func (c *Cache) Valid(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.m[token]
	return ok
}

// RateLimit returns the configured limit for token. Unknown tokens return 0 which
// disables token rate limiting for them.
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[token].RateLimit
}

// Allows reports whether token may call the named operation.
func (c *Cache) Allows(token, op string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[token]
	if !ok {
		return false
	}
	if len(e.Scope) == 0 {
		return true
	}
	return e.Scope[op]
}
