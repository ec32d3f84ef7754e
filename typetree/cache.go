package typetree

import (
	"sync"

	"github.com/unitytools/unityasset"
)

type cacheKey struct {
	version string
	class   unityasset.ClassID
}

// Cache holds type trees by engine version and class, so that files loaded
// without trees can decode classes seen in other files of the same version.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	trees map[cacheKey]*Node
}

// DefaultCache is the process-wide cache.
var DefaultCache = NewCache()

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{trees: map[cacheKey]*Node{}}
}

// Get returns the tree for class at the given engine version.
func (c *Cache) Get(version string, class unityasset.ClassID) (*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.trees[cacheKey{version, class}]
	return n, ok
}

// Put stores the tree for class at the given engine version, unless one is
// already present. Script classes are never cached, since their layout
// depends on the script rather than the engine version. Put reports whether
// the tree was stored.
func (c *Cache) Put(version string, class unityasset.ClassID, n *Node) bool {
	if n == nil || class.IsScript() || version == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{version, class}
	if _, ok := c.trees[key]; ok {
		return false
	}
	c.trees[key] = n
	return true
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trees)
}

// Reset removes every cached tree.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.trees = map[cacheKey]*Node{}
	c.mu.Unlock()
}
