package matrix

import (
	"sync"

	"vrpengine/internal/model"
)

type pairKey struct {
	a, b model.Coordinate
}

// Cache memoizes approximated distances between coordinate pairs. It is shared by
// all solves of one engine instance: reads take the shared lock, the first
// computation of a pair takes the exclusive one.
type Cache struct {
	mu  sync.RWMutex
	m   map[pairKey]float64
	max int
}

// NewCache creates a cache bounded to max entries; max <= 0 means unbounded.
func NewCache(max int) *Cache {
	return &Cache{m: map[pairKey]float64{}, max: max}
}

// Distance returns the haversine distance for the pair, computing it on a miss.
func (c *Cache) Distance(a, b model.Coordinate) float64 {
	k := pairKey{a, b}
	c.mu.RLock()
	d, ok := c.m[k]
	c.mu.RUnlock()
	if ok {
		return d
	}
	d = Haversine(a, b)
	c.mu.Lock()
	if c.max <= 0 || len(c.m) < c.max {
		c.m[k] = d
	}
	c.mu.Unlock()
	return d
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
