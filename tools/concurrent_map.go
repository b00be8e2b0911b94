package tools

import (
	"sync"
)

type ConcurrentMap[K comparable, V any] struct {
	m map[K]V
	sync.RWMutex
}

func NewConcurrentMap[K comparable, V any]() *ConcurrentMap[K, V] {
	return &ConcurrentMap[K, V]{
		m:       make(map[K]V),
		RWMutex: sync.RWMutex{},
	}
}

func (c *ConcurrentMap[K, V]) Get(k K) (V, bool) {
	c.RLock()
	defer c.RUnlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *ConcurrentMap[K, V]) GetOrDefault(k K, def V) V {
	c.RLock()
	defer c.RUnlock()
	v, ok := c.m[k]
	if !ok {
		return def
	}
	return v
}

func (c *ConcurrentMap[K, V]) Set(k K, v V) {
	c.Lock()
	defer c.Unlock()
	c.m[k] = v
}

func (c *ConcurrentMap[K, V]) Delete(k K) {
	c.Lock()
	defer c.Unlock()
	delete(c.m, k)
}

// GetOrSet returns the value stored under k, inserting the value built by
// mk first when the key is absent. The build happens under the lock, so two
// racing callers observe the same instance.
func (c *ConcurrentMap[K, V]) GetOrSet(k K, mk func() V) V {
	c.Lock()
	defer c.Unlock()
	v, ok := c.m[k]
	if !ok {
		v = mk()
		c.m[k] = v
	}
	return v
}

func (c *ConcurrentMap[K, V]) DoAndSet(k K, do func(V, bool) V) {
	c.Lock()
	defer c.Unlock()
	v, ok := c.m[k]
	newV := do(v, ok)
	c.m[k] = newV
}

// Range calls fn on a snapshot of the entries. Mutations during the
// iteration do not affect the snapshot.
func (c *ConcurrentMap[K, V]) Range(fn func(K, V)) {
	c.RLock()
	snapshot := make(map[K]V, len(c.m))
	for k, v := range c.m {
		snapshot[k] = v
	}
	c.RUnlock()
	for k, v := range snapshot {
		fn(k, v)
	}
}
