package store

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a small TTL-bound LRU map.
type LRU[V any] struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	now   func() time.Time
	ll    *list.List               // most-recent at front
	items map[string]*list.Element // key -> element
}

type entry[V any] struct {
	key string
	val V
	exp time.Time
}

func NewLRU[V any](maxKeys int, ttl time.Duration) *LRU[V] {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LRU[V]{cap: maxKeys, ttl: ttl, now: time.Now, ll: list.New(), items: make(map[string]*list.Element)}
}

// Get returns the live value for key and touches it.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	en := el.Value.(entry[V])
	if !c.now().Before(en.exp) {
		c.ll.Remove(el)
		delete(c.items, key)
		return zero, false
	}
	c.ll.MoveToFront(el)
	return en.val, true
}

// Put stores val under key with a fresh TTL, evicting the least recent
// entries over capacity and any expired tail.
func (c *LRU[V]) Put(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if el, ok := c.items[key]; ok {
		el.Value = entry[V]{key: key, val: val, exp: now.Add(c.ttl)}
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(entry[V]{key: key, val: val, exp: now.Add(c.ttl)})
	for c.ll.Len() > c.cap {
		c.removeOldest()
	}
	for {
		t := c.ll.Back()
		if t == nil || now.Before(t.Value.(entry[V]).exp) {
			break
		}
		c.removeOldest()
	}
}

func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU[V]) removeOldest() {
	t := c.ll.Back()
	if t == nil {
		return
	}
	c.ll.Remove(t)
	delete(c.items, t.Value.(entry[V]).key)
}
