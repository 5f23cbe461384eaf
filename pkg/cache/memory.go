package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time
}

// MemoryCache implements Service in process with LRU eviction and per-key
// expiry. It backs the latest-assessment cache when Redis is disabled and
// serves as the L1 of LayeredCache.
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	backend    string

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		DefaultTTL:      24 * time.Hour,
		Name:            "memory",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	initMetricsOnce()

	mc := &MemoryCache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
		backend:    cfg.Name,
		ticker:     time.NewTicker(cfg.CleanupInterval),
		done:       make(chan struct{}),
	}
	go mc.cleanupLoop()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	expireAt := mc.now().Add(expiration)
	if el, ok := mc.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expireAt = data, expireAt
		mc.order.MoveToFront(el)
		return nil
	}

	if len(mc.items) >= mc.maxSize {
		mc.removeElement(mc.order.Back())
		observeEviction(mc.backend, "capacity", 1)
	}
	mc.items[key] = mc.order.PushFront(&memoryEntry{key: key, value: data, expireAt: expireAt})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.items[key]
	if ok && mc.expired(el) {
		mc.removeElement(el)
		ok = false
	}
	if !ok {
		mc.mu.Unlock()
		observeLookup(mc.backend, ErrCacheMiss)
		return ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	data := el.Value.(*memoryEntry).value
	mc.mu.Unlock()

	observeLookup(mc.backend, nil)
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.items[key]; ok && !mc.expired(el) {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of stored (possibly expired) items.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

func (mc *MemoryCache) expired(el *list.Element) bool {
	return !mc.now().Before(el.Value.(*memoryEntry).expireAt)
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryEntry).key)
}

// purgeExpired drops every expired entry and returns how many were removed.
func (mc *MemoryCache) purgeExpired() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	n := 0
	for el := mc.order.Back(); el != nil; {
		prev := el.Prev()
		if mc.expired(el) {
			mc.removeElement(el)
			n++
		}
		el = prev
	}
	observeEviction(mc.backend, "expired", n)
	return n
}

func (mc *MemoryCache) cleanupLoop() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.ticker.C:
			mc.purgeExpired()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}
