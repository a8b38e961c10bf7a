package cache

import (
	"context"
	"errors"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memoryItem stores the encoded value. A zero expireAt never expires.
type memoryItem struct {
	value    []byte
	expireAt time.Time
	lastUsed time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process. Values are encoded the same way
// RedisCache encodes them, so callers see identical Get/MGet/Increment behaviour.
type MemoryCache struct {
	mu            sync.Mutex
	data          map[string]*memoryItem
	maxSize       int
	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
	now           func() time.Time
}

var _ Service = (*MemoryCache)(nil)

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         10000,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:          make(map[string]*memoryItem),
		maxSize:       cfg.MaxSize,
		cleanupTicker: time.NewTicker(cfg.CleanupInterval),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(key, data, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item := mc.lookup(key)
	var data []byte
	if item != nil {
		data = append(data, item.value...)
	}
	mc.mu.Unlock()

	if item == nil {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (mc *MemoryCache) Take(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item := mc.lookup(key)
	if item != nil {
		delete(mc.data, key)
	}
	mc.mu.Unlock()

	if item == nil {
		return ErrCacheMiss
	}
	return decode(item.value, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	keys, err := mc.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	return mc.Delete(ctx, keys...)
}

// Keys returns live keys matching a glob pattern, sorted.
func (mc *MemoryCache) Keys(_ context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	keys := make([]string, 0)
	for key, item := range mc.data {
		if item.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Increment behaves like Redis INCR: a missing key starts at 0 and the
// existing expiry is kept.
func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.incr(key)
}

// IncrementAll checks every key before touching any, so a non-integer value
// leaves all counters unchanged.
func (mc *MemoryCache) IncrementAll(_ context.Context, keys ...string) ([]int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if item := mc.lookup(key); item != nil {
			if _, err := strconv.ParseInt(string(item.value), 10, 64); err != nil {
				return nil, ErrNotInt
			}
		}
	}
	out := make([]int64, len(keys))
	for i, key := range keys {
		n, err := mc.incr(key)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// incr increments one counter. Caller holds mu.
func (mc *MemoryCache) incr(key string) (int64, error) {
	item := mc.lookup(key)
	if item == nil {
		mc.put(key, []byte("1"), 0)
		return 1, nil
	}
	n, err := strconv.ParseInt(string(item.value), 10, 64)
	if err != nil {
		return 0, ErrNotInt
	}
	n++
	item.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	results := make(map[string]string, len(keys))
	for _, key := range keys {
		if item := mc.lookup(key); item != nil {
			results[key] = string(item.value)
		}
	}
	return results, nil
}

func (mc *MemoryCache) Ping(context.Context) error {
	select {
	case <-mc.done:
		return errors.New("cache: closed")
	default:
		return nil
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.cleanupTicker.Stop()
		close(mc.done)
	})
	return nil
}

// lookup returns a live item or nil, dropping it if expired. Caller holds mu.
func (mc *MemoryCache) lookup(key string) *memoryItem {
	item, ok := mc.data[key]
	if !ok {
		return nil
	}
	now := mc.now()
	if item.expired(now) {
		delete(mc.data, key)
		return nil
	}
	item.lastUsed = now
	return item
}

// put stores data under key. Caller holds mu.
func (mc *MemoryCache) put(key string, data []byte, expiration time.Duration) {
	if _, exists := mc.data[key]; !exists && mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}

	now := mc.now()
	item := &memoryItem{value: data, lastUsed: now}
	if expiration > 0 {
		item.expireAt = now.Add(expiration)
	}
	mc.data[key] = item
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time

	for key, item := range mc.data {
		if oldestKey == "" || item.lastUsed.Before(oldest) {
			oldest = item.lastUsed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.cleanupTicker.C:
			mc.mu.Lock()
			now := mc.now()
			for key, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
