package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	ErrNotInt    = errors.New("cache: value is not an integer")
)

// Service is the key/value store behind pending quiz questions and the
// leaderboard counters.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	// Take reads and deletes key in one step. Of two concurrent callers only
	// one gets the value; the other sees ErrCacheMiss.
	Take(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Increment(ctx context.Context, key string) (int64, error)
	// IncrementAll increments every key atomically and returns the new
	// values in argument order.
	IncrementAll(ctx context.Context, keys ...string) ([]int64, error)
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// MGetTyped reads several keys and decodes each value into T. Missing keys
// and values that do not decode are left out.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	if len(keys) == 0 {
		return make(map[string]T), nil
	}

	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(raw))
	for key, v := range raw {
		var obj T
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			continue
		}
		out[key] = obj
	}
	return out, nil
}

// encode turns a value into the stored representation shared by every backend:
// strings are kept verbatim, everything else is JSON.
func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}
