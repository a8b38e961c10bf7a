package cache

import (
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// BuildPattern creates a Redis pattern for key matching.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}

// TrimKey strips prefix and the following separator from key.
func TrimKey(prefix, key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), ":")
}
