package utils

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultConfigCacheSize bounds the number of distinct seeds kept.
const DefaultConfigCacheSize = 8

// ConfigCache memoizes BuildConfig by seed. Cached configurations are
// shared between callers and must be treated as read-only.
type ConfigCache struct {
	entries *lru.Cache[string, *VerificationConfig]
}

// NewConfigCache creates a cache holding up to size configurations.
func NewConfigCache(size int) (*ConfigCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: cache size must be positive, got %d", ErrInvalidConfig, size)
	}
	entries, err := lru.New[string, *VerificationConfig](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create config cache: %w", err)
	}
	return &ConfigCache{entries: entries}, nil
}

// Get returns the configuration for seed, building it on a miss.
func (c *ConfigCache) Get(seed string) (*VerificationConfig, error) {
	if config, ok := c.entries.Get(seed); ok {
		return config, nil
	}

	config, err := BuildConfig(seed)
	if err != nil {
		return nil, err
	}
	c.entries.Add(seed, config)
	return config, nil
}

// Len returns the number of cached seeds.
func (c *ConfigCache) Len() int {
	return c.entries.Len()
}
