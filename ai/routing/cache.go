package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/cache"
)

// ClassificationCache remembers classifications of context-free utterances.
// Utterances that arrive with history are never cached because their meaning depends on it.
type ClassificationCache struct {
	lru *cache.LRU[string, Classification]
}

// CacheConfig configures ClassificationCache.
type CacheConfig struct {
	Capacity int           // default 500
	TTL      time.Duration // default 5m
	Now      func() time.Time
}

// NewClassificationCache creates a classification cache.
func NewClassificationCache(cfg CacheConfig) *ClassificationCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 500
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	var opts []cache.Option
	if cfg.Now != nil {
		opts = append(opts, cache.WithClock(cfg.Now))
	}
	return &ClassificationCache{lru: cache.New[string, Classification](cfg.Capacity, cfg.TTL, opts...)}
}

// Get returns the cached classification of utterance.
func (c *ClassificationCache) Get(utterance string) (Classification, bool) {
	if c == nil {
		return Classification{}, false
	}
	res, ok := c.lru.Get(hashKey(utterance))
	if ok {
		slog.Debug("classification cache hit", "utterance", truncate(utterance, 50), "intent", res.Intent)
	}
	return res, ok
}

// Set stores a classification.
func (c *ClassificationCache) Set(utterance string, res Classification) {
	if c == nil {
		return
	}
	c.lru.Set(hashKey(utterance), res)
}

// Len returns the number of cached entries.
func (c *ClassificationCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// hashKey normalizes case and spacing, then hashes.
func hashKey(utterance string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(utterance)), " ")
	hash := sha256.Sum256([]byte(norm))
	return "intent:" + hex.EncodeToString(hash[:8])
}
