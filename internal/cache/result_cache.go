package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// ResultCache keeps completed session results for a bounded time so they
// survive the session being dropped from memory.
type ResultCache interface {
	Set(ctx context.Context, sessionID string, result *models.SessionResult) error
	Get(ctx context.Context, sessionID string) (*models.SessionResult, error)
	Delete(ctx context.Context, sessionID string) error
}

const keyPrefix = "exam:result:"

func resultKey(sessionID string) string {
	return keyPrefix + sessionID
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResultCache(client *redis.Client, ttl time.Duration) ResultCache {
	return &redisResultCache{client: client, ttl: ttl}
}

func (c *redisResultCache) Set(ctx context.Context, sessionID string, result *models.SessionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return c.client.Set(ctx, resultKey(sessionID), data, c.ttl).Err()
}

func (c *redisResultCache) Get(ctx context.Context, sessionID string) (*models.SessionResult, error) {
	data, err := c.client.Get(ctx, resultKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var result models.SessionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

func (c *redisResultCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, resultKey(sessionID)).Err()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type memoryResultCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryResultCache is used when no Redis URL is configured. Results are
// stored serialized so callers never share a result value.
func NewMemoryResultCache(ttl time.Duration) ResultCache {
	return &memoryResultCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *memoryResultCache) Set(ctx context.Context, sessionID string, result *models.SessionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	c.entries[resultKey(sessionID)] = memoryEntry{data: data, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryResultCache) Get(ctx context.Context, sessionID string) (*models.SessionResult, error) {
	c.mu.Lock()
	entry, ok := c.entries[resultKey(sessionID)]
	if ok && c.ttl > 0 && !c.now().Before(entry.expiresAt) {
		delete(c.entries, resultKey(sessionID))
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	var result models.SessionResult
	if err := json.Unmarshal(entry.data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

func (c *memoryResultCache) Delete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.entries, resultKey(sessionID))
	c.mu.Unlock()
	return nil
}

func (c *memoryResultCache) evictExpiredLocked() {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
