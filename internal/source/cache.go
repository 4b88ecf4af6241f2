package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetadataCache stores resolved metadata by video ID.
type MetadataCache interface {
	Get(ctx context.Context, videoID string) (Metadata, bool, error)
	Set(ctx context.Context, videoID string, md Metadata) error
}

type RedisMetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMetadataCache(client *redis.Client, ttl time.Duration) *RedisMetadataCache {
	return &RedisMetadataCache{client: client, ttl: ttl}
}

func metadataKey(videoID string) string {
	return "jukebox:metadata:" + videoID
}

func (c *RedisMetadataCache) Get(ctx context.Context, videoID string) (Metadata, bool, error) {
	fields, err := c.client.HGetAll(ctx, metadataKey(videoID)).Result()
	if err != nil {
		return Metadata{}, false, fmt.Errorf("failed to read metadata for %s: %w", videoID, err)
	}
	if len(fields) == 0 {
		return Metadata{}, false, nil
	}
	return Metadata{Title: fields["title"], URL: fields["url"]}, true, nil
}

func (c *RedisMetadataCache) Set(ctx context.Context, videoID string, md Metadata) error {
	key := metadataKey(videoID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "title", md.Title, "url", md.URL)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", videoID, err)
	}
	return nil
}

var _ MetadataCache = (*RedisMetadataCache)(nil)

// DefaultMetadataTTL is how long the in-memory cache keeps an entry when no
// TTL is given.
const DefaultMetadataTTL = 24 * time.Hour

type memoryEntry struct {
	md      Metadata
	expires time.Time
}

// MemoryMetadataCache keeps metadata in process. Entries expire after the
// TTL and expired entries are swept at most once per TTL.
type MemoryMetadataCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]memoryEntry
	nextSweep time.Time
}

func NewMemoryMetadataCache(ttl time.Duration) *MemoryMetadataCache {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &MemoryMetadataCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryMetadataCache) Get(ctx context.Context, videoID string) (Metadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[videoID]
	if !ok {
		return Metadata{}, false, nil
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, videoID)
		return Metadata{}, false, nil
	}
	return entry.md, true, nil
}

func (c *MemoryMetadataCache) Set(ctx context.Context, videoID string, md Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !now.Before(c.nextSweep) {
		for id, entry := range c.entries {
			if !now.Before(entry.expires) {
				delete(c.entries, id)
			}
		}
		c.nextSweep = now.Add(c.ttl)
	}
	c.entries[videoID] = memoryEntry{md: md, expires: now.Add(c.ttl)}
	return nil
}

func (c *MemoryMetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ MetadataCache = (*MemoryMetadataCache)(nil)
