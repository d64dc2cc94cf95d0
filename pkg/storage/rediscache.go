package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// RedisCache is a read-through cache in front of another Adapter.
// Small artifact bodies and their metadata are kept in redis with a
// TTL; the inner adapter stays the source of truth. Redis failures are
// logged and fall through to the inner adapter, never surfaced to the
// caller.
type RedisCache struct {
	inner    Adapter
	client   *redis.Client
	ttl      time.Duration
	maxEntry int64
	logger   *slog.Logger
}

// RedisCacheConfig holds configuration for the cache layer.
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL for cached entries; cached content is immutable so long TTLs
	// are safe. Default 1 hour.
	TTL time.Duration
	// MaxEntryBytes caps the body size that gets cached. Default 1 MiB.
	MaxEntryBytes int64
}

const (
	redisBlobPrefix = "depot:blob:"
	redisMetaPrefix = "depot:meta:"
)

// NewRedisCache wraps inner with a redis read-through cache. The
// returned Adapter is a Lister exactly when inner is one.
func NewRedisCache(inner Adapter, cfg RedisCacheConfig, logger *slog.Logger) Adapter {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MaxEntryBytes <= 0 {
		cfg.MaxEntryBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache := &RedisCache{
		inner: inner,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:      cfg.TTL,
		maxEntry: cfg.MaxEntryBytes,
		logger:   logger,
	}

	if lister, ok := inner.(Lister); ok {
		return &redisCacheLister{RedisCache: cache, lister: lister}
	}
	return cache
}

// redisCacheLister adds the listing capability when the inner adapter
// has it; listing always goes straight to the source of truth.
type redisCacheLister struct {
	*RedisCache
	lister Lister
}

func (c *redisCacheLister) List(ctx context.Context, opts ListOptions) ([]cas.Digest, string, error) {
	return c.lister.List(ctx, opts)
}

// Put writes through to the inner adapter, then primes the cache.
func (c *RedisCache) Put(ctx context.Context, digest cas.Digest, data []byte, meta Metadata) error {
	if err := c.inner.Put(ctx, digest, data, meta); err != nil {
		return err
	}
	c.fill(ctx, digest, data, meta)
	return nil
}

// Get serves from redis when warm, otherwise reads through and fills
// the cache for payloads under the entry cap.
func (c *RedisCache) Get(ctx context.Context, digest cas.Digest) (*StoredArtifact, error) {
	body, err := c.client.Get(ctx, redisBlobPrefix+string(digest)).Bytes()
	if err == nil {
		metaJSON, metaErr := c.client.Get(ctx, redisMetaPrefix+string(digest)).Bytes()
		var meta Metadata
		if metaErr == nil && json.Unmarshal(metaJSON, &meta) == nil {
			return &StoredArtifact{
				Digest:   digest,
				Body:     io.NopCloser(bytes.NewReader(body)),
				Size:     int64(len(body)),
				Metadata: meta,
			}, nil
		}
		// Body without readable metadata: treat as a miss.
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("redis cache read failed", "digest", digest, "error", err)
	}

	artifact, err := c.inner.Get(ctx, digest)
	if err != nil || artifact == nil {
		return artifact, err
	}

	// Buffer small bodies to prime the cache; stream large ones through.
	if artifact.Size > 0 && artifact.Size <= c.maxEntry {
		data, readErr := io.ReadAll(artifact.Body)
		_ = artifact.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		c.fill(ctx, digest, data, artifact.Metadata)
		artifact.Body = io.NopCloser(bytes.NewReader(data))
	}
	return artifact, nil
}

// Delete invalidates the cache after deleting from the source.
func (c *RedisCache) Delete(ctx context.Context, digest cas.Digest) (bool, error) {
	deleted, err := c.inner.Delete(ctx, digest)
	if delErr := c.client.Del(ctx, redisBlobPrefix+string(digest), redisMetaPrefix+string(digest)).Err(); delErr != nil {
		c.logger.Warn("redis cache invalidation failed", "digest", digest, "error", delErr)
	}
	return deleted, err
}

// Exists answers from the cached blob key when possible.
func (c *RedisCache) Exists(ctx context.Context, digest cas.Digest) (bool, error) {
	n, err := c.client.Exists(ctx, redisBlobPrefix+string(digest)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		c.logger.Warn("redis cache exists failed", "digest", digest, "error", err)
	}
	return c.inner.Exists(ctx, digest)
}

// fill caches body and metadata best-effort.
func (c *RedisCache) fill(ctx context.Context, digest cas.Digest, data []byte, meta Metadata) {
	if int64(len(data)) > c.maxEntry {
		return
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, redisBlobPrefix+string(digest), data, c.ttl)
	pipe.Set(ctx, redisMetaPrefix+string(digest), metaJSON, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("redis cache fill failed", "digest", digest, "error", err)
	}
}
