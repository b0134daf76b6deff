package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

const mediaInfoKeyPrefix = "media:info:"

// redisStore is the subset of redis.Cmdable the cache uses
type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisMetadataCache stores resolved MediaInfo as JSON in Redis
type RedisMetadataCache struct {
	client redisStore
	closer io.Closer
}

// NewRedisMetadataCache connects to Redis and verifies the connection
func NewRedisMetadataCache(ctx context.Context, config domain.CacheConfig) (*RedisMetadataCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.RedisAddr, err)
	}

	return &RedisMetadataCache{client: client, closer: client}, nil
}

func mediaInfoKey(videoID string) string {
	return mediaInfoKeyPrefix + videoID
}

// Get returns the cached info for a video, reporting whether it was found
func (c *RedisMetadataCache) Get(ctx context.Context, videoID string) (*domain.MediaInfo, bool, error) {
	data, err := c.client.Get(ctx, mediaInfoKey(videoID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var info domain.MediaInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		// drop the unreadable entry so the next resolve refreshes it
		c.client.Del(ctx, mediaInfoKey(videoID))
		return nil, false, fmt.Errorf("failed to decode cached media info: %w", err)
	}
	return &info, true, nil
}

// Set stores info for a video with the given time to live
func (c *RedisMetadataCache) Set(ctx context.Context, videoID string, info *domain.MediaInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode media info: %w", err)
	}
	return c.client.Set(ctx, mediaInfoKey(videoID), data, ttl).Err()
}

// Close closes the redis connection
func (c *RedisMetadataCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// CachingResolver serves Resolve from a MetadataCache and falls through to
// the wrapped resolver on a miss. Cache errors never fail a request.
type CachingResolver struct {
	next   domain.StreamResolver
	cache  domain.MetadataCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingResolver wraps next with a metadata cache
func NewCachingResolver(next domain.StreamResolver, cache domain.MetadataCache, ttl time.Duration, logger *zap.Logger) *CachingResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingResolver{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Resolve returns cached info when present, otherwise resolves and stores it
func (r *CachingResolver) Resolve(ctx context.Context, id domain.ResourceID) (*domain.MediaInfo, error) {
	videoID := id.VideoID()
	if videoID == "" {
		return r.next.Resolve(ctx, id)
	}

	info, ok, err := r.cache.Get(ctx, videoID)
	if err != nil {
		r.logger.Warn("Metadata cache read failed", zap.String("video_id", videoID), zap.Error(err))
	}
	if ok {
		r.logger.Debug("Metadata cache hit", zap.String("video_id", videoID))
		return info, nil
	}

	info, err = r.next.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, videoID, info, r.ttl); err != nil {
		r.logger.Warn("Metadata cache write failed", zap.String("video_id", videoID), zap.Error(err))
	}
	return info, nil
}

// OpenStream delegates to the wrapped resolver, which re-fetches its private
// handle when the info came from the cache
func (r *CachingResolver) OpenStream(ctx context.Context, info *domain.MediaInfo, descriptor domain.StreamDescriptor) (io.ReadCloser, int64, error) {
	return r.next.OpenStream(ctx, info, descriptor)
}

// Captions delegates to the wrapped resolver
func (r *CachingResolver) Captions(ctx context.Context, info *domain.MediaInfo, languageCode string) (*domain.CaptionTrack, error) {
	return r.next.Captions(ctx, info, languageCode)
}
