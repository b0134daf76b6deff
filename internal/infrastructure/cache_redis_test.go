package infrastructure

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// memoryRedis implements redisStore over a map
type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// countingResolver counts Resolve calls
type countingResolver struct {
	info     *domain.MediaInfo
	err      error
	resolves int
	opened   *domain.MediaInfo
}

func (c *countingResolver) Resolve(ctx context.Context, id domain.ResourceID) (*domain.MediaInfo, error) {
	c.resolves++
	if c.err != nil {
		return nil, c.err
	}
	copied := *c.info
	return &copied, nil
}

func (c *countingResolver) OpenStream(ctx context.Context, info *domain.MediaInfo, d domain.StreamDescriptor) (io.ReadCloser, int64, error) {
	c.opened = info
	return io.NopCloser(strings.NewReader("x")), 1, nil
}

func (c *countingResolver) Captions(ctx context.Context, info *domain.MediaInfo, lang string) (*domain.CaptionTrack, error) {
	return &domain.CaptionTrack{LanguageCode: lang}, nil
}

func cachedInfo() *domain.MediaInfo {
	return &domain.MediaInfo{
		ResourceID: domain.NormalizeURL("https://youtu.be/abc123"),
		Title:      "Cached",
		Duration:   61 * time.Second,
		Streams:    []domain.StreamDescriptor{{Kind: domain.StreamAudio, Ref: "140", Bitrate: 128000}},
		Source:     "private handle",
	}
}

func TestRedisMetadataCache_SetGet(t *testing.T) {
	store := newMemoryRedis()
	cache := &RedisMetadataCache{client: store}
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "abc123", cachedInfo(), time.Hour))
	assert.Equal(t, time.Hour, store.ttls["media:info:abc123"])

	info, ok, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cached", info.Title)
	assert.Equal(t, 61*time.Second, info.Duration)
	assert.Len(t, info.Streams, 1)
	assert.Nil(t, info.Source, "resolver handles are not cached")
}

func TestRedisMetadataCache_CorruptEntryDropped(t *testing.T) {
	store := newMemoryRedis()
	store.data["media:info:abc123"] = "{not json"
	cache := &RedisMetadataCache{client: store}

	_, ok, err := cache.Get(context.Background(), "abc123")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NotContains(t, store.data, "media:info:abc123")
}

func TestCachingResolver_HitAndMiss(t *testing.T) {
	next := &countingResolver{info: cachedInfo()}
	cache := &RedisMetadataCache{client: newMemoryRedis()}
	r := NewCachingResolver(next, cache, time.Hour, nil)
	id := domain.NormalizeURL("https://youtu.be/abc123")

	first, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "private handle", first.Source)

	second, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, next.resolves)
	assert.Equal(t, "Cached", second.Title)

	_, _, err = r.OpenStream(context.Background(), second, second.Streams[0])
	require.NoError(t, err)
	assert.Same(t, second, next.opened)
}

func TestCachingResolver_CacheFailureFallsThrough(t *testing.T) {
	next := &countingResolver{info: cachedInfo()}
	store := newMemoryRedis()
	store.err = errors.New("connection refused")
	r := NewCachingResolver(next, &RedisMetadataCache{client: store}, time.Hour, nil)

	info, err := r.Resolve(context.Background(), domain.NormalizeURL("https://youtu.be/abc123"))
	require.NoError(t, err)
	assert.Equal(t, "Cached", info.Title)
	assert.Equal(t, 1, next.resolves)
}

func TestCachingResolver_DoesNotCacheFailures(t *testing.T) {
	next := &countingResolver{err: domain.NewError(domain.ErrResourceUnavailable, "resolve", nil)}
	store := newMemoryRedis()
	r := NewCachingResolver(next, &RedisMetadataCache{client: store}, time.Hour, nil)

	_, err := r.Resolve(context.Background(), domain.NormalizeURL("https://youtu.be/abc123"))
	assert.True(t, errors.Is(err, domain.ErrResourceUnavailable))
	assert.Empty(t, store.data)

	_, err = r.Resolve(context.Background(), domain.ResourceID("https://example.com/x"))
	assert.Error(t, err)
	assert.Equal(t, 2, next.resolves)
}
