package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
)

func testConfig(t *testing.T) *domain.Config {
	config := domain.DefaultConfig()
	dir := t.TempDir()
	config.Download.TempDir = filepath.Join(dir, "tmp")
	config.Download.OutputDir = filepath.Join(dir, "out")
	return config
}

func TestBuildPipeline(t *testing.T) {
	config := testConfig(t)

	pipeline, cleanup, err := BuildPipeline(context.Background(), config, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, pipeline)
	assert.DirExists(t, config.Download.TempDir)
	assert.Equal(t, config.Transcode.AudioFormat(), pipeline.config.AudioFormat)
	_, cached := pipeline.resolver.(*infrastructure.CachingResolver)
	assert.False(t, cached)
}

func TestBuildPipeline_UnreachableCacheIsSkipped(t *testing.T) {
	config := testConfig(t)
	config.Cache.Enabled = true
	config.Cache.RedisAddr = "127.0.0.1:1"

	pipeline, cleanup, err := BuildPipeline(context.Background(), config, nil)
	require.NoError(t, err)
	defer cleanup()

	_, cached := pipeline.resolver.(*infrastructure.CachingResolver)
	assert.False(t, cached)
}

func TestBuildDeliverer(t *testing.T) {
	config := testConfig(t)

	d, err := BuildDeliverer(context.Background(), config, nil)
	require.NoError(t, err)
	assert.IsType(t, &infrastructure.FilesystemDeliverer{}, d)

	config.Delivery.Method = domain.DeliveryS3
	_, err = BuildDeliverer(context.Background(), config, nil)
	assert.Error(t, err, "s3 without a bucket")

	config.Delivery.Method = "ftp"
	_, err = BuildDeliverer(context.Background(), config, nil)
	assert.ErrorContains(t, err, "invalid delivery method")
}
