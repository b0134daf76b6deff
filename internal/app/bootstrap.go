package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
)

// BuildPipeline wires the resolver, optional metadata cache, transcoder and
// transfer engine described by config. The returned cleanup releases the
// cache connection. An unreachable cache is logged and skipped.
func BuildPipeline(ctx context.Context, config *domain.Config, log *zap.Logger) (*Pipeline, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	cleanup := func() {}

	if err := os.MkdirAll(config.Download.TempDir, 0755); err != nil {
		return nil, cleanup, fmt.Errorf("failed to create temp directory: %w", err)
	}

	var resolver domain.StreamResolver = infrastructure.NewYouTubeResolver(config.YouTube, log)

	if config.Cache.Enabled {
		cache, err := infrastructure.NewRedisMetadataCache(ctx, config.Cache)
		if err != nil {
			log.Warn("Metadata cache unavailable, resolving without it",
				zap.String("addr", config.Cache.RedisAddr),
				zap.Error(err))
		} else {
			resolver = infrastructure.NewCachingResolver(resolver, cache, config.Cache.TTL, log)
			cleanup = func() {
				if err := cache.Close(); err != nil {
					log.Warn("Failed to close metadata cache", zap.Error(err))
				}
			}
		}
	}

	transcoder := infrastructure.NewFFmpegTranscoder(config.Transcode.FFmpegBinary, log)
	if !transcoder.Available() {
		log.Warn("ffmpeg not found, audio requests will fail",
			zap.String("binary", config.Transcode.FFmpegBinary))
	}

	pipeline := NewPipeline(
		resolver,
		transcoder,
		NewTransferEngine(resolver, config.Download.ChunkSize, log),
		NewAssembler(log),
		PipelineConfig{
			TempDir:         config.Download.TempDir,
			SinkMode:        config.Download.SinkMode,
			CaptionLanguage: config.Download.CaptionLanguage,
			AudioFormat:     config.Transcode.AudioFormat(),
		},
		log,
	)
	return pipeline, cleanup, nil
}

// BuildDeliverer returns the deliverer selected by config.Delivery.Method
func BuildDeliverer(ctx context.Context, config *domain.Config, log *zap.Logger) (domain.Deliverer, error) {
	switch config.Delivery.Method {
	case domain.DeliveryFilesystem, "":
		return infrastructure.NewFilesystemDeliverer(config.Download.OutputDir, log), nil
	case domain.DeliveryS3:
		return infrastructure.NewS3Deliverer(ctx, config.Delivery.S3, log)
	default:
		return nil, fmt.Errorf("invalid delivery method: %s", config.Delivery.Method)
	}
}
