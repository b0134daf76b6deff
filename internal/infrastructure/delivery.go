package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// maxNameAttempts bounds the "name (n).ext" search in FilesystemDeliverer
const maxNameAttempts = 1000

// FilesystemDeliverer writes artifacts into an output directory.
// Existing files are never overwritten.
type FilesystemDeliverer struct {
	outputDir string
	logger    *zap.Logger
}

// NewFilesystemDeliverer creates a deliverer writing into outputDir
func NewFilesystemDeliverer(outputDir string, logger *zap.Logger) *FilesystemDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesystemDeliverer{outputDir: outputDir, logger: logger}
}

// Deliver writes the artifact and returns the path it was written to
func (d *FilesystemDeliverer) Deliver(ctx context.Context, artifact *domain.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	file, target, err := d.createUnique(artifact.Filename())
	if err != nil {
		return "", err
	}

	if _, err := artifact.WriteTo(file); err != nil {
		file.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}

	d.logger.Info("Artifact delivered",
		zap.String("path", target),
		zap.String("size", humanize.Bytes(uint64(artifact.Size()))))
	return target, nil
}

// createUnique opens a new file for name, falling back to "name (n).ext"
func (d *FilesystemDeliverer) createUnique(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		target := filepath.Join(d.outputDir, candidate)

		file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return file, target, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create artifact file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %q", name)
}

// s3PutAPI is the subset of *s3.Client the deliverer uses
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Deliverer uploads artifacts to an S3 bucket
type S3Deliverer struct {
	client s3PutAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Deliverer creates an S3 deliverer. Static credentials are used when
// configured, otherwise the default AWS credential chain.
func NewS3Deliverer(ctx context.Context, cfg domain.S3Config, logger *zap.Logger) (*S3Deliverer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Deliverer{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// Deliver uploads the artifact and returns its s3:// location. Each upload
// gets its own key directory so uploads never replace each other.
func (d *S3Deliverer) Deliver(ctx context.Context, artifact *domain.Artifact) (string, error) {
	key := path.Join(d.prefix, uuid.New().String(), artifact.Filename())

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(artifact.Payload()),
		ContentType:   aws.String(artifact.ContentType()),
		ContentLength: aws.Int64(artifact.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", d.bucket, key)
	d.logger.Info("Artifact uploaded",
		zap.String("location", location),
		zap.String("size", humanize.Bytes(uint64(artifact.Size()))))
	return location, nil
}
