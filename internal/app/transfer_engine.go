package app

import (
	"context"
	"errors"
	"io"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// DefaultChunkSize is used when no chunk size is configured
const DefaultChunkSize = 32 * 1024

// TransferEngine streams a resolved stream into a sink in fixed-size chunks
type TransferEngine struct {
	resolver  domain.StreamResolver
	chunkSize int
	logger    *zap.Logger
}

// NewTransferEngine creates a new transfer engine
func NewTransferEngine(resolver domain.StreamResolver, chunkSize int, logger *zap.Logger) *TransferEngine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferEngine{
		resolver:  resolver,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Transfer copies the task's stream into its sink, reporting progress at every
// chunk boundary. On success the sink is closed and its content verified; on
// any failure or cancellation the sink is discarded.
func (e *TransferEngine) Transfer(ctx context.Context, task *domain.TransferTask, progress domain.ProgressSink) (*domain.TransferResult, error) {
	if progress == nil {
		progress = domain.NopProgress
	}

	task.MarkInProgress()
	log := e.logger.With(
		zap.String("task_id", task.ID),
		zap.String("stream", string(task.Descriptor.Kind)))

	if err := ctx.Err(); err != nil {
		return nil, e.abort(task, domain.NewError(domain.ErrCancelled, "transfer", err))
	}

	stream, announced, err := e.resolver.OpenStream(ctx, task.Info, task.Descriptor)
	if err != nil {
		return nil, e.abort(task, domain.Classify(err, domain.ErrTransferFailed, "open stream"))
	}
	defer stream.Close()

	if task.ExpectedSize <= 0 && announced > 0 {
		task.ExpectedSize = announced
	}

	log.Debug("Transfer started",
		zap.Int64("expected_size", task.ExpectedSize),
		zap.Int("chunk_size", e.chunkSize))

	progress.OnProgress(task.Progress())

	buf := make([]byte, e.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, e.abort(task, domain.NewError(domain.ErrCancelled, "transfer", err))
		}

		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, err := task.Sink.Write(buf[:n]); err != nil {
				return nil, e.abort(task, domain.NewError(domain.ErrTransferFailed, "write sink", err))
			}
			progress.OnProgress(task.Advance(int64(n)))
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, e.abort(task, domain.NewError(domain.ErrCancelled, "transfer", ctx.Err()))
			}
			return nil, e.abort(task, domain.Classify(readErr, domain.ErrTransferFailed, "read stream"))
		}
	}

	written := task.BytesWritten
	if err := task.Sink.Close(); err != nil {
		return nil, e.abort(task, domain.NewError(domain.ErrTransferFailed, "close sink", err))
	}

	verified := written
	if sized, ok := task.Sink.(domain.SizedSink); ok {
		size, err := sized.Size()
		if err != nil {
			return nil, e.abort(task, domain.NewError(domain.ErrTransferFailed, "stat sink", err))
		}
		if size != written {
			log.Error("Persisted size differs from bytes written",
				zap.Int64("written", written),
				zap.Int64("persisted", size))
			return nil, e.abort(task, domain.NewError(domain.ErrTransferCorrupted, "verify sink", nil))
		}
		verified = size
	}

	declared := task.ExpectedSize
	mismatch := declared > 0 && declared != verified
	if mismatch {
		log.Warn("Declared size differs from received size",
			zap.Int64("declared", declared),
			zap.Int64("received", verified))
	}

	task.MarkComplete(verified)
	progress.OnProgress(task.Progress())

	elapsed := task.FinishedAt.Sub(task.StartedAt)
	log.Info("Transfer complete",
		zap.String("size", humanize.Bytes(uint64(verified))),
		zap.Duration("elapsed", elapsed))

	return &domain.TransferResult{
		BytesWritten: written,
		DeclaredSize: declared,
		VerifiedSize: verified,
		SizeMismatch: mismatch,
		Elapsed:      elapsed,
	}, nil
}

// abort discards partial output and records the terminal status of the task
func (e *TransferEngine) abort(task *domain.TransferTask, err error) error {
	if discardErr := task.Sink.Discard(); discardErr != nil {
		e.logger.Warn("Failed to discard partial output",
			zap.String("task_id", task.ID),
			zap.Error(discardErr))
	}

	if errors.Is(err, domain.ErrCancelled) {
		task.MarkCancelled()
		e.logger.Info("Transfer cancelled",
			zap.String("task_id", task.ID),
			zap.Int64("written", task.BytesWritten))
	} else {
		task.MarkFailed()
		e.logger.Warn("Transfer failed",
			zap.String("task_id", task.ID),
			zap.Int64("written", task.BytesWritten),
			zap.Error(err))
	}
	return err
}
