package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
	"github.com/yourusername/media-fetch-go/pkg/logger"
)

// ErrRequestNotFound is returned when a request id is unknown
var ErrRequestNotFound = errors.New("request not found")

// ErrInvalidState is returned when an operation does not apply to the request's state
var ErrInvalidState = errors.New("invalid request state")

// RequestManager runs queued requests through the pipeline and delivers the results
type RequestManager struct {
	repo        domain.RequestRepository
	fetcher     Fetcher
	deliverer   domain.Deliverer
	notifier    *infrastructure.NotificationService
	feed        *ProgressFeed
	multiLogger *logger.MultiLogger
	logger      *zap.Logger
	semaphore   chan struct{}
	mu          sync.Mutex
	active      map[string]context.CancelFunc
}

// NewRequestManager creates a new request manager
func NewRequestManager(
	repo domain.RequestRepository,
	fetcher Fetcher,
	deliverer domain.Deliverer,
	notifier *infrastructure.NotificationService,
	feed *ProgressFeed,
	config *domain.DownloadConfig,
	multiLogger *logger.MultiLogger,
	log *zap.Logger,
) *RequestManager {
	limit := config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	if feed == nil {
		feed = NewProgressFeed()
	}
	return &RequestManager{
		repo:        repo,
		fetcher:     fetcher,
		deliverer:   deliverer,
		notifier:    notifier,
		feed:        feed,
		multiLogger: multiLogger,
		logger:      log,
		semaphore:   make(chan struct{}, limit),
		active:      make(map[string]context.CancelFunc),
	}
}

// Feed returns the progress feed requests publish to
func (rm *RequestManager) Feed() *ProgressFeed {
	return rm.feed
}

// ProcessRequest runs a pending request to a terminal state
func (rm *RequestManager) ProcessRequest(ctx context.Context, req *domain.Request) error {
	select {
	case rm.semaphore <- struct{}{}:
		defer func() { <-rm.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the request may have been cancelled while it waited for a slot
	rm.mu.Lock()
	current, err := rm.repo.FindByID(req.ID)
	if err != nil || current == nil || !current.IsPending() {
		rm.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to reload request: %w", err)
		}
		return nil
	}
	req = current
	rm.active[req.ID] = cancel
	rm.mu.Unlock()
	defer func() {
		rm.mu.Lock()
		delete(rm.active, req.ID)
		rm.mu.Unlock()
	}()

	rm.feed.Open(req.ID)
	defer rm.feed.Close(req.ID)

	log := logger.ForRequest(rm.logger, req.ID)
	log.Info("Processing request",
		zap.String("url", req.URL),
		zap.String("kind", string(req.Kind)))

	observer := &requestObserver{rm: rm, req: req, log: log}
	artifact, info, fetchErr := rm.fetcher.Fetch(reqCtx, FetchRequest{
		URL:      req.URL,
		Kind:     req.Kind,
		Language: req.Language,
	}, observer)
	if info != nil {
		req.ApplyMediaInfo(info)
	}

	if fetchErr == nil {
		location, err := rm.deliverer.Deliver(reqCtx, artifact)
		if err != nil {
			fetchErr = domain.Classify(err, domain.ErrTransferFailed, "deliver")
		} else {
			req.MarkDelivered(artifact, location)
		}
	}
	if fetchErr != nil {
		req.MarkFailed(fetchErr)
	}

	if err := rm.repo.Update(req); err != nil {
		log.Error("Failed to update request", zap.Error(err))
	}
	rm.publishFinal(req)
	rm.logOutcome(req, fetchErr)

	if fetchErr != nil {
		rm.notifier.NotifyFailed(req)
		return fetchErr
	}
	rm.notifier.NotifyDelivered(req)
	return nil
}

func (rm *RequestManager) publishFinal(req *domain.Request) {
	event := ProgressEvent{
		RequestID:   req.ID,
		State:       req.State,
		Title:       req.Title,
		Transferred: req.SizeBytes,
		Total:       req.SizeBytes,
		FailureKind: req.FailureKind,
		Done:        true,
	}
	if req.FailureKind != "" {
		event.Message = req.FailureKind.UserMessage()
	}
	rm.feed.Publish(event)
}

func (rm *RequestManager) logOutcome(req *domain.Request, err error) {
	if rm.multiLogger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("id", req.ID),
		zap.String("url", req.URL),
		zap.String("kind", string(req.Kind)),
		zap.String("state", string(req.State)),
	}
	if err == nil {
		fields = append(fields,
			zap.String("filename", req.Filename),
			zap.Int64("size", req.SizeBytes),
			zap.String("location", req.Location))
		rm.multiLogger.LogRequestEvent("request_delivered", fields...)
		return
	}

	fields = append(fields, zap.String("failure_kind", string(req.FailureKind)), zap.Error(err))
	if req.FailureKind.IsNotice() {
		rm.multiLogger.LogRequestEvent("request_stopped", fields...)
		return
	}
	rm.multiLogger.LogRequestEvent("request_failed", fields...)
	rm.multiLogger.LogAppError("Request failed", fields...)
}

// CancelRequest cancels a pending or running request
func (rm *RequestManager) CancelRequest(id string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	req, err := rm.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("failed to find request: %w", err)
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.IsTerminal() {
		return fmt.Errorf("%w: request already %s", ErrInvalidState, req.State)
	}

	if cancel, running := rm.active[id]; running {
		// the worker records the cancelled state when the pipeline unwinds
		cancel()
		rm.logger.Info("Request cancellation signalled", zap.String("id", id))
		return nil
	}

	req.MarkCancelled()
	if err := rm.repo.Update(req); err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	rm.logger.Info("Request cancelled", zap.String("id", id))
	return nil
}

// RetryRequest queues a fresh request for a failed or cancelled one
func (rm *RequestManager) RetryRequest(id string) (*domain.Request, error) {
	req, err := rm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if !req.CanRetry() {
		return nil, fmt.Errorf("%w: request cannot be retried while %s", ErrInvalidState, req.State)
	}

	fresh := req.Retry()
	if err := rm.repo.Create(fresh); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	rm.logger.Info("Request queued for retry",
		zap.String("id", id),
		zap.String("new_id", fresh.ID))
	return fresh, nil
}

// IsActive reports whether a worker is running the request
func (rm *RequestManager) IsActive(id string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok := rm.active[id]
	return ok
}

// requestObserver persists state transitions and forwards progress to the feed
type requestObserver struct {
	rm    *RequestManager
	req   *domain.Request
	log   *zap.Logger
	title string
	label string
}

func (o *requestObserver) OnState(state domain.RequestState) {
	o.req.Advance(state)
	if err := o.rm.repo.Update(o.req); err != nil {
		o.log.Warn("Failed to persist state", zap.String("state", string(state)), zap.Error(err))
	}
	o.rm.feed.Publish(ProgressEvent{
		RequestID: o.req.ID,
		State:     state,
		Title:     o.title,
		Length:    o.label,
	})
}

func (o *requestObserver) OnMediaInfo(info *domain.MediaInfo) {
	o.title = info.Title
	o.label = info.LengthLabel()
	o.req.ApplyMediaInfo(info)
	if err := o.rm.repo.Update(o.req); err != nil {
		o.log.Warn("Failed to persist media info", zap.Error(err))
	}
	o.rm.feed.Publish(ProgressEvent{
		RequestID: o.req.ID,
		State:     o.req.State,
		Title:     o.title,
		Length:    o.label,
	})
}

func (o *requestObserver) OnProgress(p domain.Progress) {
	o.rm.feed.Publish(ProgressEvent{
		RequestID:   o.req.ID,
		State:       o.req.State,
		Title:       o.title,
		Length:      o.label,
		Transferred: p.Transferred,
		Total:       p.Total,
	})
}
