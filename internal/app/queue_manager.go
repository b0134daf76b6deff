package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/pkg/logger"
)

// QueueManager owns the request queue and hands pending requests to workers
type QueueManager struct {
	repo        domain.RequestRepository
	requestMgr  *RequestManager
	config      *domain.QueueConfig
	notifier    queueNotifier
	multiLogger *logger.MultiLogger
	mu          sync.RWMutex
	running     bool
	inflight    map[string]bool
	stopChan    chan struct{}
	wake        chan struct{}
	workerWg    sync.WaitGroup
}

type queueNotifier interface {
	NotifyQueued(req *domain.Request)
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.RequestRepository,
	requestMgr *RequestManager,
	config *domain.QueueConfig,
	multiLogger *logger.MultiLogger,
) *QueueManager {
	qm := &QueueManager{
		repo:        repo,
		requestMgr:  requestMgr,
		config:      config,
		multiLogger: multiLogger,
		inflight:    make(map[string]bool),
		wake:        make(chan struct{}, 1),
	}
	if requestMgr != nil && requestMgr.notifier != nil {
		qm.notifier = requestMgr.notifier
	}
	return qm
}

// Start starts the queue processor
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	stop := make(chan struct{})
	qm.stopChan = stop
	qm.mu.Unlock()

	qm.logEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(ctx, stop)

	return nil
}

// Stop stops the queue processor and waits for running requests to finish
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	stop := qm.stopChan
	qm.mu.Unlock()

	qm.logEvent("queue_stopped")
	close(stop)
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// AddRequest validates and queues a request. An unfinished request for the
// same resource and kind is returned instead of queueing a duplicate.
func (qm *QueueManager) AddRequest(rawURL string, kind domain.RequestKind, language string) (*domain.Request, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if !domain.ValidateKind(kind) {
		return nil, fmt.Errorf("%w: invalid kind: %s", ErrInvalidRequest, kind)
	}

	req := domain.NewRequest(rawURL, kind, language)
	if !req.ResourceID.IsCanonical() {
		return nil, fmt.Errorf("%w: unsupported url: %s", ErrInvalidRequest, rawURL)
	}

	existing, err := qm.repo.FindOpen(req.ResourceID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if existing != nil {
		qm.logEvent("request_duplicate",
			zap.String("id", existing.ID),
			zap.String("resource", req.ResourceID.String()))
		return existing, nil
	}

	if err := qm.repo.Create(req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	qm.logEvent("request_added",
		zap.String("id", req.ID),
		zap.String("url", rawURL),
		zap.String("resource", req.ResourceID.String()),
		zap.String("kind", string(kind)))

	if qm.notifier != nil {
		qm.notifier.NotifyQueued(req)
	}
	qm.Wake()
	return req, nil
}

// Wake makes the processor look for pending requests without waiting for the next tick
func (qm *QueueManager) Wake() {
	select {
	case qm.wake <- struct{}{}:
	default:
	}
}

// GetRequest retrieves a request by ID
func (qm *QueueManager) GetRequest(id string) (*domain.Request, error) {
	req, err := qm.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ListRequests lists requests with optional filters
func (qm *QueueManager) ListRequests(filters map[string]interface{}) ([]*domain.Request, error) {
	return qm.repo.FindAll(filters)
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.RequestStats, error) {
	return qm.repo.GetStats()
}

var (
	// ErrInvalidRequest is returned when a request is rejected before queueing
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRequestActive is returned when deleting a request that has not finished
	ErrRequestActive = errors.New("request has not finished")
)

// DeleteRequest removes a finished request from the history
func (qm *QueueManager) DeleteRequest(id string) error {
	req, err := qm.GetRequest(id)
	if err != nil {
		return err
	}
	if !req.IsTerminal() {
		return ErrRequestActive
	}
	if err := qm.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	qm.logEvent("request_deleted", zap.String("id", id))
	return nil
}

// processQueue polls for pending requests until stopped
func (qm *QueueManager) processQueue(ctx context.Context, stop <-chan struct{}) {
	defer qm.workerWg.Done()

	interval := qm.config.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	qm.dispatchPending(ctx)

	for {
		select {
		case <-ctx.Done():
			qm.logEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-stop:
			qm.logEvent("queue_processor_stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
			qm.dispatchPending(ctx)
		case <-qm.wake:
			qm.dispatchPending(ctx)
		}
	}
}

// dispatchPending starts one goroutine per pending request not already in flight.
// The RequestManager semaphore bounds how many actually run.
func (qm *QueueManager) dispatchPending(ctx context.Context) {
	pending, err := qm.repo.FindPending()
	if err != nil {
		if qm.multiLogger != nil {
			qm.multiLogger.LogAppError("Failed to fetch pending requests", zap.Error(err))
		}
		return
	}

	for _, req := range pending {
		qm.mu.Lock()
		if qm.inflight[req.ID] {
			qm.mu.Unlock()
			continue
		}
		qm.inflight[req.ID] = true
		qm.mu.Unlock()

		qm.logEvent("request_dispatched",
			zap.String("id", req.ID),
			zap.String("kind", string(req.Kind)))

		qm.workerWg.Add(1)
		go func(req *domain.Request) {
			defer qm.workerWg.Done()
			defer func() {
				qm.mu.Lock()
				delete(qm.inflight, req.ID)
				qm.mu.Unlock()
			}()

			if err := qm.requestMgr.ProcessRequest(ctx, req); err != nil {
				qm.logEvent("request_finished",
					zap.String("id", req.ID),
					zap.Error(err))
			}
		}(req)
	}
}

func (qm *QueueManager) logEvent(event string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogRequestEvent(event, fields...)
	}
}
