package domain

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Sink is a scoped write target for transferred bytes.
// Close releases handles and keeps what was written; Discard releases
// handles and removes or truncates partial output. Both are idempotent.
type Sink interface {
	io.Writer
	Close() error
	Discard() error
}

// SizedSink is a sink whose persisted size can be re-read after a transfer
type SizedSink interface {
	Sink
	Size() (int64, error)
}

// PayloadSink can hand back everything written to it
type PayloadSink interface {
	Sink
	Payload() ([]byte, error)
}

// PathSink is backed by a file on the local filesystem
type PathSink interface {
	Sink
	Path() string
}

// Progress is one progress report of a transfer
type Progress struct {
	Transferred int64 `json:"transferred"`
	Total       int64 `json:"total"` // 0 when unknown
}

// Indeterminate reports whether the total is unknown
func (p Progress) Indeterminate() bool {
	return p.Total <= 0
}

// Fraction returns completion in [0,1]. ok is false when the total is unknown.
func (p Progress) Fraction() (fraction float64, ok bool) {
	if p.Indeterminate() {
		return 0, false
	}
	f := float64(p.Transferred) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	if f < 0 {
		f = 0
	}
	return f, true
}

// ProgressSink receives progress reports on the transfer's goroutine
type ProgressSink interface {
	OnProgress(p Progress)
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(p Progress)

// OnProgress calls f(p)
func (f ProgressFunc) OnProgress(p Progress) {
	if f != nil {
		f(p)
	}
}

// NopProgress discards progress reports
var NopProgress ProgressSink = ProgressFunc(nil)

// TransferStatus represents the status of a TransferTask
type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferInProgress TransferStatus = "in_progress"
	TransferComplete   TransferStatus = "complete"
	TransferFailed     TransferStatus = "failed"
	TransferCancelled  TransferStatus = "cancelled"
)

// TransferTask is owned by the transfer engine for the duration of one transfer
type TransferTask struct {
	ID               string
	Info             *MediaInfo
	Descriptor       StreamDescriptor
	Sink             Sink
	BytesTransferred int64 // reported progress, never above a known ExpectedSize
	BytesWritten     int64 // raw count of bytes handed to Sink
	ExpectedSize     int64
	Status           TransferStatus
	StartedAt        time.Time
	FinishedAt       time.Time
}

// NewTransferTask creates a pending task for a descriptor
func NewTransferTask(info *MediaInfo, descriptor StreamDescriptor, sink Sink) *TransferTask {
	return &TransferTask{
		ID:           uuid.New().String(),
		Info:         info,
		Descriptor:   descriptor,
		Sink:         sink,
		ExpectedSize: descriptor.ExpectedSize,
		Status:       TransferPending,
	}
}

// Advance records n more bytes written. BytesTransferred never goes
// backwards and never exceeds a known positive ExpectedSize; BytesWritten
// keeps the unclamped count.
func (t *TransferTask) Advance(n int64) Progress {
	if n > 0 {
		t.BytesWritten += n
	}
	transferred := t.BytesWritten
	if t.ExpectedSize > 0 && transferred > t.ExpectedSize {
		transferred = t.ExpectedSize
	}
	if transferred > t.BytesTransferred {
		t.BytesTransferred = transferred
	}
	return t.Progress()
}

// Progress returns the current progress
func (t *TransferTask) Progress() Progress {
	return Progress{Transferred: t.BytesTransferred, Total: t.ExpectedSize}
}

// MarkInProgress marks the task as running
func (t *TransferTask) MarkInProgress() {
	t.Status = TransferInProgress
	t.StartedAt = time.Now()
}

// MarkComplete marks the task as finished with the verified size
func (t *TransferTask) MarkComplete(verified int64) {
	t.Status = TransferComplete
	t.BytesTransferred = verified
	t.BytesWritten = verified
	t.ExpectedSize = verified
	t.FinishedAt = time.Now()
}

// MarkFailed marks the task as failed
func (t *TransferTask) MarkFailed() {
	t.Status = TransferFailed
	t.FinishedAt = time.Now()
}

// MarkCancelled marks the task as cancelled
func (t *TransferTask) MarkCancelled() {
	t.Status = TransferCancelled
	t.FinishedAt = time.Now()
}

// TransferResult reports a completed transfer
type TransferResult struct {
	BytesWritten int64
	DeclaredSize int64
	VerifiedSize int64
	SizeMismatch bool // declared size differed from what was written
	Elapsed      time.Duration
}
