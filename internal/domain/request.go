package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestState represents where a request is in the pipeline
type RequestState string

const (
	StateRequested         RequestState = "requested"
	StateResolving         RequestState = "resolving"
	StateTransferring      RequestState = "transferring"
	StateTranscoding       RequestState = "transcoding"
	StateCaptionExtracting RequestState = "caption_extracting"
	StateAssembling        RequestState = "assembling"
	StateDelivered         RequestState = "delivered"
	StateFailed            RequestState = "failed"
	StateCancelled         RequestState = "cancelled"
)

// ActiveStates are the states a request passes through while a worker owns it
var ActiveStates = []RequestState{
	StateResolving,
	StateTransferring,
	StateTranscoding,
	StateCaptionExtracting,
	StateAssembling,
}

// Request is one retrieval request and its recorded outcome
type Request struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	URL          string       `json:"url" gorm:"not null"`
	ResourceID   ResourceID   `json:"resource_id" gorm:"index"`
	Kind         RequestKind  `json:"kind" gorm:"not null"`
	Language     string       `json:"language,omitempty"`
	State        RequestState `json:"state" gorm:"not null;index"`
	FailureKind  ErrorKind    `json:"failure_kind,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Title        string       `json:"title,omitempty"`
	DurationSec  int64        `json:"duration_sec,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	ContentType  string       `json:"content_type,omitempty"`
	SizeBytes    int64        `json:"size_bytes,omitempty"`
	Location     string       `json:"location,omitempty"` // where the artifact was delivered
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewRequest creates a new request in the requested state
func NewRequest(rawURL string, kind RequestKind, language string) *Request {
	now := time.Now()
	return &Request{
		ID:         uuid.New().String(),
		URL:        rawURL,
		ResourceID: NormalizeURL(rawURL),
		Kind:       kind,
		Language:   language,
		State:      StateRequested,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Advance moves the request to a non-terminal pipeline state
func (r *Request) Advance(state RequestState) {
	now := time.Now()
	if r.StartedAt == nil && state != StateRequested {
		r.StartedAt = &now
	}
	r.State = state
	r.UpdatedAt = now
}

// MarkDelivered records a delivered artifact
func (r *Request) MarkDelivered(artifact *Artifact, location string) {
	r.State = StateDelivered
	r.Filename = artifact.Filename()
	r.ContentType = artifact.ContentType()
	r.SizeBytes = artifact.Size()
	r.Location = location
	r.FailureKind = ""
	r.ErrorMessage = ""
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// MarkFailed records a failure. Cancellation moves to the cancelled state
// instead of failed.
func (r *Request) MarkFailed(err error) {
	kind, ok := KindOf(err)
	if !ok {
		kind = ErrTransferFailed
	}
	if kind == ErrCancelled {
		r.State = StateCancelled
	} else {
		r.State = StateFailed
	}
	r.FailureKind = kind
	r.ErrorMessage = err.Error()
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// MarkCancelled cancels a request that never started
func (r *Request) MarkCancelled() {
	r.State = StateCancelled
	r.FailureKind = ErrCancelled
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// ApplyMediaInfo copies the resolved summary onto the request
func (r *Request) ApplyMediaInfo(info *MediaInfo) {
	r.Title = info.Title
	r.DurationSec = int64(info.Duration.Seconds())
	r.UpdatedAt = time.Now()
}

// IsTerminal checks if the request is in a terminal state
func (r *Request) IsTerminal() bool {
	return r.State == StateDelivered || r.State == StateFailed || r.State == StateCancelled
}

// IsPending checks if the request is waiting for a worker
func (r *Request) IsPending() bool {
	return r.State == StateRequested
}

// IsActive checks if a worker currently owns the request
func (r *Request) IsActive() bool {
	for _, s := range ActiveStates {
		if r.State == s {
			return true
		}
	}
	return false
}

// CanRetry checks if a fresh request may be created from this one
func (r *Request) CanRetry() bool {
	return r.State == StateFailed || r.State == StateCancelled
}

// Retry creates a fresh request for the same URL and kind
func (r *Request) Retry() *Request {
	return NewRequest(r.URL, r.Kind, r.Language)
}
