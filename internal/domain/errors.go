package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure a request can end in.
// Kinds are errors themselves so callers can use errors.Is(err, ErrCancelled).
type ErrorKind string

const (
	ErrResourceUnavailable ErrorKind = "resource_unavailable" // bad/unsupported URL or deleted resource
	ErrStreamUnavailable   ErrorKind = "stream_unavailable"   // no stream of the requested kind
	ErrTransferCorrupted   ErrorKind = "transfer_corrupted"   // read-back does not match bytes written
	ErrTransferFailed      ErrorKind = "transfer_failed"      // I/O error during transfer
	ErrTranscodeFailed     ErrorKind = "transcode_failed"     // decode/encode error
	ErrCancelled           ErrorKind = "cancelled"            // caller cancelled the request
)

func (k ErrorKind) Error() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// IsNotice reports whether the kind is an expected outcome rather than a failure
func (k ErrorKind) IsNotice() bool {
	return k == ErrStreamUnavailable || k == ErrCancelled
}

// UserMessage returns the message shown to the person who made the request
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrResourceUnavailable:
		return "The link could not be resolved to a downloadable resource. Check the URL and try again."
	case ErrStreamUnavailable:
		return "The requested format is not available for this resource."
	case ErrTransferCorrupted:
		return "The download was corrupted and has been discarded. Please try again."
	case ErrTransferFailed:
		return "The download failed before it completed. Please try again."
	case ErrTranscodeFailed:
		return "The audio could not be converted."
	case ErrCancelled:
		return "The download was cancelled."
	default:
		return "Could not generate download. Try another video."
	}
}

// ValidErrorKind checks if an error kind is known
func ValidErrorKind(k ErrorKind) bool {
	switch k {
	case ErrResourceUnavailable, ErrStreamUnavailable, ErrTransferCorrupted,
		ErrTransferFailed, ErrTranscodeFailed, ErrCancelled:
		return true
	}
	return false
}

// PipelineError is the only error type that leaves the pipeline boundary
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError creates a PipelineError of the given kind
func NewError(kind ErrorKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

func (e *PipelineError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the ErrorKind carried by err, if any
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind, true
	}
	return "", false
}

// Classify translates any collaborator error into a PipelineError.
// Errors already classified keep their kind; context cancellation becomes
// ErrCancelled; everything else takes the fallback kind.
func Classify(err error, fallback ErrorKind, op string) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if kind, ok := KindOf(err); ok {
		return NewError(kind, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrCancelled, op, err)
	}
	return NewError(fallback, op, err)
}
