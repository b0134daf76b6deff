package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_IsAndAs(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(ErrTransferFailed, "transfer", cause)

	assert.True(t, errors.Is(err, ErrTransferFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrTransferCorrupted))
	assert.Equal(t, "transfer: transfer failed: connection reset", err.Error())

	wrapped := fmt.Errorf("request 1: %w", err)
	var pe *PipelineError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, ErrTransferFailed, pe.Kind)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(NewError(ErrStreamUnavailable, "resolve", nil))
	assert.True(t, ok)
	assert.Equal(t, ErrStreamUnavailable, kind)

	kind, ok = KindOf(fmt.Errorf("wrapped: %w", ErrCancelled))
	assert.True(t, ok)
	assert.Equal(t, ErrCancelled, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Classify(nil, ErrTransferFailed, "op"))
	})

	t.Run("classified error keeps its kind", func(t *testing.T) {
		orig := NewError(ErrTransferCorrupted, "verify", nil)
		err := Classify(fmt.Errorf("outer: %w", orig), ErrTransferFailed, "assemble")
		kind, _ := KindOf(err)
		assert.Equal(t, ErrTransferCorrupted, kind)
	})

	t.Run("bare kind gets an op", func(t *testing.T) {
		err := Classify(ErrResourceUnavailable, ErrTransferFailed, "resolve")
		assert.True(t, errors.Is(err, ErrResourceUnavailable))
	})

	t.Run("context cancellation", func(t *testing.T) {
		err := Classify(fmt.Errorf("read: %w", context.Canceled), ErrTransferFailed, "transfer")
		assert.True(t, errors.Is(err, ErrCancelled))
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("unknown takes fallback", func(t *testing.T) {
		err := Classify(errors.New("exit status 1"), ErrTranscodeFailed, "transcode")
		assert.True(t, errors.Is(err, ErrTranscodeFailed))
	})
}

func TestErrorKind_Messages(t *testing.T) {
	kinds := []ErrorKind{
		ErrResourceUnavailable, ErrStreamUnavailable, ErrTransferCorrupted,
		ErrTransferFailed, ErrTranscodeFailed, ErrCancelled,
	}

	seen := make(map[string]bool)
	for _, k := range kinds {
		assert.True(t, ValidErrorKind(k))
		msg := k.UserMessage()
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message for %s", k)
		seen[msg] = true
	}

	assert.True(t, ErrStreamUnavailable.IsNotice())
	assert.True(t, ErrCancelled.IsNotice())
	assert.False(t, ErrTransferFailed.IsNotice())
	assert.False(t, ValidErrorKind("bogus"))
}
