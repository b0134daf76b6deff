package infrastructure

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
)

var errSinkDiscarded = errors.New("sink discarded")

// FileSink writes a transfer into a file on the local filesystem
type FileSink struct {
	path      string
	file      *os.File
	mu        sync.Mutex
	discarded bool
}

// NewFileSink creates (or truncates) the file at path
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink file: %w", err)
	}
	return &FileSink{path: path, file: file}, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return 0, errSinkDiscarded
	}
	if s.file == nil {
		return 0, os.ErrClosed
	}
	return s.file.Write(p)
}

// Close flushes and closes the file, keeping its content
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *FileSink) closeLocked() error {
	if s.file == nil {
		return nil
	}
	file := s.file
	s.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Discard closes the file and removes it
func (s *FileSink) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return nil
	}
	s.discarded = true
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Size re-reads the persisted size from the filesystem
func (s *FileSink) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Payload reads the file back
func (s *FileSink) Payload() ([]byte, error) {
	s.mu.Lock()
	discarded := s.discarded
	s.mu.Unlock()
	if discarded {
		return nil, errSinkDiscarded
	}
	return os.ReadFile(s.path)
}

// Path returns the backing file path
func (s *FileSink) Path() string {
	return s.path
}

// MemorySink buffers a transfer in memory
type MemorySink struct {
	buf       bytes.Buffer
	mu        sync.Mutex
	discarded bool
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return 0, errSinkDiscarded
	}
	return s.buf.Write(p)
}

// Close is a no-op; the buffer is kept
func (s *MemorySink) Close() error {
	return nil
}

// Discard drops the buffered bytes
func (s *MemorySink) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	s.buf = bytes.Buffer{}
	return nil
}

// Size returns the number of buffered bytes
func (s *MemorySink) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.buf.Len()), nil
}

// Payload returns a copy of the buffered bytes
func (s *MemorySink) Payload() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return nil, errSinkDiscarded
	}
	payload := make([]byte, s.buf.Len())
	copy(payload, s.buf.Bytes())
	return payload, nil
}
