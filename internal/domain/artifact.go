package domain

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// RequestKind is the deliverable a caller asks for
type RequestKind string

const (
	KindVideo    RequestKind = "video"
	KindAudio    RequestKind = "audio"
	KindCaptions RequestKind = "captions"
)

// ParseRequestKind accepts the kind names plus the format aliases of the
// original form (mp4, mp3, text)
func ParseRequestKind(s string) (RequestKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video", "mp4":
		return KindVideo, nil
	case "audio", "mp3":
		return KindAudio, nil
	case "captions", "caption", "text", "txt":
		return KindCaptions, nil
	}
	return "", fmt.Errorf("invalid kind: %q", s)
}

// ValidateKind checks if a request kind is valid
func ValidateKind(kind RequestKind) bool {
	return kind == KindVideo || kind == KindAudio || kind == KindCaptions
}

// ContentType returns the fixed content type delivered for the kind
func (k RequestKind) ContentType() string {
	switch k {
	case KindVideo:
		return "video/mp4"
	case KindAudio:
		return "audio/mpeg"
	case KindCaptions:
		return "text/plain"
	}
	return "application/octet-stream"
}

// Extension returns the file extension delivered for the kind
func (k RequestKind) Extension() string {
	switch k {
	case KindVideo:
		return ".mp4"
	case KindAudio:
		return ".mp3"
	case KindCaptions:
		return ".txt"
	}
	return ".bin"
}

// Artifact is the final deliverable. It is immutable once constructed.
type Artifact struct {
	payload     []byte
	filename    string
	contentType string
}

// NewArtifact builds an artifact, refusing partially populated values
func NewArtifact(payload []byte, filename, contentType string) (*Artifact, error) {
	if filename == "" {
		return nil, fmt.Errorf("artifact filename is empty")
	}
	if contentType == "" {
		return nil, fmt.Errorf("artifact content type is empty")
	}
	if payload == nil {
		return nil, fmt.Errorf("artifact payload is missing")
	}
	return &Artifact{payload: payload, filename: filename, contentType: contentType}, nil
}

// Payload returns the artifact bytes. Callers must not modify them.
func (a *Artifact) Payload() []byte { return a.payload }

// Filename returns the suggested filename
func (a *Artifact) Filename() string { return a.filename }

// ContentType returns the content type
func (a *Artifact) ContentType() string { return a.contentType }

// Size returns the payload length
func (a *Artifact) Size() int64 { return int64(len(a.payload)) }

// WriteTo writes the payload to w
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.payload)
	return int64(n), err
}

// ArtifactFilename derives a safe filename from a title and kind.
// Falls back to fallback (usually the video id) when the title has no usable characters.
func ArtifactFilename(title, fallback string, kind RequestKind) string {
	name := sanitizeFilename(title)
	if name == "" {
		name = sanitizeFilename(fallback)
	}
	if name == "" {
		name = "download"
	}
	return name + kind.Extension()
}

// sanitizeFilename strips path separators and characters most filesystems reject
func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	name = strings.Trim(name, ".")
	const maxLen = 200
	if len(name) > maxLen {
		runes := []rune(name)
		for len(string(runes)) > maxLen {
			runes = runes[:len(runes)-1]
		}
		name = strings.TrimSpace(string(runes))
	}
	return name
}
