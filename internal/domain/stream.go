package domain

import (
	"fmt"
	"strings"
	"time"
)

// StreamKind represents the kind of a retrievable rendition
type StreamKind string

const (
	StreamVideo   StreamKind = "video"   // combined video+audio
	StreamAudio   StreamKind = "audio"   // audio only
	StreamCaption StreamKind = "caption" // timed text track
)

// StreamDescriptor describes one retrievable rendition of a resource.
// Produced by the resolver per request and never persisted.
type StreamDescriptor struct {
	Kind         StreamKind `json:"kind"`
	ExpectedSize int64      `json:"expected_size,omitempty"` // 0 when unknown
	MimeType     string     `json:"mime_type,omitempty"`
	LanguageCode string     `json:"language_code,omitempty"` // captions only
	Quality      string     `json:"quality,omitempty"`       // e.g. "720p"
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	Bitrate      int        `json:"bitrate,omitempty"`
	Ref          string     `json:"ref,omitempty"` // resolver-specific reference (itag, caption URL)
}

// SizeKnown reports whether the descriptor declares a usable size
func (d StreamDescriptor) SizeKnown() bool {
	return d.ExpectedSize > 0
}

// Extension returns the container extension suggested by the mime type
func (d StreamDescriptor) Extension() string {
	mime := d.MimeType
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	switch strings.TrimSpace(mime) {
	case "video/mp4", "audio/mp4":
		return ".mp4"
	case "video/webm", "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	case "video/3gpp":
		return ".3gp"
	default:
		return ".bin"
	}
}

// MediaInfo is what a resolver knows about a resource
type MediaInfo struct {
	ResourceID ResourceID         `json:"resource_id"`
	Title      string             `json:"title"`
	Author     string             `json:"author,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Streams    []StreamDescriptor `json:"streams"`

	// Source carries a resolver-private handle between Resolve and OpenStream
	Source any `json:"-"`
}

// LengthLabel formats the duration as "M min S sec"
func (m *MediaInfo) LengthLabel() string {
	total := int(m.Duration.Seconds())
	return fmt.Sprintf("%d min %d sec", total/60, total%60)
}

// BestVideo returns the highest-quality combined video+audio stream
func (m *MediaInfo) BestVideo() (StreamDescriptor, bool) {
	var best StreamDescriptor
	found := false
	for _, s := range m.Streams {
		if s.Kind != StreamVideo {
			continue
		}
		if !found || betterVideo(s, best) {
			best = s
			found = true
		}
	}
	return best, found
}

// BestAudio returns the audio-only stream with the highest bitrate
func (m *MediaInfo) BestAudio() (StreamDescriptor, bool) {
	var best StreamDescriptor
	found := false
	for _, s := range m.Streams {
		if s.Kind != StreamAudio {
			continue
		}
		if !found || s.Bitrate > best.Bitrate {
			best = s
			found = true
		}
	}
	return best, found
}

// Caption returns the caption track for a language code, or absent
func (m *MediaInfo) Caption(languageCode string) (StreamDescriptor, bool) {
	for _, s := range m.Streams {
		if s.Kind == StreamCaption && strings.EqualFold(s.LanguageCode, languageCode) {
			return s, true
		}
	}
	return StreamDescriptor{}, false
}

func betterVideo(candidate, current StreamDescriptor) bool {
	if candidate.Height != current.Height {
		return candidate.Height > current.Height
	}
	return candidate.Bitrate > current.Bitrate
}

// Cue is one timed caption line
type Cue struct {
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
	Text     string        `json:"text"`
}

// End returns the time the cue stops being shown
func (c Cue) End() time.Duration {
	return c.Start + c.Duration
}

// CaptionTrack is a resolved caption track
type CaptionTrack struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name,omitempty"`
	Cues         []Cue  `json:"cues"`
}
