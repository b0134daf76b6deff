package domain

import (
	"context"
	"io"
	"time"
)

// StreamResolver turns a ResourceID into stream metadata and byte streams
type StreamResolver interface {
	// Resolve returns title, duration and the ordered stream list.
	// Fails with ErrResourceUnavailable when the id is not retrievable.
	Resolve(ctx context.Context, id ResourceID) (*MediaInfo, error)

	// OpenStream opens the byte stream of a descriptor. The returned size is
	// the size the remote end announced, 0 when unknown.
	OpenStream(ctx context.Context, info *MediaInfo, descriptor StreamDescriptor) (io.ReadCloser, int64, error)

	// Captions fetches the caption track for a language code.
	// Fails with ErrStreamUnavailable when no track exists.
	Captions(ctx context.Context, info *MediaInfo, languageCode string) (*CaptionTrack, error)
}

// AudioFormat is a target lossy audio format
type AudioFormat struct {
	Codec      string `mapstructure:"codec"`       // ffmpeg encoder, e.g. libmp3lame
	Extension  string `mapstructure:"extension"`   // e.g. .mp3
	Bitrate    string `mapstructure:"bitrate"`     // e.g. 192k
	SampleRate int    `mapstructure:"sample_rate"` // e.g. 44100
}

// MP3 is the format delivered for audio requests
var MP3 = AudioFormat{Codec: "libmp3lame", Extension: ".mp3", Bitrate: "192k", SampleRate: 44100}

// Transcoder converts a downloaded audio container into a target format
type Transcoder interface {
	// TranscodeToAudio writes the converted file next to sourcePath and returns
	// its path. Fails with ErrTranscodeFailed carrying the underlying cause.
	TranscodeToAudio(ctx context.Context, sourcePath string, format AudioFormat) (string, error)
}

// Deliverer hands a finished artifact to its destination
type Deliverer interface {
	// Deliver stores the artifact and returns where it went
	Deliver(ctx context.Context, artifact *Artifact) (string, error)
}

// MetadataCache stores resolved media summaries between requests
type MetadataCache interface {
	Get(ctx context.Context, videoID string) (*MediaInfo, bool, error)
	Set(ctx context.Context, videoID string, info *MediaInfo, ttl time.Duration) error
}

// RequestRepository defines the interface for request persistence
type RequestRepository interface {
	// Create creates a new request
	Create(request *Request) error

	// Update updates an existing request
	Update(request *Request) error

	// Delete deletes a request by ID
	Delete(id string) error

	// FindByID finds a request by ID
	FindByID(id string) (*Request, error)

	// FindOpen finds an unfinished request for the same resource and kind
	FindOpen(resourceID ResourceID, kind RequestKind) (*Request, error)

	// FindPending finds requests waiting for a worker, oldest first
	FindPending() ([]*Request, error)

	// FindAll finds requests with optional filters, newest first
	FindAll(filters map[string]interface{}) ([]*Request, error)

	// ResetOrphaned fails requests left in an active state by a previous process
	ResetOrphaned() (int64, error)

	// GetStats returns request statistics
	GetStats() (*RequestStats, error)
}

// RequestStats represents request statistics
type RequestStats struct {
	Total      int64 `json:"total"`
	Requested  int64 `json:"requested"`
	Active     int64 `json:"active"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	BytesTotal int64 `json:"bytes_total"`
}
