package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// Assembler turns the output of a pipeline stage into an Artifact
type Assembler struct {
	logger *zap.Logger
}

// NewAssembler creates a new assembler
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{logger: logger}
}

// FromSink reads a transferred payload back out of its sink. The read-back
// length must match the bytes the transfer wrote.
func (a *Assembler) FromSink(info *domain.MediaInfo, kind domain.RequestKind, sink domain.Sink, written int64) (*domain.Artifact, error) {
	ps, ok := sink.(domain.PayloadSink)
	if !ok {
		return nil, domain.NewError(domain.ErrTransferFailed, "assemble", fmt.Errorf("sink %T cannot be read back", sink))
	}

	payload, err := ps.Payload()
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "read payload", err)
	}
	if int64(len(payload)) != written {
		a.logger.Error("Payload length differs from bytes written",
			zap.Int("payload", len(payload)),
			zap.Int64("written", written))
		return nil, domain.NewError(domain.ErrTransferCorrupted, "read payload",
			fmt.Errorf("read %d bytes, wrote %d", len(payload), written))
	}

	return a.build(info, kind, payload)
}

// FromFile reads a finished file, e.g. transcoder output, and checks it against its stat size
func (a *Assembler) FromFile(info *domain.MediaInfo, kind domain.RequestKind, path string) (*domain.Artifact, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "stat output", err)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "read output", err)
	}
	if int64(len(payload)) != stat.Size() {
		return nil, domain.NewError(domain.ErrTransferCorrupted, "read output",
			fmt.Errorf("read %d bytes, file has %d", len(payload), stat.Size()))
	}

	return a.build(info, kind, payload)
}

// FromCaptions renders a caption track as an SRT document
func (a *Assembler) FromCaptions(info *domain.MediaInfo, track *domain.CaptionTrack) (*domain.Artifact, error) {
	if track == nil || len(track.Cues) == 0 {
		return nil, domain.NewError(domain.ErrStreamUnavailable, "assemble captions", fmt.Errorf("caption track is empty"))
	}
	return a.build(info, domain.KindCaptions, []byte(RenderSRT(track.Cues)))
}

func (a *Assembler) build(info *domain.MediaInfo, kind domain.RequestKind, payload []byte) (*domain.Artifact, error) {
	if payload == nil {
		payload = []byte{}
	}
	filename := domain.ArtifactFilename(info.Title, info.ResourceID.VideoID(), kind)

	artifact, err := domain.NewArtifact(payload, filename, kind.ContentType())
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "assemble", err)
	}

	a.logger.Debug("Artifact assembled",
		zap.String("filename", filename),
		zap.Int64("size", artifact.Size()))
	return artifact, nil
}

// RenderSRT serialises cues as SubRip text
func RenderSRT(cues []domain.Cue) string {
	var b strings.Builder
	n := 0
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, srtTimestamp(cue.Start), srtTimestamp(cue.End()), text)
	}
	return b.String()
}

// srtTimestamp formats d as HH:MM:SS,mmm
func srtTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
