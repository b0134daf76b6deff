package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// commandRunner runs an external command and returns its stderr
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// FFmpegTranscoder converts downloaded media to audio with the ffmpeg binary
type FFmpegTranscoder struct {
	binary string
	run    commandRunner
	logger *zap.Logger
}

// NewFFmpegTranscoder creates a new transcoder
func NewFFmpegTranscoder(binary string, logger *zap.Logger) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegTranscoder{binary: binary, run: runCommand, logger: logger}
}

// Available checks whether the ffmpeg binary can be found
func (t *FFmpegTranscoder) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// TranscodeToAudio writes an audio-only rendition next to sourcePath and
// returns its path. The source is left in place.
func (t *FFmpegTranscoder) TranscodeToAudio(ctx context.Context, sourcePath string, format domain.AudioFormat) (string, error) {
	outputPath := audioOutputPath(sourcePath, format.Extension)
	args := ffmpegArgs(sourcePath, outputPath, format)

	command := t.binary + " " + shellescape.QuoteCommand(args)
	t.logger.Debug("Running ffmpeg", zap.String("command", command))

	stderr, err := t.run(ctx, t.binary, args...)
	if err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", domain.NewError(domain.ErrCancelled, "transcode", ctx.Err())
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		t.logger.Warn("ffmpeg failed",
			zap.String("command", command),
			zap.String("stderr", msg))
		return "", domain.NewError(domain.ErrTranscodeFailed, "transcode", fmt.Errorf("ffmpeg: %s", msg))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return "", domain.NewError(domain.ErrTranscodeFailed, "transcode", fmt.Errorf("ffmpeg produced no output"))
	}

	t.logger.Debug("Transcoded audio",
		zap.String("output", filepath.Base(outputPath)),
		zap.Int64("size", info.Size()))
	return outputPath, nil
}

func ffmpegArgs(sourcePath, outputPath string, format domain.AudioFormat) []string {
	args := []string{"-y", "-loglevel", "error", "-nostdin", "-i", sourcePath, "-vn", "-acodec", format.Codec}
	if format.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(format.SampleRate))
	}
	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}
	return append(args, outputPath)
}

func audioOutputPath(sourcePath, extension string) string {
	if extension == "" {
		extension = domain.MP3.Extension
	}
	base := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	output := base + extension
	if output == sourcePath {
		output = base + ".audio" + extension
	}
	return output
}
