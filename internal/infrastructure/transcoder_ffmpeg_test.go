package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// fakeFFmpeg writes content to the last argument, like ffmpeg writes its output
func fakeFFmpeg(content string, stderr string, err error, calls *[]recordedCommand) commandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCommand{name: name, args: args})
		out := args[len(args)-1]
		if content != "" || err != nil {
			os.WriteFile(out, []byte(content), 0644)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []byte(stderr), err
	}
}

func TestFFmpegTranscoder_Success(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(source, []byte("video"), 0644))

	var calls []recordedCommand
	tr := NewFFmpegTranscoder("", zap.NewNop())
	tr.run = fakeFFmpeg("mp3 bytes", "", nil, &calls)

	out, err := tr.TranscodeToAudio(context.Background(), source, domain.MP3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "source.mp3"), out)
	assert.FileExists(t, source)

	require.Len(t, calls, 1)
	assert.Equal(t, "ffmpeg", calls[0].name)
	assert.Equal(t, []string{
		"-y", "-loglevel", "error", "-nostdin", "-i", source, "-vn",
		"-acodec", "libmp3lame", "-ar", "44100", "-b:a", "192k", out,
	}, calls[0].args)
}

func TestFFmpegTranscoder_FailureRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.webm")

	var calls []recordedCommand
	tr := NewFFmpegTranscoder("ffmpeg", nil)
	tr.run = fakeFFmpeg("partial", "Invalid data found when processing input\n", errors.New("exit status 1"), &calls)

	_, err := tr.TranscodeToAudio(context.Background(), source, domain.MP3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTranscodeFailed))
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.NoFileExists(t, filepath.Join(dir, "source.mp3"))
}

func TestFFmpegTranscoder_FailureLogsCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "my source.webm")

	core, logs := observer.New(zap.WarnLevel)
	var calls []recordedCommand
	tr := NewFFmpegTranscoder("ffmpeg", zap.New(core))
	tr.run = fakeFFmpeg("", "Conversion failed!\n", errors.New("exit status 1"), &calls)

	_, err := tr.TranscodeToAudio(context.Background(), source, domain.MP3)
	require.Error(t, err)

	entries := logs.FilterMessage("ffmpeg failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields["command"], "ffmpeg -y -loglevel error")
	assert.Contains(t, fields["command"], "'"+source+"'")
	assert.Equal(t, "Conversion failed!", fields["stderr"])
}

func TestFFmpegTranscoder_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.mp4")

	var calls []recordedCommand
	tr := NewFFmpegTranscoder("ffmpeg", nil)
	tr.run = fakeFFmpeg("", "", nil, &calls)

	_, err := tr.TranscodeToAudio(context.Background(), source, domain.MP3)
	assert.True(t, errors.Is(err, domain.ErrTranscodeFailed))
}

func TestFFmpegTranscoder_Cancelled(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []recordedCommand
	tr := NewFFmpegTranscoder("ffmpeg", nil)
	tr.run = fakeFFmpeg("", "", errors.New("signal: killed"), &calls)

	_, err := tr.TranscodeToAudio(ctx, source, domain.MP3)
	assert.True(t, errors.Is(err, domain.ErrCancelled))
	assert.NoFileExists(t, filepath.Join(dir, "source.mp3"))
}

func TestAudioOutputPath(t *testing.T) {
	assert.Equal(t, "/w/a.mp3", audioOutputPath("/w/a.mp4", ".mp3"))
	assert.Equal(t, "/w/a.audio.mp3", audioOutputPath("/w/a.mp3", ".mp3"))
	assert.Equal(t, "/w/a.mp3", audioOutputPath("/w/a", ""))
}
