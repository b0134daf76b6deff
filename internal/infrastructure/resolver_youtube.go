package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// youtubeClient is the subset of *youtube.Client the resolver uses
type youtubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTubeResolver resolves YouTube resources with kkdai/youtube
type YouTubeResolver struct {
	client     youtubeClient
	httpClient *http.Client
	logger     *zap.Logger
}

// NewYouTubeResolver creates a new resolver. A zero HTTPTimeout leaves
// transfers unbounded; cancellation goes through the context.
func NewYouTubeResolver(config domain.YouTubeConfig, logger *zap.Logger) *YouTubeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: config.HTTPTimeout}
	return &YouTubeResolver{
		client:     &youtube.Client{HTTPClient: httpClient},
		httpClient: httpClient,
		logger:     logger,
	}
}

// Resolve fetches the video metadata and maps its formats to stream descriptors
func (r *YouTubeResolver) Resolve(ctx context.Context, id domain.ResourceID) (*domain.MediaInfo, error) {
	videoID := id.VideoID()
	if videoID == "" {
		return nil, domain.NewError(domain.ErrResourceUnavailable, "resolve",
			fmt.Errorf("not a recognised video link: %q", id))
	}

	video, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		if restricted(err) {
			r.logger.Info("Video is restricted", zap.String("video_id", videoID), zap.Error(err))
		}
		return nil, classifyYouTubeError(ctx, err, "resolve")
	}

	info := mediaInfoFromVideo(id, video)
	r.logger.Debug("Resolved video",
		zap.String("video_id", videoID),
		zap.String("title", info.Title),
		zap.Int("formats", len(video.Formats)),
		zap.Int("streams", len(info.Streams)))
	return info, nil
}

// OpenStream opens the byte stream of a video or audio descriptor
func (r *YouTubeResolver) OpenStream(ctx context.Context, info *domain.MediaInfo, descriptor domain.StreamDescriptor) (io.ReadCloser, int64, error) {
	video, err := r.video(ctx, info)
	if err != nil {
		return nil, 0, err
	}

	format := findFormat(video, descriptor)
	if format == nil {
		return nil, 0, domain.NewError(domain.ErrStreamUnavailable, "open stream",
			fmt.Errorf("format %s no longer offered", descriptor.Ref))
	}

	stream, size, err := r.client.GetStreamContext(ctx, video, format)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, domain.NewError(domain.ErrCancelled, "open stream", ctx.Err())
		}
		return nil, 0, domain.NewError(domain.ErrTransferFailed, "open stream", err)
	}
	return stream, size, nil
}

// Captions downloads and parses the timed-text track for a language
func (r *YouTubeResolver) Captions(ctx context.Context, info *domain.MediaInfo, languageCode string) (*domain.CaptionTrack, error) {
	video, err := r.video(ctx, info)
	if err != nil {
		return nil, err
	}

	var track *youtube.CaptionTrack
	for i := range video.CaptionTracks {
		if strings.EqualFold(video.CaptionTracks[i].LanguageCode, languageCode) {
			track = &video.CaptionTracks[i]
			break
		}
	}
	if track == nil {
		return nil, domain.NewError(domain.ErrStreamUnavailable, "captions",
			fmt.Errorf("no caption track for language %q", languageCode))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "captions", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, domain.Classify(err, domain.ErrTransferFailed, "captions")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrTransferFailed, "captions",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	cues, err := ParseTimedText(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "parse captions", err)
	}

	return &domain.CaptionTrack{
		LanguageCode: track.LanguageCode,
		Name:         track.Name.SimpleText,
		Cues:         cues,
	}, nil
}

// video returns the kkdai video carried by info, fetching it again when the
// info came from a cache and lost its handle
func (r *YouTubeResolver) video(ctx context.Context, info *domain.MediaInfo) (*youtube.Video, error) {
	if video, ok := info.Source.(*youtube.Video); ok && video != nil {
		return video, nil
	}

	videoID := info.ResourceID.VideoID()
	if videoID == "" {
		return nil, domain.NewError(domain.ErrResourceUnavailable, "open stream",
			fmt.Errorf("not a recognised video link: %q", info.ResourceID))
	}
	video, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, classifyYouTubeError(ctx, err, "open stream")
	}
	info.Source = video
	return video, nil
}

// mediaInfoFromVideo maps combined and audio-only formats plus caption tracks.
// Video-only formats are skipped: delivering them would need a mux step.
func mediaInfoFromVideo(id domain.ResourceID, video *youtube.Video) *domain.MediaInfo {
	info := &domain.MediaInfo{
		ResourceID: id,
		Title:      video.Title,
		Author:     video.Author,
		Duration:   video.Duration,
		Source:     video,
	}

	for i := range video.Formats {
		f := &video.Formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		kind := domain.StreamAudio
		if f.Width > 0 || f.Height > 0 {
			kind = domain.StreamVideo
		}
		info.Streams = append(info.Streams, domain.StreamDescriptor{
			Kind:         kind,
			ExpectedSize: f.ContentLength,
			MimeType:     f.MimeType,
			Quality:      qualityLabel(f),
			Width:        f.Width,
			Height:       f.Height,
			Bitrate:      bitrateForFormat(f),
			Ref:          strconv.Itoa(f.ItagNo),
		})
	}

	for _, track := range video.CaptionTracks {
		info.Streams = append(info.Streams, domain.StreamDescriptor{
			Kind:         domain.StreamCaption,
			MimeType:     "text/xml",
			LanguageCode: track.LanguageCode,
			Quality:      track.Kind, // "asr" for auto-generated tracks
			Ref:          track.BaseURL,
		})
	}
	return info
}

func findFormat(video *youtube.Video, descriptor domain.StreamDescriptor) *youtube.Format {
	itag, err := strconv.Atoi(descriptor.Ref)
	if err != nil {
		return nil
	}
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.ItagNo == itag && (descriptor.MimeType == "" || f.MimeType == descriptor.MimeType) {
			return f
		}
	}
	return nil
}

func qualityLabel(f *youtube.Format) string {
	if f.QualityLabel != "" {
		return f.QualityLabel
	}
	return f.Quality
}

func bitrateForFormat(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

// classifyYouTubeError maps kkdai errors onto the taxonomy. Apart from
// cancellation every resolve failure is resource_unavailable.
func classifyYouTubeError(ctx context.Context, err error, op string) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.ErrCancelled, op, err)
	}
	return domain.NewError(domain.ErrResourceUnavailable, op, err)
}

// restricted reports whether the video exists but cannot be played anonymously
func restricted(err error) bool {
	var statusErr *youtube.ErrPlayabiltyStatus
	return errors.Is(err, youtube.ErrLoginRequired) ||
		errors.Is(err, youtube.ErrVideoPrivate) ||
		errors.Is(err, youtube.ErrNotPlayableInEmbed) ||
		errors.As(err, &statusErr)
}
