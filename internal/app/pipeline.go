package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
)

// FetchRequest is a single retrieval asked of the pipeline
type FetchRequest struct {
	URL      string
	Kind     domain.RequestKind
	Language string // caption language, empty for the configured default
}

// Observer receives pipeline events on the request's goroutine
type Observer interface {
	domain.ProgressSink
	OnState(state domain.RequestState)
	OnMediaInfo(info *domain.MediaInfo)
}

// ObserverFuncs adapts optional callbacks to Observer
type ObserverFuncs struct {
	State     func(domain.RequestState)
	MediaInfo func(*domain.MediaInfo)
	Progress  func(domain.Progress)
}

func (o ObserverFuncs) OnState(state domain.RequestState) {
	if o.State != nil {
		o.State(state)
	}
}

func (o ObserverFuncs) OnMediaInfo(info *domain.MediaInfo) {
	if o.MediaInfo != nil {
		o.MediaInfo(info)
	}
}

func (o ObserverFuncs) OnProgress(p domain.Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Fetcher runs one request to an artifact
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest, observer Observer) (*domain.Artifact, *domain.MediaInfo, error)
}

// PipelineConfig contains the knobs the pipeline reads from configuration
type PipelineConfig struct {
	TempDir         string
	SinkMode        string
	CaptionLanguage string
	AudioFormat     domain.AudioFormat
}

// Pipeline drives a request through resolve, transfer, transcode or caption
// extraction, and assembly. Every request gets its own work directory which
// is removed before Fetch returns.
type Pipeline struct {
	resolver   domain.StreamResolver
	transcoder domain.Transcoder
	engine     *TransferEngine
	assembler  *Assembler
	config     PipelineConfig
	logger     *zap.Logger

	// openSink creates the sink a stream is transferred into
	openSink func(path, mode string) (domain.Sink, error)
}

// NewPipeline creates a new pipeline
func NewPipeline(
	resolver domain.StreamResolver,
	transcoder domain.Transcoder,
	engine *TransferEngine,
	assembler *Assembler,
	config PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CaptionLanguage == "" {
		config.CaptionLanguage = "en"
	}
	if config.AudioFormat.Codec == "" {
		config.AudioFormat = domain.MP3
	}
	p := &Pipeline{
		resolver:   resolver,
		transcoder: transcoder,
		engine:     engine,
		assembler:  assembler,
		config:     config,
		logger:     logger,
	}
	p.openSink = p.newSink
	return p
}

// Fetch runs the request and returns exactly one of an artifact or an error
// carrying a domain.ErrorKind. The media info is returned whenever resolution
// succeeded, also on failure.
func (p *Pipeline) Fetch(ctx context.Context, req FetchRequest, observer Observer) (*domain.Artifact, *domain.MediaInfo, error) {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	if !domain.ValidateKind(req.Kind) {
		return nil, nil, domain.NewError(domain.ErrStreamUnavailable, "fetch", fmt.Errorf("unsupported kind %q", req.Kind))
	}

	id := domain.NormalizeURL(req.URL)
	log := p.logger.With(
		zap.String("resource", id.String()),
		zap.String("kind", string(req.Kind)))

	workDir, err := p.makeWorkDir()
	if err != nil {
		return nil, nil, domain.NewError(domain.ErrTransferFailed, "create work dir", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("Failed to remove work dir", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	observer.OnState(domain.StateResolving)
	info, err := p.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, nil, domain.Classify(err, domain.ErrResourceUnavailable, "resolve")
	}
	observer.OnMediaInfo(info)

	log.Info("Resolved media",
		zap.String("title", info.Title),
		zap.String("length", info.LengthLabel()),
		zap.Int("streams", len(info.Streams)))

	var artifact *domain.Artifact
	switch req.Kind {
	case domain.KindVideo:
		artifact, err = p.fetchVideo(ctx, info, workDir, observer)
	case domain.KindAudio:
		artifact, err = p.fetchAudio(ctx, info, workDir, observer)
	case domain.KindCaptions:
		artifact, err = p.fetchCaptions(ctx, info, req.Language, observer)
	}
	if err != nil {
		err = domain.Classify(err, domain.ErrTransferFailed, "fetch")
		log.Info("Request ended without artifact", zap.Error(err))
		return nil, info, err
	}

	log.Info("Artifact ready",
		zap.String("filename", artifact.Filename()),
		zap.Int64("size", artifact.Size()))
	return artifact, info, nil
}

func (p *Pipeline) fetchVideo(ctx context.Context, info *domain.MediaInfo, workDir string, observer Observer) (*domain.Artifact, error) {
	desc, ok := info.BestVideo()
	if !ok {
		return nil, domain.NewError(domain.ErrStreamUnavailable, "select video", nil)
	}

	sink, err := p.openSink(filepath.Join(workDir, "source"+desc.Extension()), p.config.SinkMode)
	if err != nil {
		return nil, err
	}

	observer.OnState(domain.StateTransferring)
	task := domain.NewTransferTask(info, desc, sink)
	result, err := p.engine.Transfer(ctx, task, observer)
	if err != nil {
		return nil, err
	}

	observer.OnState(domain.StateAssembling)
	return p.assembler.FromSink(info, domain.KindVideo, sink, result.BytesWritten)
}

func (p *Pipeline) fetchAudio(ctx context.Context, info *domain.MediaInfo, workDir string, observer Observer) (*domain.Artifact, error) {
	desc, ok := info.BestAudio()
	if !ok {
		return nil, domain.NewError(domain.ErrStreamUnavailable, "select audio", nil)
	}

	// the transcoder reads from a path, so audio always lands on disk
	sink, err := p.openSink(filepath.Join(workDir, "source"+desc.Extension()), domain.SinkModeFile)
	if err != nil {
		return nil, err
	}
	sourcePath := sink.(domain.PathSink).Path()

	observer.OnState(domain.StateTransferring)
	task := domain.NewTransferTask(info, desc, sink)
	if _, err := p.engine.Transfer(ctx, task, observer); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		os.Remove(sourcePath)
		return nil, domain.NewError(domain.ErrCancelled, "transcode", err)
	}

	observer.OnState(domain.StateTranscoding)
	output, err := p.transcoder.TranscodeToAudio(ctx, sourcePath, p.config.AudioFormat)
	os.Remove(sourcePath)
	if err != nil {
		if output != "" {
			os.Remove(output)
		}
		return nil, domain.Classify(err, domain.ErrTranscodeFailed, "transcode")
	}

	observer.OnState(domain.StateAssembling)
	artifact, err := p.assembler.FromFile(info, domain.KindAudio, output)
	os.Remove(output)
	return artifact, err
}

func (p *Pipeline) fetchCaptions(ctx context.Context, info *domain.MediaInfo, language string, observer Observer) (*domain.Artifact, error) {
	if language == "" {
		language = p.config.CaptionLanguage
	}

	observer.OnState(domain.StateCaptionExtracting)
	if _, ok := info.Caption(language); !ok {
		return nil, domain.NewError(domain.ErrStreamUnavailable, "select captions",
			fmt.Errorf("no caption track for language %q", language))
	}

	track, err := p.resolver.Captions(ctx, info, language)
	if err != nil {
		return nil, domain.Classify(err, domain.ErrTransferFailed, "fetch captions")
	}

	observer.OnState(domain.StateAssembling)
	return p.assembler.FromCaptions(info, track)
}

func (p *Pipeline) makeWorkDir() (string, error) {
	base := p.config.TempDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(base, "req-*")
}

func (p *Pipeline) newSink(path, mode string) (domain.Sink, error) {
	if mode == domain.SinkModeMemory {
		return infrastructure.NewMemorySink(), nil
	}
	sink, err := infrastructure.NewFileSink(path)
	if err != nil {
		return nil, domain.NewError(domain.ErrTransferFailed, "create sink", err)
	}
	return sink, nil
}
