package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// failingReader yields data and then fails with err once failAt bytes were read
type failingReader struct {
	data   []byte
	pos    int
	failAt int
	err    error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.failAt >= 0 && r.pos >= r.failAt {
		return 0, r.err
	}
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := len(r.data)
	if r.failAt >= 0 && r.failAt < end {
		end = r.failAt
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

type trackingCloser struct {
	io.Reader
	closed *bool
}

func (c trackingCloser) Close() error {
	*c.closed = true
	return nil
}

// fakeResolver implements domain.StreamResolver for testing
type fakeResolver struct {
	info        *domain.MediaInfo
	resolveErr  error
	payload     []byte
	announced   int64
	openErr     error
	failAt      int
	readErr     error
	captions    *domain.CaptionTrack
	captionsErr error
	closed      bool
}

func newFakeResolver(info *domain.MediaInfo, payload []byte) *fakeResolver {
	return &fakeResolver{info: info, payload: payload, failAt: -1}
}

func (f *fakeResolver) Resolve(ctx context.Context, id domain.ResourceID) (*domain.MediaInfo, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.info, nil
}

func (f *fakeResolver) OpenStream(ctx context.Context, info *domain.MediaInfo, d domain.StreamDescriptor) (io.ReadCloser, int64, error) {
	if f.openErr != nil {
		return nil, 0, f.openErr
	}
	reader := &failingReader{data: f.payload, failAt: f.failAt, err: f.readErr}
	return trackingCloser{Reader: reader, closed: &f.closed}, f.announced, nil
}

func (f *fakeResolver) Captions(ctx context.Context, info *domain.MediaInfo, lang string) (*domain.CaptionTrack, error) {
	if f.captionsErr != nil {
		return nil, f.captionsErr
	}
	if f.captions == nil {
		return nil, domain.NewError(domain.ErrStreamUnavailable, "captions", nil)
	}
	return f.captions, nil
}

// fakeTranscoder writes output next to the source, or fails
type fakeTranscoder struct {
	output []byte
	err    error
	source string
}

func (f *fakeTranscoder) TranscodeToAudio(ctx context.Context, sourcePath string, format domain.AudioFormat) (string, error) {
	f.source = sourcePath
	if f.err != nil {
		return "", domain.NewError(domain.ErrTranscodeFailed, "ffmpeg", f.err)
	}
	out := strings.TrimSuffix(sourcePath, ".mp4") + format.Extension
	if err := os.WriteFile(out, f.output, 0644); err != nil {
		return "", err
	}
	return out, nil
}

// fakeDeliverer records delivered artifacts
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []*domain.Artifact
	err       error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, artifact *domain.Artifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.delivered = append(f.delivered, artifact)
	return "/out/" + artifact.Filename(), nil
}

// fakeFetcher returns a fixed outcome, or blocks until cancelled when block is set
type fakeFetcher struct {
	artifact *domain.Artifact
	info     *domain.MediaInfo
	err      error
	block    bool
	started  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest, observer Observer) (*domain.Artifact, *domain.MediaInfo, error) {
	observer.OnState(domain.StateResolving)
	if f.info != nil {
		observer.OnMediaInfo(f.info)
	}
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return nil, f.info, domain.NewError(domain.ErrCancelled, "transfer", ctx.Err())
	}
	observer.OnState(domain.StateTransferring)
	observer.OnProgress(domain.Progress{Transferred: 5, Total: 5})
	return f.artifact, f.info, f.err
}

// mockRequestRepo implements domain.RequestRepository for testing
type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.Request
	order    []string
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*domain.Request)}
}

func (m *mockRequestRepo) Create(req *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	m.requests[req.ID] = &copied
	m.order = append(m.order, req.ID)
	return nil
}

func (m *mockRequestRepo) Update(req *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

func (m *mockRequestRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return errors.New("not found")
	}
	delete(m.requests, id)
	return nil
}

func (m *mockRequestRepo) FindByID(id string) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (m *mockRequestRepo) FindOpen(resourceID domain.ResourceID, kind domain.RequestKind) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		r, ok := m.requests[id]
		if ok && r.ResourceID == resourceID && r.Kind == kind && !r.IsTerminal() {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) FindPending() ([]*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Request
	for _, id := range m.order {
		if r, ok := m.requests[id]; ok && r.IsPending() {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) FindAll(filters map[string]interface{}) ([]*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Request
	for _, r := range m.requests {
		if state, ok := filters["state"]; ok && string(r.State) != state {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRequestRepo) ResetOrphaned() (int64, error) {
	return 0, nil
}

func (m *mockRequestRepo) GetStats() (*domain.RequestStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.RequestStats{Total: int64(len(m.requests))}
	for _, r := range m.requests {
		switch {
		case r.State == domain.StateRequested:
			stats.Requested++
		case r.State == domain.StateDelivered:
			stats.Delivered++
			stats.BytesTotal += r.SizeBytes
		case r.State == domain.StateFailed:
			stats.Failed++
		case r.State == domain.StateCancelled:
			stats.Cancelled++
		case r.IsActive():
			stats.Active++
		}
	}
	return stats, nil
}

func (m *mockRequestRepo) get(id string) *domain.Request {
	r, _ := m.FindByID(id)
	return r
}

func testVideoInfo() *domain.MediaInfo {
	return &domain.MediaInfo{
		ResourceID: domain.NormalizeURL("https://youtu.be/abc123"),
		Title:      "Test Video",
		Duration:   200 * time.Second,
		Streams: []domain.StreamDescriptor{
			{Kind: domain.StreamVideo, MimeType: "video/mp4", Height: 360, Bitrate: 500},
			{Kind: domain.StreamVideo, MimeType: "video/mp4", Height: 720, Bitrate: 1500},
			{Kind: domain.StreamAudio, MimeType: "audio/mp4", Bitrate: 128000},
			{Kind: domain.StreamCaption, LanguageCode: "en"},
		},
	}
}
