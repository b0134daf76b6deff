package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
)

// stubFetcher returns a fixed outcome, optionally waiting for release first
type stubFetcher struct {
	mu       sync.Mutex
	artifact *domain.Artifact
	info     *domain.MediaInfo
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, req app.FetchRequest, observer app.Observer) (*domain.Artifact, *domain.MediaInfo, error) {
	f.mu.Lock()
	artifact, info, err := f.artifact, f.info, f.err
	f.mu.Unlock()

	if observer != nil {
		observer.OnState(domain.StateResolving)
		if info != nil {
			observer.OnMediaInfo(info)
		}
		observer.OnState(domain.StateTransferring)
		observer.OnProgress(domain.Progress{Transferred: 1, Total: 4})
	}
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, info, domain.NewError(domain.ErrCancelled, "fetch", ctx.Err())
		}
	}
	return artifact, info, err
}

type testServer struct {
	server  *httptest.Server
	repo    *infrastructure.SQLiteRequestRepository
	queue   *app.QueueManager
	fetcher *stubFetcher
	outDir  string
}

func setupTestServer(t *testing.T, fetcher *stubFetcher, rateLimit domain.RateLimitConfig) *testServer {
	t.Helper()
	dir := t.TempDir()

	repo, err := infrastructure.NewSQLiteRequestRepository(filepath.Join(dir, "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	outDir := filepath.Join(dir, "out")
	deliverer := infrastructure.NewFilesystemDeliverer(outDir, zap.NewNop())
	requestMgr := app.NewRequestManager(repo, fetcher, deliverer, nil, app.NewProgressFeed(),
		&domain.DownloadConfig{ConcurrentLimit: 1}, nil, zap.NewNop())
	queueMgr := app.NewQueueManager(repo, requestMgr, &domain.QueueConfig{CheckInterval: 20 * time.Millisecond}, nil)

	router := SetupRouter(Dependencies{
		QueueManager:   queueMgr,
		RequestManager: requestMgr,
		Fetcher:        fetcher,
		Logger:         zap.NewNop(),
		LogsDir:        filepath.Join(dir, "logs"),
		RateLimit:      rateLimit,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{server: server, repo: repo, queue: queueMgr, fetcher: fetcher, outDir: outDir}
}

func testInfo() *domain.MediaInfo {
	return &domain.MediaInfo{
		ResourceID: domain.NormalizeURL("https://youtu.be/abc123"),
		Title:      "Test Video",
		Duration:   200 * time.Second,
	}
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPI_Health(t *testing.T) {
	ts := setupTestServer(t, &stubFetcher{}, domain.RateLimitConfig{})

	resp, err := http.Get(ts.server.URL + "/health")
	require.NoError(t, err)
	var health map[string]interface{}
	decodeJSON(t, resp, &health)
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(ts.server.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPI_FetchReturnsArtifact(t *testing.T) {
	artifact, err := domain.NewArtifact([]byte("mp3 bytes"), "Test Video.mp3", "audio/mpeg")
	require.NoError(t, err)
	ts := setupTestServer(t, &stubFetcher{artifact: artifact, info: testInfo()}, domain.RateLimitConfig{})

	resp := postJSON(t, ts.server.URL+"/api/v1/fetch", map[string]string{
		"url":  "https://youtu.be/abc123",
		"kind": "mp3",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Test Video.mp3"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, `"Test Video"`, resp.Header.Get("X-Media-Title"))
	assert.Equal(t, "3 min 20 sec", resp.Header.Get("X-Media-Duration"))

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "mp3 bytes", body.String())
}

func TestAPI_FetchNonASCIIFilename(t *testing.T) {
	artifact, err := domain.NewArtifact([]byte("mp3 bytes"), "Café \"live\".mp3", "audio/mpeg")
	require.NoError(t, err)
	ts := setupTestServer(t, &stubFetcher{artifact: artifact, info: testInfo()}, domain.RateLimitConfig{})

	resp := postJSON(t, ts.server.URL+"/api/v1/fetch", map[string]string{
		"url":  "https://youtu.be/abc123",
		"kind": "mp3",
	})
	defer resp.Body.Close()

	header := resp.Header.Get("Content-Disposition")
	assert.Contains(t, header, "filename*=utf-8''")
	disposition, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "Café \"live\".mp3", params["filename"])
}

func TestAPI_FetchErrorStatus(t *testing.T) {
	cases := map[domain.ErrorKind]int{
		domain.ErrStreamUnavailable:   http.StatusNotFound,
		domain.ErrResourceUnavailable: http.StatusUnprocessableEntity,
		domain.ErrTransferFailed:      http.StatusBadGateway,
		domain.ErrTransferCorrupted:   http.StatusBadGateway,
		domain.ErrTranscodeFailed:     http.StatusBadGateway,
		domain.ErrCancelled:           499,
	}
	for kind, status := range cases {
		t.Run(string(kind), func(t *testing.T) {
			fetcher := &stubFetcher{err: domain.NewError(kind, "fetch", errors.New("boom"))}
			ts := setupTestServer(t, fetcher, domain.RateLimitConfig{})

			resp := postJSON(t, ts.server.URL+"/api/v1/fetch", map[string]string{
				"url":  "https://youtu.be/abc123",
				"kind": "video",
			})
			assert.Equal(t, status, resp.StatusCode)

			var body map[string]string
			decodeJSON(t, resp, &body)
			assert.Equal(t, string(kind), body["kind"])
			assert.Equal(t, kind.UserMessage(), body["message"])
		})
	}
}

func TestAPI_FetchBadInput(t *testing.T) {
	ts := setupTestServer(t, &stubFetcher{}, domain.RateLimitConfig{})

	resp := postJSON(t, ts.server.URL+"/api/v1/fetch", map[string]string{"kind": "video"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.server.URL+"/api/v1/fetch", map[string]string{"url": "https://youtu.be/abc123", "kind": "gif"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_FetchRateLimited(t *testing.T) {
	artifact, _ := domain.NewArtifact([]byte("x"), "x.mp4", "video/mp4")
	ts := setupTestServer(t, &stubFetcher{artifact: artifact}, domain.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1})

	payload := map[string]string{"url": "https://youtu.be/abc123", "kind": "video"}
	resp := postJSON(t, ts.server.URL+"/api/v1/fetch", payload)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.server.URL+"/api/v1/fetch", payload)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// queue endpoints are not limited
	resp, err := http.Get(ts.server.URL + "/api/v1/requests")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequestLifecycle(t *testing.T) {
	ts := setupTestServer(t, &stubFetcher{}, domain.RateLimitConfig{})
	base := ts.server.URL + "/api/v1/requests"

	resp := postJSON(t, base, map[string]string{"url": "https://youtu.be/abc123", "kind": "audio"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created domain.Request
	decodeJSON(t, resp, &created)
	assert.Equal(t, domain.StateRequested, created.State)
	assert.Equal(t, domain.ResourceID("https://www.youtube.com/watch?v=abc123"), created.ResourceID)

	// an unfinished duplicate is returned instead of queued
	resp = postJSON(t, base, map[string]string{"url": "https://www.youtube.com/watch?v=abc123", "kind": "audio"})
	var duplicate domain.Request
	decodeJSON(t, resp, &duplicate)
	assert.Equal(t, created.ID, duplicate.ID)

	resp = postJSON(t, base, map[string]string{"url": "https://example.com/a.mp4", "kind": "video"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(base + "/" + created.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// unfinished requests cannot be deleted
	req, _ := http.NewRequest(http.MethodDelete, base+"/"+created.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, base+"/"+created.ID+"/cancel", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, base+"/"+created.ID+"/cancel", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, base+"/"+created.ID+"/retry", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var retried domain.Request
	decodeJSON(t, resp, &retried)
	assert.NotEqual(t, created.ID, retried.ID)

	resp, err = http.Get(base + "?state=cancelled")
	require.NoError(t, err)
	var cancelled []domain.Request
	decodeJSON(t, resp, &cancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, created.ID, cancelled[0].ID)

	resp, err = http.Get(base + "/stats")
	require.NoError(t, err)
	var stats domain.RequestStats
	decodeJSON(t, resp, &stats)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Requested)
	assert.Equal(t, int64(1), stats.Cancelled)

	req, _ = http.NewRequest(http.MethodDelete, base+"/"+created.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Logs(t *testing.T) {
	ts := setupTestServer(t, &stubFetcher{}, domain.RateLimitConfig{})

	resp, err := http.Get(ts.server.URL + "/api/v1/logs/categories")
	require.NoError(t, err)
	var categories map[string][]string
	decodeJSON(t, resp, &categories)
	assert.Equal(t, []string{"request", "error"}, categories["categories"])

	resp, err = http.Get(ts.server.URL + "/api/v1/logs/download")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.server.URL + "/api/v1/logs/request/search")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.server.URL + "/api/v1/logs/request?date=2024-13-01")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestAPI_ProgressSnapshotForFinishedRequest(t *testing.T) {
	ts := setupTestServer(t, &stubFetcher{}, domain.RateLimitConfig{})

	req := domain.NewRequest("https://youtu.be/abc123", domain.KindVideo, "")
	req.MarkFailed(domain.NewError(domain.ErrStreamUnavailable, "select video", nil))
	require.NoError(t, ts.repo.Create(req))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.server, "/api/v1/requests/"+req.ID+"/progress"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var event app.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.True(t, event.Done)
	assert.Equal(t, domain.StateFailed, event.State)
	assert.Equal(t, domain.ErrStreamUnavailable, event.FailureKind)
}

func TestAPI_ProgressLiveRequest(t *testing.T) {
	artifact, _ := domain.NewArtifact([]byte("1234"), "Test Video.mp4", "video/mp4")
	fetcher := &stubFetcher{
		artifact: artifact,
		info:     testInfo(),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	ts := setupTestServer(t, fetcher, domain.RateLimitConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ts.queue.Start(ctx))
	defer ts.queue.Stop()

	req, err := ts.queue.AddRequest("https://youtu.be/abc123", domain.KindVideo, "")
	require.NoError(t, err)

	select {
	case <-fetcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never started")
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.server, "/api/v1/requests/"+req.ID+"/progress"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var first app.ProgressEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "Test Video", first.Title)
	assert.Equal(t, int64(4), first.Total)

	close(fetcher.release)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var last app.ProgressEvent
	for !last.Done {
		require.NoError(t, conn.ReadJSON(&last))
	}
	assert.Equal(t, domain.StateDelivered, last.State)
	assert.FileExists(t, filepath.Join(ts.outDir, "Test Video.mp4"))
}
