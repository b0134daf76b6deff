package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/pkg/logger"
)

// apiClient talks to a running media-fetch server
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is an error response from the server
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := string(data)
		if json.Unmarshal(data, &payload) == nil {
			if payload.Message != "" {
				msg = payload.Message
			} else if payload.Error != "" {
				msg = payload.Error
			}
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *apiClient) AddRequest(rawURL, kind, language string) (*domain.Request, error) {
	payload := map[string]string{"url": rawURL, "kind": kind}
	if language != "" {
		payload["language"] = language
	}
	var req domain.Request
	if err := c.do(http.MethodPost, "/api/v1/requests", payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *apiClient) ListRequests(state, kind string) ([]*domain.Request, error) {
	query := url.Values{}
	if state != "" {
		query.Set("state", state)
	}
	if kind != "" {
		query.Set("kind", kind)
	}
	path := "/api/v1/requests"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var requests []*domain.Request
	if err := c.do(http.MethodGet, path, nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *apiClient) GetRequest(id string) (*domain.Request, error) {
	var req domain.Request
	if err := c.do(http.MethodGet, "/api/v1/requests/"+url.PathEscape(id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *apiClient) CancelRequest(id string) error {
	return c.do(http.MethodPost, "/api/v1/requests/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *apiClient) RetryRequest(id string) (*domain.Request, error) {
	var req domain.Request
	if err := c.do(http.MethodPost, "/api/v1/requests/"+url.PathEscape(id)+"/retry", nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *apiClient) Stats() (*domain.RequestStats, error) {
	var stats domain.RequestStats
	if err := c.do(http.MethodGet, "/api/v1/requests/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Logs reads a log category, searching when query is set
func (c *apiClient) Logs(category, date, query string, limit int) ([]logger.LogEntry, error) {
	values := url.Values{}
	if date != "" {
		values.Set("date", date)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/logs/" + url.PathEscape(category)
	if query != "" {
		values.Set("q", query)
		path += "/search"
	}
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var result struct {
		Entries []logger.LogEntry `json:"entries"`
	}
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}
