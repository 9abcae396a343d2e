// Package api is the HTTP boundary to the dashboard backend and the resource
// service built on top of the query client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
	"github.com/vietddude/queryplane/internal/query/metrics"
)

// Config configures the transport.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"`
}

// Transport issues JSON requests against the API base URL.
type Transport struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client

	Monitor *Monitor
}

// NewTransport creates a transport. A zero timeout defaults to 30s.
func NewTransport(cfg Config) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Transport{
		baseURL: base,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewMonitor(),
	}, nil
}

// Do sends a request and decodes a 2xx JSON body into out (when non-nil).
// Every failure is returned as *domain.APIError.
func (t *Transport) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	start := time.Now()

	if status := t.Monitor.CheckStatus(); status == StatusThrottled {
		return &domain.APIError{
			Status:  http.StatusTooManyRequests,
			Message: fmt.Sprintf("rate limited, retry after %v", t.Monitor.RetryAfter()),
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.APIError{Message: domain.DefaultErrorMessage, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.url(path, query), reader)
	if err != nil {
		return &domain.APIError{Message: domain.DefaultErrorMessage, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.Monitor.RecordFailure()
		metrics.HTTPRequests.WithLabelValues(method, "error").Inc()
		return &domain.APIError{Message: domain.DefaultErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	metrics.HTTPRequests.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Monitor.RecordFailure()
		return &domain.APIError{Message: domain.DefaultErrorMessage, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		t.Monitor.RecordThrottle(parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	t.Monitor.RecordResponse(time.Since(start), resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A 2xx with a body we cannot read is a server fault.
		return &domain.APIError{
			Status:  http.StatusBadGateway,
			Message: "invalid response body",
			Err:     fmt.Errorf("parse response: %w", err),
		}
	}
	return nil
}

// Get is Do without a request body.
func (t *Transport) Get(ctx context.Context, path string, query url.Values, out any) error {
	return t.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func (t *Transport) url(path string, query url.Values) string {
	u := *t.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// decodeError turns a non-2xx body into an APIError. Bodies that are not
// JSON, or carry no message, fall back to DefaultErrorMessage.
func decodeError(status int, data []byte) *domain.APIError {
	var payload struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	apiErr := &domain.APIError{Status: status, Message: domain.DefaultErrorMessage}
	if err := json.Unmarshal(data, &payload); err != nil {
		return apiErr
	}
	if payload.Message != "" {
		apiErr.Message = payload.Message
	}
	if len(payload.Errors) > 0 {
		apiErr.Fields = payload.Errors
	}
	return apiErr
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
