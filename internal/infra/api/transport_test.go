package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc) *Transport {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tr, err := NewTransport(Config{BaseURL: server.URL + "/api", Timeout: 5 * time.Second, Token: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func TestTransport_DoSendsJSON(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/team/invitations" {
			t.Errorf("expected path /api/team/invitations, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", auth)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(domain.Invitation{ID: "inv-1", Email: body["email"]})
	})

	var out domain.Invitation
	err := tr.Do(context.Background(), http.MethodPost, "/team/invitations", nil,
		map[string]string{"email": "a@example.com"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "inv-1" || out.Email != "a@example.com" {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestTransport_ErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		fields  int
	}{
		{"json message", 404, `{"message":"User not found"}`, "User not found", 0},
		{"field errors", 400, `{"message":"Invalid","errors":{"email":["taken"]}}`, "Invalid", 1},
		{"html body", 502, `<html>Bad gateway</html>`, domain.DefaultErrorMessage, 0},
		{"empty body", 500, ``, domain.DefaultErrorMessage, 0},
		{"json without message", 503, `{"code":7}`, domain.DefaultErrorMessage, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := tr.Get(context.Background(), "/users", nil, nil)
			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, apiErr.Message)
			}
			if len(apiErr.Fields) != tt.fields {
				t.Errorf("expected %d field errors, got %v", tt.fields, apiErr.Fields)
			}
		})
	}
}

func TestTransport_NetworkFailureHasNoStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	tr, err := NewTransport(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = tr.Get(context.Background(), "/users", nil, nil)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.HasStatus() {
		t.Errorf("expected no status, got %d", apiErr.Status)
	}
	if apiErr.Err == nil {
		t.Error("expected the transport error to be wrapped")
	}
}

func TestTransport_ThrottleShortCircuits(t *testing.T) {
	var calls atomic.Int32
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_ = tr.Get(context.Background(), "/users", nil, nil)
	if tr.Monitor.CheckStatus() != StatusThrottled {
		t.Fatalf("expected throttled status, got %s", tr.Monitor.CheckStatus())
	}

	err := tr.Get(context.Background(), "/users", nil, nil)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("expected local 429, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected the second request to stay local, server saw %d", calls.Load())
	}
}

func TestNewTransport_RejectsRelativeURL(t *testing.T) {
	for _, base := range []string{"", "/api", "localhost"} {
		if _, err := NewTransport(Config{BaseURL: base}); err == nil {
			t.Errorf("expected error for base url %q", base)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("30"); d != 30*time.Second {
		t.Errorf("expected 30s, got %v", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}
