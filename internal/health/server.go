package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Summary is the short form of a Report served on /health.
type Summary struct {
	Status      SystemStatus `json:"status"`
	Escalations int          `json:"escalations"`
	InFlight    int          `json:"in_flight"`
	Failing     []string     `json:"failing,omitempty"`
	CheckedAt   time.Time    `json:"checked_at"`
}

// Summarize reduces a report to its status, counters and failing dependencies.
func Summarize(r Report) Summary {
	s := Summary{
		Status:      r.Status,
		Escalations: r.Escalations,
		InFlight:    r.Query.InFlight,
		CheckedAt:   r.CheckedAt,
	}
	for name, state := range r.Dependencies {
		if state != dependencyOK {
			s.Failing = append(s.Failing, name)
		}
	}
	slices.Sort(s.Failing)
	return s
}

// StatusCode maps a status to the HTTP code load balancers act on. Degraded
// still serves traffic.
func StatusCode(status SystemStatus) int {
	if status == StatusCritical {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Server exposes the monitor and the prometheus registry over HTTP.
type Server struct {
	monitor *Monitor
	server  *http.Server
}

// NewServer creates a health server listening on port. Port 0 picks a free one.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleSummary)
	mux.HandleFunc("GET /health/detailed", s.handleReport)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop drains open requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	writeJSON(w, StatusCode(report.Status), Summarize(report))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	writeJSON(w, StatusCode(report.Status), report)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
