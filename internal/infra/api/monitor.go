package api

import (
	"sync"
	"time"
)

// Status is the health of the API as seen from this client.
type Status int

const (
	StatusHealthy   Status = iota // responses are fast and mostly successful
	StatusDegraded                // slow or failing often
	StatusThrottled               // the server asked us to back off
)

func (s Status) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	default:
		return "healthy"
	}
}

// MonitorStats is a snapshot of the monitor.
type MonitorStats struct {
	Status         string        `json:"status"`
	AverageLatency time.Duration `json:"average_latency"`
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
	ServerErrors   int           `json:"server_errors"`
	Throttled      int           `json:"throttled"`
	ErrorRate      float64       `json:"error_rate"`
}

// Monitor tracks latency, failures and rate limiting for the API.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	// outcomes of the most recent requests, true for failures
	recentOutcomes []bool
	maxOutcomes    int

	requests     int
	failures     int
	serverErrors int
	throttled    int

	lastThrottle time.Time
	retryAfter   time.Duration

	slowResponseThreshold time.Duration
	degradedThreshold     float64

	now func() time.Time
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		recentOutcomes:        make([]bool, 0, 50),
		maxOutcomes:           50,
		slowResponseThreshold: 3 * time.Second,
		degradedThreshold:     0.3,
		now:                   time.Now,
	}
}

// RecordResponse records a request that got an HTTP response.
func (m *Monitor) RecordResponse(latency time.Duration, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}

	failed := status >= 500
	if failed {
		m.failures++
		m.serverErrors++
	}
	m.pushOutcome(failed)
}

// RecordFailure records a request that never got a response.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.failures++
	m.pushOutcome(true)
}

// RecordThrottle records a 429. A zero retryAfter defaults to one minute.
func (m *Monitor) RecordThrottle(retryAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	m.throttled++
	m.lastThrottle = m.now()
	m.retryAfter = retryAfter
}

// CheckStatus returns the current status.
func (m *Monitor) CheckStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

// RetryAfter returns the time left before requests are allowed again.
func (m *Monitor) RetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.retryAfter > 0 {
		if remaining := m.retryAfter - m.now().Sub(m.lastThrottle); remaining > 0 {
			return remaining
		}
	}
	return 0
}

// Stats returns the current statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitorStats{
		Status:         m.statusLocked().String(),
		AverageLatency: m.averageLatencyLocked(),
		Requests:       m.requests,
		Failures:       m.failures,
		ServerErrors:   m.serverErrors,
		Throttled:      m.throttled,
	}
	if m.requests > 0 {
		stats.ErrorRate = float64(m.failures) / float64(m.requests)
	}
	return stats
}

func (m *Monitor) statusLocked() Status {
	if m.retryAfter > 0 && m.now().Sub(m.lastThrottle) < m.retryAfter {
		return StatusThrottled
	}

	if len(m.recentLatencies) > 10 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}

	if len(m.recentOutcomes) >= 10 {
		failed := 0
		for _, f := range m.recentOutcomes {
			if f {
				failed++
			}
		}
		if float64(failed)/float64(len(m.recentOutcomes)) > m.degradedThreshold {
			return StatusDegraded
		}
	}

	return StatusHealthy
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

func (m *Monitor) pushOutcome(failed bool) {
	m.recentOutcomes = append(m.recentOutcomes, failed)
	if len(m.recentOutcomes) > m.maxOutcomes {
		m.recentOutcomes = m.recentOutcomes[1:]
	}
}
