package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/queryplane/internal/infra/api"
	"github.com/vietddude/queryplane/internal/query"
)

// QueryStats reports cache and in-flight state. *query.Client implements it.
type QueryStats interface {
	Stats() query.Stats
}

// APIStats reports transport health. *api.Monitor implements it.
type APIStats interface {
	Stats() api.MonitorStats
}

// EscalationCounter reports how many escalations are stored.
type EscalationCounter interface {
	Count(ctx context.Context) (int, error)
}

// Pinger checks an external dependency such as Redis or PostgreSQL.
type Pinger interface {
	Health(ctx context.Context) error
}

// dependencyOK is recorded for a dependency whose ping succeeded.
const dependencyOK = "ok"

// Thresholds turn raw counts into a status.
type Thresholds struct {
	DegradedEscalations int
	CriticalEscalations int
	// CriticalErrorRate applies once the API has served at least 10 requests.
	CriticalErrorRate float64
}

// DefaultThresholds are used when NewMonitor gets a zero value.
var DefaultThresholds = Thresholds{
	DegradedEscalations: 10,
	CriticalEscalations: 100,
	CriticalErrorRate:   0.5,
}

// Monitor aggregates health status from the query client, the API transport,
// the escalation sink and external dependencies.
type Monitor struct {
	query        QueryStats
	api          APIStats
	escalations  EscalationCounter
	dependencies map[string]Pinger
	thresholds   Thresholds

	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport *Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. api and escalations may be nil.
func NewMonitor(q QueryStats, a APIStats, escalations EscalationCounter, thresholds Thresholds) *Monitor {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds
	}
	return &Monitor{
		query:        q,
		api:          a,
		escalations:  escalations,
		dependencies: make(map[string]Pinger),
		thresholds:   thresholds,
		cacheFor:     10 * time.Second,
	}
}

// AddDependency registers an external dependency to ping on every check.
func (m *Monitor) AddDependency(name string, p Pinger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencies[name] = p
}

// CheckHealth builds a report. Reports are reused for a few seconds so
// frequent health checks do not hammer dependencies.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := Report{
		Status:    StatusHealthy,
		Query:     m.query.Stats(),
		CheckedAt: time.Now().UTC(),
	}

	if m.api != nil {
		stats := m.api.Stats()
		report.API = &stats
		if stats.Status != api.StatusHealthy.String() {
			report.Status = worse(report.Status, StatusDegraded)
		}
		if stats.Requests >= 10 && stats.ErrorRate > m.thresholds.CriticalErrorRate {
			report.Status = worse(report.Status, StatusCritical)
		}
	}

	if m.escalations != nil {
		count, err := m.escalations.Count(ctx)
		if err != nil {
			report.Status = worse(report.Status, StatusDegraded)
		}
		report.Escalations = count
		switch {
		case count >= m.thresholds.CriticalEscalations:
			report.Status = worse(report.Status, StatusCritical)
		case count >= m.thresholds.DegradedEscalations:
			report.Status = worse(report.Status, StatusDegraded)
		}
	}

	if len(m.dependencies) > 0 {
		report.Dependencies = make(map[string]string, len(m.dependencies))
		for name, dep := range m.dependencies {
			if err := dep.Health(ctx); err != nil {
				report.Dependencies[name] = err.Error()
				report.Status = worse(report.Status, StatusDegraded)
				continue
			}
			report.Dependencies[name] = dependencyOK
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
