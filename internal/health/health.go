// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/queryplane/internal/infra/api"
	"github.com/vietddude/queryplane/internal/query"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// worse returns the more severe of two statuses.
func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Report contains the full system health report.
type Report struct {
	Status       SystemStatus      `json:"status"`
	Query        query.Stats       `json:"query"`
	API          *api.MonitorStats `json:"api,omitempty"`
	Escalations  int               `json:"escalations"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	CheckedAt    time.Time         `json:"checked_at"`
}
