package storage

import (
	"context"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
)

// EscalationRepository stores failures escalated by the query client.
type EscalationRepository interface {
	// Add records an escalation
	Add(ctx context.Context, e *domain.Escalation) error

	// List returns up to limit escalations, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*domain.Escalation, error)

	// Count returns the number of stored escalations
	Count(ctx context.Context) (int, error)

	// DeleteOlderThan removes escalations that occurred before threshold
	DeleteOlderThan(ctx context.Context, threshold time.Time) (int, error)
}
