package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/queryplane/internal/core/domain"
)

// EscalationRepo implements storage.EscalationRepository using PostgreSQL.
type EscalationRepo struct {
	db *DB
}

// NewEscalationRepo creates a new PostgreSQL escalation repository.
func NewEscalationRepo(db *DB) *EscalationRepo {
	return &EscalationRepo{db: db}
}

type escalationRow struct {
	ID         string         `db:"id"`
	Key        pq.StringArray `db:"key_segments"`
	Resource   string         `db:"resource"`
	Category   string         `db:"category"`
	Status     int            `db:"status"`
	Message    string         `db:"message"`
	Attempts   int            `db:"attempts"`
	OccurredAt time.Time      `db:"occurred_at"`
}

func (r escalationRow) toDomain() *domain.Escalation {
	return &domain.Escalation{
		ID:         r.ID,
		Key:        []string(r.Key),
		Resource:   r.Resource,
		Category:   domain.ErrorCategory(r.Category),
		Status:     r.Status,
		Message:    r.Message,
		Attempts:   r.Attempts,
		OccurredAt: r.OccurredAt,
	}
}

const insertEscalation = `
	INSERT INTO escalations (id, key_segments, resource, category, status, message, attempts, occurred_at)
	VALUES (:id, :key_segments, :resource, :category, :status, :message, :attempts, :occurred_at)
	ON CONFLICT (id) DO NOTHING
`

// Add records an escalation.
func (r *EscalationRepo) Add(ctx context.Context, e *domain.Escalation) error {
	row := escalationRow{
		ID:         e.ID,
		Key:        pq.StringArray(e.Key),
		Resource:   e.Resource,
		Category:   string(e.Category),
		Status:     e.Status,
		Message:    e.Message,
		Attempts:   e.Attempts,
		OccurredAt: e.OccurredAt,
	}
	if _, err := r.db.NamedExecContext(ctx, insertEscalation, row); err != nil {
		return fmt.Errorf("failed to add escalation: %w", err)
	}
	return nil
}

// List returns up to limit escalations, newest first.
func (r *EscalationRepo) List(ctx context.Context, limit int) ([]*domain.Escalation, error) {
	query := `
		SELECT id, key_segments, resource, category, status, message, attempts, occurred_at
		FROM escalations
		ORDER BY occurred_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var rows []escalationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}

	out := make([]*domain.Escalation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Count returns the number of stored escalations.
func (r *EscalationRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM escalations`); err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes escalations that occurred before threshold.
func (r *EscalationRepo) DeleteOlderThan(ctx context.Context, threshold time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM escalations WHERE occurred_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to prune escalations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
