package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
)

// DefaultCapacity bounds the in-memory escalation log.
const DefaultCapacity = 1000

// EscalationRepo keeps the most recent escalations in memory.
type EscalationRepo struct {
	mu       sync.RWMutex
	items    []*domain.Escalation
	capacity int
}

// NewEscalationRepo creates a repo holding at most capacity records.
func NewEscalationRepo(capacity int) *EscalationRepo {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EscalationRepo{capacity: capacity}
}

func (r *EscalationRepo) Add(ctx context.Context, e *domain.Escalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *e
	cp.Key = append([]string(nil), e.Key...)
	r.items = append(r.items, &cp)
	if over := len(r.items) - r.capacity; over > 0 {
		r.items = r.items[over:]
	}
	return nil
}

func (r *EscalationRepo) List(ctx context.Context, limit int) ([]*domain.Escalation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Escalation, len(r.items))
	copy(out, r.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EscalationRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}

func (r *EscalationRepo) DeleteOlderThan(ctx context.Context, threshold time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0]
	for _, e := range r.items {
		if !e.OccurredAt.Before(threshold) {
			kept = append(kept, e)
		}
	}
	removed := len(r.items) - len(kept)
	clear(r.items[len(kept):])
	r.items = kept
	return removed, nil
}
