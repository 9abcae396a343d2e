package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
)

func escalation(id string, at time.Time) *domain.Escalation {
	return &domain.Escalation{
		ID:         id,
		Key:        []string{"users", "list"},
		Resource:   "users",
		Category:   domain.CategoryServer,
		Status:     500,
		OccurredAt: at,
	}
}

func TestEscalationRepo_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewEscalationRepo(10)
	base := time.Unix(1_700_000_000, 0)

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Add(ctx, escalation(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("expected [c b], got %v", ids(got))
	}
}

func TestEscalationRepo_Capacity(t *testing.T) {
	ctx := context.Background()
	repo := NewEscalationRepo(2)
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		_ = repo.Add(ctx, escalation(id, now))
	}

	if n, _ := repo.Count(ctx); n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
	all, _ := repo.List(ctx, 0)
	for _, e := range all {
		if e.ID == "a" {
			t.Error("expected the oldest record to be dropped")
		}
	}
}

func TestEscalationRepo_AddCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewEscalationRepo(0)

	e := escalation("a", time.Now())
	_ = repo.Add(ctx, e)
	e.Key[0] = "mutated"

	all, _ := repo.List(ctx, 0)
	if all[0].Key[0] != "users" {
		t.Errorf("stored record shares memory with the caller: %v", all[0].Key)
	}
}

func TestEscalationRepo_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewEscalationRepo(0)
	base := time.Unix(1_700_000_000, 0)

	_ = repo.Add(ctx, escalation("old", base))
	_ = repo.Add(ctx, escalation("new", base.Add(time.Hour)))

	removed, err := repo.DeleteOlderThan(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	all, _ := repo.List(ctx, 0)
	if len(all) != 1 || all[0].ID != "new" {
		t.Errorf("expected [new], got %v", ids(all))
	}
}

func ids(es []*domain.Escalation) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}
