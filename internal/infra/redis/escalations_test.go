package redis

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/queryplane/internal/core/domain"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*EscalationRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient(Config{URL: "redis://" + mr.Addr(), Prefix: "test"})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewEscalationRepo(client, ttl), mr
}

func escalation(id string, at time.Time) *domain.Escalation {
	return &domain.Escalation{
		ID:         id,
		Key:        []string{"users", "list"},
		Resource:   "users",
		Category:   domain.CategoryServer,
		Status:     500,
		Message:    "boom",
		Attempts:   3,
		OccurredAt: at,
	}
}

func ids(es []*domain.Escalation) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestEscalationRepo_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, 0)
	base := time.Unix(1_700_000_000, 0).UTC()

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Add(ctx, escalation(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{1, []string{"c"}},
		{2, []string{"c", "b"}},
		{0, []string{"c", "b", "a"}},
		{10, []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		got, err := repo.List(ctx, tt.limit)
		if err != nil {
			t.Fatalf("List(%d): unexpected error: %v", tt.limit, err)
		}
		if g := ids(got); !slices.Equal(g, tt.want) {
			t.Errorf("List(%d) = %v, want %v", tt.limit, g, tt.want)
		}
	}

	if n, err := repo.Count(ctx); err != nil || n != 3 {
		t.Errorf("expected 3 records, got %d (err %v)", n, err)
	}
}

func TestEscalationRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t, 0)
	want := escalation("a", time.Unix(1_700_000_000, 0).UTC())

	if err := repo.Add(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL(repo.itemKey("a")); ttl != DefaultTTL {
		t.Errorf("expected payload ttl %v, got %v", DefaultTTL, ttl)
	}

	got, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	e := got[0]
	if e.Resource != want.Resource || e.Status != want.Status || e.Attempts != want.Attempts ||
		e.Category != want.Category || !e.OccurredAt.Equal(want.OccurredAt) || len(e.Key) != 2 {
		t.Errorf("expected %+v, got %+v", want, e)
	}
}

func TestEscalationRepo_ListDropsExpired(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t, time.Minute)
	base := time.Unix(1_700_000_000, 0)

	_ = repo.Add(ctx, escalation("old", base))
	mr.FastForward(2 * time.Minute)
	_ = repo.Add(ctx, escalation("new", base.Add(time.Hour)))

	got, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("expected [new], got %v", ids(got))
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("expected expired id to leave the index, count %d", n)
	}
}

func TestEscalationRepo_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t, 0)
	base := time.Unix(1_700_000_000, 0)
	threshold := base.Add(time.Minute)

	_ = repo.Add(ctx, escalation("old", base))
	_ = repo.Add(ctx, escalation("edge", threshold))
	_ = repo.Add(ctx, escalation("new", base.Add(time.Hour)))

	removed, err := repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if mr.Exists(repo.itemKey("old")) {
		t.Error("expected the pruned payload to be deleted")
	}

	all, _ := repo.List(ctx, 0)
	if got := ids(all); !slices.Equal(got, []string{"new", "edge"}) {
		t.Errorf("expected [new edge], got %v", got)
	}

	if removed, _ := repo.DeleteOlderThan(ctx, threshold); removed != 0 {
		t.Errorf("expected nothing left to prune, got %d", removed)
	}
}

func TestEscalationRepo_EmptyList(t *testing.T) {
	repo, _ := newTestRepo(t, 0)

	got, err := repo.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %v", ids(got))
	}
}

func TestEscalationRepo_Keys(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	tests := []struct {
		prefix string
		queue  string
		item   string
	}{
		{"", "queryplane:escalations", "queryplane:escalation:abc"},
		{"dash", "dash:escalations", "dash:escalation:abc"},
	}

	for _, tt := range tests {
		repo := NewEscalationRepo(newClient(rdb, tt.prefix), 0)
		if got := repo.queueKey(); got != tt.queue {
			t.Errorf("expected queue key %s, got %s", tt.queue, got)
		}
		if got := repo.itemKey("abc"); got != tt.item {
			t.Errorf("expected item key %s, got %s", tt.item, got)
		}
		if repo.ttl != DefaultTTL {
			t.Errorf("expected default ttl, got %v", repo.ttl)
		}
	}

	if repo := NewEscalationRepo(newClient(rdb, ""), time.Hour); repo.ttl != time.Hour {
		t.Errorf("expected 1h ttl, got %v", repo.ttl)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "://bad"}); err == nil {
		t.Error("expected error for invalid url")
	}
}
