package postgres

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected embedded migrations")
	}

	data, err := fs.ReadFile(migrations, files[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, marker := range []string{"-- +goose Up", "-- +goose Down", "key_segments"} {
		if !strings.Contains(string(data), marker) {
			t.Errorf("expected %q in %s", marker, files[0])
		}
	}
}

func TestEscalationRow_ToDomain(t *testing.T) {
	at := time.Unix(1_700_000_000, 0).UTC()
	row := escalationRow{
		ID:         "id-1",
		Key:        []string{"audit-logs", "3", `{"actor":"a"}`},
		Resource:   "audit-logs",
		Category:   "server_error",
		Status:     503,
		Attempts:   3,
		OccurredAt: at,
	}

	got := row.toDomain()
	if got.Category != domain.CategoryServer {
		t.Errorf("expected server category, got %s", got.Category)
	}
	if len(got.Key) != 3 || got.Key[2] != `{"actor":"a"}` {
		t.Errorf("unexpected key: %v", got.Key)
	}
	if !got.OccurredAt.Equal(at) || got.Status != 503 || got.Attempts != 3 {
		t.Errorf("unexpected escalation: %+v", got)
	}
}
