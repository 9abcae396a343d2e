package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/queryplane/internal/infra/storage"
)

// Pruner deletes escalations older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.EscalationRepository
	log       *slog.Logger
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.EscalationRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		log:       slog.Default(),
		now:       time.Now,
	}
}

// Start runs the pruner loop. A non-positive retention disables it.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	// 10% of the retention period, between one minute and one hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) int {
	threshold := p.now().Add(-p.retention)

	n, err := p.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		p.log.Error("Failed to prune escalations", "error", err)
		return 0
	}
	if n > 0 {
		p.log.Info("Pruned escalations", "count", n, "older_than", threshold)
	}
	return n
}
