package query

import (
	"context"
	"time"
)

// Sweeper evicts idle cache entries on an interval.
type Sweeper struct {
	client   *Client
	interval time.Duration
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to one minute.
func NewSweeper(client *Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{client: client, interval: interval}
}

// Start runs the sweep loop until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.client.Sweep()
		}
	}
}
