package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/queryplane/internal/core/domain"
	"github.com/vietddude/queryplane/internal/infra/api"
	"github.com/vietddude/queryplane/internal/query"
	"github.com/vietddude/queryplane/internal/query/fallback"
	"github.com/vietddude/queryplane/internal/query/keys"
)

// A walkthrough of the query client against a live API: the second read is
// served from cache, an invalidation forces a refetch, and a failure is
// turned into a fallback.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	baseURL := os.Getenv("QUERYPLANE_API_URL")
	if baseURL == "" {
		log.Fatalf("QUERYPLANE_API_URL is not set")
	}

	ctx := context.Background()

	// 1. Transport and client
	transport, err := api.NewTransport(api.Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Token:   os.Getenv("QUERYPLANE_API_TOKEN"),
	})
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer transport.Close()

	qc := query.NewClient(query.Options{})
	svc := api.NewService(transport, qc)

	// 2. Two reads, one request
	for i := 0; i < 2; i++ {
		start := time.Now()
		overview, err := svc.AnalyticsOverview(ctx)
		if err != nil {
			fb := fallback.Select(err, func(ctx context.Context) error {
				_, err := qc.Reset(ctx, keys.AnalyticsOverview(), func(ctx context.Context) (any, error) {
					var out domain.AnalyticsOverview
					err := transport.Get(ctx, "/analytics/overview", nil, &out)
					return out, err
				})
				return err
			})
			fmt.Printf("Read %d failed: %s (%s)\n", i+1, fb.Label, fb.Description)
			if fb.Retryable {
				if err := fb.Retry(ctx); err != nil {
					fmt.Printf("Retry failed: %v\n", err)
				}
			}
			continue
		}
		fmt.Printf("Read %d: %d active users in %v\n", i+1, overview.ActiveUsers, time.Since(start))
	}

	// 3. Invalidate the family and read again
	n := qc.Invalidate(keys.Analytics())
	fmt.Printf("Invalidated %d analytics entries\n", n)
	if _, err := svc.AnalyticsOverview(ctx); err != nil {
		fmt.Printf("Refetch failed: %v\n", err)
	}

	// 4. Stats
	stats := qc.Stats()
	fmt.Println("=== Cache ===")
	fmt.Printf("  Entries: %d (fresh %d, stale %d)\n", stats.Cache.Entries, stats.Cache.Fresh, stats.Cache.Stale)
	fmt.Printf("  API: %+v\n", transport.Monitor.Stats())
}
