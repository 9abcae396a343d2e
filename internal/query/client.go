// Package query is the data-fetching control plane: it serves cached results,
// coalesces identical in-flight requests, retries transient failures and
// escalates the ones that indicate a systemic problem.
//
// A Client is an explicit object with a lifecycle; there is no package-level
// instance. Typical use:
//
//	qc := query.NewClient(query.Options{...})
//	overview, err := query.Fetch(ctx, qc, keys.AnalyticsOverview(), api.fetchOverview)
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goretry "github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/queryplane/internal/core/domain"
	"github.com/vietddude/queryplane/internal/query/cache"
	"github.com/vietddude/queryplane/internal/query/keys"
	"github.com/vietddude/queryplane/internal/query/metrics"
	"github.com/vietddude/queryplane/internal/query/retry"
)

// QueryFunc performs the network call for a key.
type QueryFunc func(ctx context.Context) (any, error)

// Escalator receives failures escalated past the local call site.
type Escalator interface {
	Add(ctx context.Context, e *domain.Escalation) error
}

// EscalationPolicy decides which terminal failures are escalated.
type EscalationPolicy struct {
	Disabled bool `yaml:"disabled"`
	// MinStatus escalates failures whose HTTP status is at least this value.
	MinStatus int `yaml:"min_status"`
	// MissingStatus escalates network failures that never got a status.
	MissingStatus bool `yaml:"missing_status"`
}

// DefaultEscalationPolicy escalates 5xx, unexpected non-error statuses and
// status-less failures.
var DefaultEscalationPolicy = EscalationPolicy{MinStatus: 500, MissingStatus: true}

// Should reports whether qerr is escalated.
func (p EscalationPolicy) Should(qerr *domain.QueryError) bool {
	if p.Disabled {
		return false
	}
	if status := qerr.Status(); status > 0 {
		if p.MinStatus > 0 && status >= p.MinStatus {
			return true
		}
		// Unexpected 1xx-3xx statuses are server failures too.
		return status < 400 && qerr.Category == domain.CategoryServer
	}
	return p.MissingStatus && qerr.Category == domain.CategoryNetwork
}

// Options configures a Client.
type Options struct {
	Cache      cache.Options
	Retry      retry.Config
	Escalation *EscalationPolicy // nil means DefaultEscalationPolicy
	Escalator  Escalator         // nil disables recording, logging still happens
	Logger     *slog.Logger
}

// Stats is a point-in-time view of the client.
type Stats struct {
	Cache    cache.Stats `json:"cache"`
	InFlight int         `json:"in_flight"`
}

// Client owns the request cache and every mutation of it.
type Client struct {
	cache      *cache.Cache
	policy     *retry.Policy
	flights    *flightGroup
	escalation EscalationPolicy
	escalator  Escalator
	log        *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	escalation := DefaultEscalationPolicy
	if opts.Escalation != nil {
		escalation = *opts.Escalation
	}
	return &Client{
		cache:      cache.New(opts.Cache),
		policy:     retry.NewPolicy(opts.Retry),
		flights:    newFlightGroup(),
		escalation: escalation,
		escalator:  opts.Escalator,
		log:        log,
	}
}

// Policy returns the retry policy in use.
func (c *Client) Policy() *retry.Policy { return c.policy }

// Fetch returns the cached value for key while it is fresh. Otherwise it runs
// fn, sharing the run with any concurrent caller for the same key, retries
// per the read budget and caches the result.
func (c *Client) Fetch(ctx context.Context, key keys.Key, fn QueryFunc) (any, error) {
	if key.IsZero() {
		return nil, errors.New("query: empty key")
	}
	class := key.Class()

	c.cache.Subscribe(key)
	defer c.cache.Unsubscribe(key)

	if v, ok := c.fresh(key); ok {
		metrics.CacheHits.WithLabelValues(class).Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues(class).Inc()

	val, err, shared := c.flights.do(ctx, key.ID(), func(runCtx context.Context) (any, error) {
		// A run for this key may have finished between the check above and
		// this one starting.
		if v, ok := c.fresh(key); ok {
			return v, nil
		}

		v, err := c.execute(runCtx, key, class, retry.KindQuery, fn)
		if err != nil {
			return nil, err
		}
		if runCtx.Err() != nil {
			// Every caller left; a late success must not land in the cache.
			return nil, runCtx.Err()
		}
		c.cache.Put(key, v)
		metrics.CacheEntries.Set(float64(c.cache.Len()))
		return v, nil
	})
	if shared {
		metrics.Deduplicated.WithLabelValues(class).Inc()
	}
	return val, err
}

// Mutate runs a write with the mutation retry budget. Writes are never
// coalesced. On success every key under the invalidate prefixes is marked
// stale.
func (c *Client) Mutate(ctx context.Context, name string, fn QueryFunc, invalidate ...keys.Key) (any, error) {
	key := keys.Must("mutation", name)

	v, err := c.execute(ctx, key, name, retry.KindMutation, fn)
	if err != nil {
		return nil, err
	}

	for _, prefix := range invalidate {
		n := c.cache.Invalidate(prefix)
		c.log.Debug("Invalidated after mutation", "mutation", name, "prefix", prefix, "entries", n)
	}
	return v, nil
}

// Invalidate marks every entry under prefix stale so the next Fetch refetches.
func (c *Client) Invalidate(prefix keys.Key) int {
	return c.cache.Invalidate(prefix)
}

// Remove drops every entry under prefix.
func (c *Client) Remove(prefix keys.Key) int {
	n := c.cache.Remove(prefix)
	metrics.CacheEntries.Set(float64(c.cache.Len()))
	return n
}

// Data returns the cached value for key, fresh or not.
func (c *Client) Data(key keys.Key) (any, bool) {
	e, ok := c.cache.Get(key)
	if !ok || !e.HasValue {
		return nil, false
	}
	return e.Value, true
}

// SetData stores v as if a request for key had just succeeded.
func (c *Client) SetData(key keys.Key, v any) {
	c.cache.Put(key, v)
	metrics.CacheEntries.Set(float64(c.cache.Len()))
}

// Reset discards whatever state a failed request left behind and issues a
// fresh one. It is the hook behind the "try again" affordance.
func (c *Client) Reset(ctx context.Context, key keys.Key, fn QueryFunc) (any, error) {
	c.cache.Invalidate(key)
	return c.Fetch(ctx, key, fn)
}

// Prefetch is one key to warm.
type Prefetch struct {
	Key keys.Key
	Fn  QueryFunc
}

// Prefetch fetches several keys in parallel and returns the first error.
func (c *Client) Prefetch(ctx context.Context, items ...Prefetch) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			_, err := c.Fetch(gctx, item.Key, item.Fn)
			return err
		})
	}
	return g.Wait()
}

// Sweep evicts idle entries and returns how many were removed.
func (c *Client) Sweep() int {
	evicted := c.cache.Sweep()
	if len(evicted) > 0 {
		metrics.Evictions.Add(float64(len(evicted)))
		c.log.Debug("Evicted idle cache entries", "count", len(evicted))
	}
	metrics.CacheEntries.Set(float64(c.cache.Len()))
	return len(evicted)
}

// Stats returns a snapshot of the cache and in-flight table.
func (c *Client) Stats() Stats {
	return Stats{
		Cache:    c.cache.Stats(),
		InFlight: c.flights.inFlight(),
	}
}

func (c *Client) fresh(key keys.Key) (any, bool) {
	e, ok := c.cache.Get(key)
	if !ok || !e.Fresh(c.cache.Now()) {
		return nil, false
	}
	return e.Value, true
}

// execute runs fn under the retry policy. A run cancelled through ctx returns
// ctx.Err() and counts neither as success nor as failure.
func (c *Client) execute(
	ctx context.Context,
	key keys.Key,
	class string,
	kind retry.Kind,
	fn QueryFunc,
) (any, error) {
	start := time.Now()
	attempt := retry.Attempt{Kind: kind}

	var (
		result  any
		lastErr error
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		delay := c.policy.DelayBeforeRetry(attempt.Attempts)
		attempt.Attempts++

		metrics.Retries.WithLabelValues(class, kind.String(), string(attempt.Last)).Inc()
		c.log.Warn("Request failed, retrying",
			"key", key,
			"kind", kind,
			"retry", attempt.Attempts,
			"delay", delay,
			"category", attempt.Last,
			"error", lastErr,
		)
		return delay, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			result = v
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		attempt.Last = retry.Classify(err)
		if !c.policy.ShouldRetry(attempt) {
			return err
		}
		return goretry.RetryableError(err)
	})

	metrics.FetchLatency.WithLabelValues(class, kind.String()).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.Fetches.WithLabelValues(class, kind.String(), "success").Inc()
		return result, nil
	case ctx.Err() != nil:
		metrics.Fetches.WithLabelValues(class, kind.String(), "cancelled").Inc()
		c.log.Debug("Request cancelled", "key", key, "kind", kind)
		return nil, ctx.Err()
	}

	metrics.Fetches.WithLabelValues(class, kind.String(), "error").Inc()

	if lastErr == nil {
		lastErr = err
		attempt.Last = retry.Classify(err)
	}
	qerr := &domain.QueryError{
		Key:       key.String(),
		Category:  attempt.Last,
		Attempts:  attempt.Attempts,
		Exhausted: attempt.Last.Retryable(),
		Err:       lastErr,
	}

	if c.escalation.Should(qerr) {
		c.escalate(ctx, key, qerr)
	} else {
		c.log.Debug("Request failed", "key", key, "kind", kind, "category", qerr.Category, "error", lastErr)
	}
	return nil, qerr
}

func (c *Client) escalate(ctx context.Context, key keys.Key, qerr *domain.QueryError) {
	metrics.Escalations.WithLabelValues(key.Class(), string(qerr.Category)).Inc()
	c.log.Error("Escalating request failure",
		"key", key,
		"category", qerr.Category,
		"status", qerr.Status(),
		"retries", qerr.Attempts,
		"error", qerr.Err,
	)

	if c.escalator == nil {
		return
	}

	msg := ""
	if qerr.Err != nil {
		msg = qerr.Err.Error()
	}
	record := &domain.Escalation{
		ID:         uuid.NewString(),
		Key:        key.Strings(),
		Resource:   key.Class(),
		Category:   qerr.Category,
		Status:     qerr.Status(),
		Message:    msg,
		Attempts:   qerr.Attempts,
		OccurredAt: time.Now().UTC(),
	}

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.escalator.Add(sinkCtx, record); err != nil {
		c.log.Error("Failed to record escalation", "id", record.ID, "error", err)
	}
}

// Fetch is the typed form of Client.Fetch.
func Fetch[T any](ctx context.Context, c *Client, key keys.Key, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		out, err := fn(ctx)
		return out, err
	})
	return typed[T](key.String(), v, err)
}

// Mutate is the typed form of Client.Mutate.
func Mutate[T any](
	ctx context.Context,
	c *Client,
	name string,
	fn func(ctx context.Context) (T, error),
	invalidate ...keys.Key,
) (T, error) {
	v, err := c.Mutate(ctx, name, func(ctx context.Context) (any, error) {
		out, err := fn(ctx)
		return out, err
	}, invalidate...)
	return typed[T](name, v, err)
}

func typed[T any](name string, v any, err error) (T, error) {
	var zero T
	if err != nil || v == nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: value is %T, want %T", name, v, zero)
	}
	return out, nil
}
