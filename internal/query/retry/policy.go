// Package retry decides whether a failed request is retried and how long to
// wait before the next attempt.
package retry

import (
	"math/rand/v2"
	"time"

	"github.com/vietddude/queryplane/internal/core/domain"
)

// Kind separates reads from writes; writes get the smaller budget.
type Kind int

const (
	KindQuery Kind = iota
	KindMutation
)

func (k Kind) String() string {
	if k == KindMutation {
		return "mutation"
	}
	return "query"
}

// Attempt is the per-request retry state. It lives for one logical request.
type Attempt struct {
	Kind Kind
	// Attempts counts retries already issued; it starts at 0.
	Attempts int
	// Last is the category of the most recent failure, empty before any.
	Last domain.ErrorCategory
}

// Config defines retry behavior.
type Config struct {
	QueryBudget    int           `yaml:"query_budget"`
	MutationBudget int           `yaml:"mutation_budget"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	Jitter         float64       `yaml:"jitter"` // fraction of the delay, 0.1 = up to +10%
}

// DefaultConfig provides the standard budgets and backoff.
var DefaultConfig = Config{
	QueryBudget:    3,
	MutationBudget: 2,
	BaseDelay:      1 * time.Second,
	MaxDelay:       10 * time.Second,
	Jitter:         0.1,
}

// Policy applies a Config.
type Policy struct {
	cfg    Config
	random func() float64
}

// MaxJitter bounds the jitter fraction so a delay never exceeds MaxDelay*1.1.
const MaxJitter = 0.1

// NewPolicy creates a policy. Zero fields fall back to DefaultConfig, a
// negative budget or jitter disables it, and jitter is capped at MaxJitter.
func NewPolicy(cfg Config) *Policy {
	if cfg.QueryBudget < 0 {
		cfg.QueryBudget = 0
	} else if cfg.QueryBudget == 0 {
		cfg.QueryBudget = DefaultConfig.QueryBudget
	}
	if cfg.MutationBudget < 0 {
		cfg.MutationBudget = 0
	} else if cfg.MutationBudget == 0 {
		cfg.MutationBudget = DefaultConfig.MutationBudget
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	switch {
	case cfg.Jitter < 0:
		cfg.Jitter = 0
	case cfg.Jitter == 0:
		cfg.Jitter = DefaultConfig.Jitter
	case cfg.Jitter > MaxJitter:
		cfg.Jitter = MaxJitter
	}
	return &Policy{cfg: cfg, random: rand.Float64}
}

// Config returns the effective configuration.
func (p *Policy) Config() Config { return p.cfg }

// Budget returns the retry budget for a request kind.
func (p *Policy) Budget(k Kind) int {
	if k == KindMutation {
		return p.cfg.MutationBudget
	}
	return p.cfg.QueryBudget
}

// ShouldRetry reports whether another attempt is allowed. Client, auth and
// validation failures are permanent and never retried.
func (p *Policy) ShouldRetry(a Attempt) bool {
	if !a.Last.Retryable() {
		return false
	}
	return a.Attempts < p.Budget(a.Kind)
}

// DelayBeforeRetry returns the wait before retry i (zero-based):
// min(base*2^i, max) plus up to Jitter of that delay.
func (p *Policy) DelayBeforeRetry(i int) time.Duration {
	if i < 0 {
		i = 0
	}

	delay := p.cfg.BaseDelay
	for n := 0; n < i && delay < p.cfg.MaxDelay; n++ {
		delay *= 2
	}
	delay = min(delay, p.cfg.MaxDelay)

	if p.cfg.Jitter > 0 {
		delay += time.Duration(p.random() * p.cfg.Jitter * float64(delay))
	}
	return delay
}
