package config

import (
	"time"

	"github.com/vietddude/queryplane/internal/infra/api"
	redisclient "github.com/vietddude/queryplane/internal/infra/redis"
	"github.com/vietddude/queryplane/internal/infra/storage/postgres"
	"github.com/vietddude/queryplane/internal/query"
	"github.com/vietddude/queryplane/internal/query/cache"
	"github.com/vietddude/queryplane/internal/query/retry"
)

// Escalation sinks.
const (
	SinkMemory   = "memory"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	API        api.Config         `yaml:"api"`
	Query      QueryConfig        `yaml:"query"`
	Retry      retry.Config       `yaml:"retry"`
	Escalation EscalationConfig   `yaml:"escalation"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// QueryConfig holds cache thresholds.
type QueryConfig struct {
	StaleTime     time.Duration `yaml:"stale_time"`
	GCTime        time.Duration `yaml:"gc_time"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// Classes overrides thresholds per key class, e.g. "notifications".
	Classes map[string]cache.ClassOptions `yaml:"classes"`
}

// CacheOptions converts the section into cache options.
func (c QueryConfig) CacheOptions() cache.Options {
	return cache.Options{
		Defaults: cache.ClassOptions{StaleTime: c.StaleTime, GCTime: c.GCTime},
		Classes:  c.Classes,
	}
}

// EscalationConfig selects which failures are escalated and where they go.
type EscalationConfig struct {
	Disabled  bool `yaml:"disabled"`
	MinStatus int  `yaml:"min_status"`
	// MissingStatus escalates network failures without a status; nil means true.
	MissingStatus *bool         `yaml:"missing_status"`
	Sink          string        `yaml:"sink"` // memory, redis, postgres
	Retention     time.Duration `yaml:"retention"`
	Capacity      int           `yaml:"capacity"` // memory sink only
}

// Policy converts the section into the query client escalation policy.
func (c EscalationConfig) Policy() query.EscalationPolicy {
	missing := true
	if c.MissingStatus != nil {
		missing = *c.MissingStatus
	}
	return query.EscalationPolicy{
		Disabled:      c.Disabled,
		MinStatus:     c.MinStatus,
		MissingStatus: missing,
	}
}
