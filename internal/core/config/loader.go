package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/queryplane/internal/query"
	"github.com/vietddude/queryplane/internal/query/cache"
	"github.com/vietddude/queryplane/internal/query/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given. The API base
// URL comes from QUERYPLANE_API_URL.
func Default() *AppConfig {
	cfg := AppConfig{}
	cfg.API.BaseURL = os.Getenv("QUERYPLANE_API_URL")
	cfg.API.Token = os.Getenv("QUERYPLANE_API_TOKEN")
	applyDefaults(&cfg)
	return &cfg
}

// Validate checks that the selected escalation sink is configured.
func (c *AppConfig) Validate() error {
	if c.Retry.Jitter > retry.MaxJitter {
		return fmt.Errorf("retry.jitter %v exceeds %v", c.Retry.Jitter, retry.MaxJitter)
	}

	switch c.Escalation.Sink {
	case SinkMemory:
	case SinkRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("escalation sink %q requires redis.url", c.Escalation.Sink)
		}
	case SinkPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("escalation sink %q requires database.url", c.Escalation.Sink)
		}
	default:
		return fmt.Errorf("unknown escalation sink %q", c.Escalation.Sink)
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}

	if cfg.Query.StaleTime == 0 {
		cfg.Query.StaleTime = cache.DefaultStaleTime
	}
	if cfg.Query.GCTime == 0 {
		cfg.Query.GCTime = cache.DefaultGCTime
	}
	if cfg.Query.SweepInterval == 0 {
		cfg.Query.SweepInterval = time.Minute
	}

	// Zero budgets and delays fall back to the defaults; a negative budget
	// disables retries and a negative jitter disables jitter.
	if cfg.Retry.QueryBudget == 0 {
		cfg.Retry.QueryBudget = retry.DefaultConfig.QueryBudget
	}
	if cfg.Retry.MutationBudget == 0 {
		cfg.Retry.MutationBudget = retry.DefaultConfig.MutationBudget
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = retry.DefaultConfig.BaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = retry.DefaultConfig.MaxDelay
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = retry.DefaultConfig.Jitter
	}

	if cfg.Escalation.MinStatus == 0 {
		cfg.Escalation.MinStatus = query.DefaultEscalationPolicy.MinStatus
	}
	if cfg.Escalation.Sink == "" {
		cfg.Escalation.Sink = SinkMemory
	}
	if cfg.Escalation.Retention == 0 {
		cfg.Escalation.Retention = 7 * 24 * time.Hour
	}
}
