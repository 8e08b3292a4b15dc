// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and the environment over those defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/repository"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL is the Postgres connection string, sslmode included.
	DatabaseURL string `koanf:"database_url"`

	// DBMaxConns caps the connection pool.
	DBMaxConns int `koanf:"db_max_conns"`

	// CronSecret is the bearer token required to trigger a run. Empty
	// disables the check.
	CronSecret string `koanf:"cron_secret"`

	// RunTimeoutMS bounds one run end to end. Zero disables the bound.
	RunTimeoutMS int `koanf:"run_timeout_ms"`

	// ScoringWorkers sets the scoring pool size. Zero means one per CPU.
	ScoringWorkers int `koanf:"scoring_workers"`

	// ScheduleIntervalSec triggers periodic runs from serve. Zero disables.
	ScheduleIntervalSec int `koanf:"schedule_interval_sec"`

	// CompletedStatus is the task status counted as completed work.
	CompletedStatus string `koanf:"completed_status"`

	// FrictionSource is project_feedback or task_feedback.
	FrictionSource string `koanf:"friction_source"`
}

// New creates a Config with defaults. Context is accepted first to follow
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		DBMaxConns:      4,
		RunTimeoutMS:    60_000,
		CompletedStatus: repository.DefaultCompletedStatus,
		FrictionSource:  string(repository.FrictionProjectFeedback),
	}
}

// RunTimeout returns RunTimeoutMS as a duration.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMS) * time.Millisecond
}

// ScheduleInterval returns ScheduleIntervalSec as a duration.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalSec) * time.Second
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.DBMaxConns < 0 || c.RunTimeoutMS < 0 || c.ScoringWorkers < 0 || c.ScheduleIntervalSec < 0 {
		return fmt.Errorf("%w: numeric settings must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.CompletedStatus) == "" {
		return fmt.Errorf("%w: completed_status must not be empty", ErrInvalidConfig)
	}
	if _, err := repository.ParseFrictionSource(c.FrictionSource); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.CronSecret != "" {
		out.CronSecret = "***"
	}
	if out.DatabaseURL != "" {
		out.DatabaseURL = "***"
	}
	return out
}
