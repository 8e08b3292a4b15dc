package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/repository"
	app "github.com/phucmetlamroi/agency-manager/internal/app"
	"github.com/phucmetlamroi/agency-manager/internal/config"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
)

type rootFlags struct {
	configPath string
	logFormat  string
}

// setup initializes logging on w and loads configuration.
// Order: defaults -> optional file -> env.
func setup(ctx context.Context, f *rootFlags, w io.Writer) (*config.Config, error) {
	if f.configPath != "" {
		if err := os.Setenv("CLIENTSCORE_CONFIG", f.configPath); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	format := cfg.LogFormat
	if f.logFormat != "" {
		format = f.logFormat
	}
	if err := logger.InitWith(w, logger.Format(format)); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// openSource connects to Postgres with the configured read/write options.
func openSource(ctx context.Context, cfg *config.Config) (*repository.PostgresSource, error) {
	friction, err := repository.ParseFrictionSource(cfg.FrictionSource)
	if err != nil {
		return nil, err
	}
	return repository.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns,
		repository.WithCompletedStatus(cfg.CompletedStatus),
		repository.WithFrictionSource(friction),
		repository.WithLogger(logger.Named("repository")),
	)
}

// newService builds the scoring service over src from cfg.
func newService(cfg *config.Config, src repository.Source, withSchedule bool) *app.Service {
	opts := []app.Option{
		app.WithLogger(logger.Named("scoring-service")),
		app.WithWorkerCount(cfg.ScoringWorkers),
		app.WithRunTimeout(cfg.RunTimeout()),
	}
	if withSchedule {
		opts = append(opts, app.WithSchedule(cfg.ScheduleInterval()))
	}
	return app.New(src, opts...)
}
