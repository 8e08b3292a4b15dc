// Package repository is the data-source boundary of a scoring run: it reads
// per-client metrics and persists computed scores.
package repository

import (
	"context"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
)

// MetricsReader returns one metrics record per known client, including
// clients without any tasks.
type MetricsReader interface {
	ReadMetrics(ctx context.Context) ([]model.ClientMetrics, error)
}

// ScoreWriter persists one client's result. Each call is atomic on its own;
// a failure affects only that client.
type ScoreWriter interface {
	WriteScore(ctx context.Context, res model.ScoreResult) error
}

// Session is a data-source handle scoped to a single run.
type Session interface {
	MetricsReader
	ScoreWriter

	// Release returns the underlying connection. It is safe to call more
	// than once.
	Release()
}

// Source hands out sessions. Callers must Release every session they acquire.
type Source interface {
	Acquire(ctx context.Context) (Session, error)
}
