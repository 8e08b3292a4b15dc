package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
	"github.com/phucmetlamroi/agency-manager/pkg/metrics"
)

const connectTimeout = 10 * time.Second

// Revenue and completed-task counts come from the client's projects; the
// friction subquery is spliced in per FrictionSource. $1 is the completed
// task status. Ratings default to 3 when NULL.
const metricsQueryTemplate = `
SELECT c.id::text,
       COALESCE(SUM(t.value), 0)::float8,
       (%s)::bigint,
       COUNT(t.id)::bigint,
       COALESCE(c."inputQuality", 3)::bigint,
       COALESCE(c."paymentRating", 3)::bigint
FROM "Client" c
LEFT JOIN "Project" p ON p."clientId" = c.id
LEFT JOIN "Task" t ON t."projectId" = p.id AND t.status = $1
GROUP BY c.id, c."inputQuality", c."paymentRating"
ORDER BY c.id`

const projectFeedbackSubquery = `SELECT COUNT(*) FROM "Feedback" f
        JOIN "Project" fp ON f."projectId" = fp.id
        WHERE fp."clientId" = c.id AND f.type = 'CLIENT'`

const taskFeedbackSubquery = `SELECT COUNT(*) FROM "Feedback" f
        JOIN "Task" ft ON f."taskId" = ft.id
        WHERE ft."clientId" = c.id`

const updateScoreSQL = `UPDATE "Client" SET "aiScore" = $1, "frictionIndex" = $2, "tier" = $3 WHERE id::text = $4`

// MetricsQuery returns the read query for the given friction source.
func MetricsQuery(src FrictionSource) string {
	sub := projectFeedbackSubquery
	if src == FrictionTaskFeedback {
		sub = taskFeedbackSubquery
	}
	return fmt.Sprintf(metricsQueryTemplate, sub)
}

// DB is the subset of pgx shared by *pgxpool.Conn, *pgx.Conn and pgxmock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSource hands out sessions backed by pooled connections.
type PostgresSource struct {
	pool *pgxpool.Pool
	opts []Option
}

// Connect parses dsn, opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int, opts ...Option) (*PostgresSource, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: database url not configured", ErrDataSource)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database url: %w", ErrDataSource, err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns) //nolint:gosec // bounded by config validation
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open pool: %w", ErrDataSource, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrDataSource, cfg.ConnConfig.Host, err)
	}
	return &PostgresSource{pool: pool, opts: opts}, nil
}

// Acquire checks a connection out of the pool for one run.
func (s *PostgresSource) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrDataSource, err)
	}
	return NewPostgresSession(conn, conn.Release, s.opts...), nil
}

// Close closes the pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// PostgresSession runs the metrics query and per-client updates on one
// connection.
type PostgresSession struct {
	db      DB
	release func()
	once    sync.Once
	opts    sessionOptions
	logger  logger.Logger
}

// NewPostgresSession wraps db. release is called once by Release.
func NewPostgresSession(db DB, release func(), opts ...Option) *PostgresSession {
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("repository")
	}
	return &PostgresSession{db: db, release: release, opts: o, logger: o.logger}
}

// ReadMetrics implements MetricsReader.
func (s *PostgresSession) ReadMetrics(ctx context.Context) ([]model.ClientMetrics, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReadLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, err := s.db.Query(ctx, MetricsQuery(s.opts.frictionSource), s.opts.completedStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: query client metrics: %w", ErrDataSource, err)
	}
	defer rows.Close()

	var out []model.ClientMetrics
	for rows.Next() {
		var (
			m                  model.ClientMetrics
			quality, paymentRt int64
		)
		if err := rows.Scan(&m.ClientID, &m.Revenue, &m.FrictionEvents, &m.TotalTasks, &quality, &paymentRt); err != nil {
			return nil, fmt.Errorf("%w: scan client metrics: %w", ErrDataSource, err)
		}
		m.InputQuality = int(quality)
		m.PaymentRating = int(paymentRt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read client metrics: %w", ErrDataSource, err)
	}

	s.logger.Debug(ctx, "client metrics read",
		logger.Int("clients", len(out)),
		logger.String("friction_source", string(s.opts.frictionSource)),
	)
	return out, nil
}

// WriteScore implements ScoreWriter with a single UPDATE statement.
func (s *PostgresSession) WriteScore(ctx context.Context, res model.ScoreResult) error {
	if !res.Tier.Valid() {
		return fmt.Errorf("%w: client %s: invalid tier %q", ErrPersistence, res.ClientID, res.Tier)
	}

	start := time.Now()
	tag, err := s.db.Exec(ctx, updateScoreSQL, res.Score, res.FrictionIndex, string(res.Tier), res.ClientID)
	metrics.RecordWriteLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("%w: client %s: %w", ErrPersistence, res.ClientID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: client %s: %w", ErrPersistence, res.ClientID, ErrNotFound)
	}
	return nil
}

// Release implements Session.
func (s *PostgresSession) Release() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// IsDataSource reports whether err is a run-level data-source failure.
func IsDataSource(err error) bool { return errors.Is(err, ErrDataSource) }

// IsPersistence reports whether err is a per-client write failure.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }
