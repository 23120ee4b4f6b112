// Package audit is the optional compliance sink: every action the
// dispatcher carries out can be recorded to Postgres for retention and
// after-the-fact review, independent of the platform's own (unretained)
// chat history. Disabled deployments simply never construct a Sink, and
// the dispatcher treats a nil AuditSink as "don't record".
package audit

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Sink wraps a pgx connection pool used only to append moderation action
// records.
type Sink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to databaseURL and verifies connectivity with a ping.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Sink, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing audit database URL: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating audit connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging audit database: %w", err)
	}

	logger.Info("audit sink connected", slog.String("host", cfg.ConnConfig.Host))
	return &Sink{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// Record inserts one moderation action record.
func (s *Sink) Record(ctx context.Context, chatID, userID int64, trigger, action, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO moderation_actions (id, chat_id, user_id, trigger, action, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		newRecordID(), chatID, userID, trigger, action, reason,
	)
	if err != nil {
		return fmt.Errorf("recording moderation action: %w", err)
	}
	return nil
}

// MigrateUp applies every pending migration from the embedded directory.
func MigrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}

	logger.Info("running audit database migrations (up)")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running audit migrations up: %w", err)
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return fmt.Errorf("closing migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("creating audit migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating audit migrator: %w", err)
	}
	return m, nil
}
