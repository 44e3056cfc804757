// Package migration applies the embedded schema migrations with goose.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/db/migrations"
	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/database"
)

// Module provides the migrator.
var Module = fx.Provide(New)

// Migrator wraps goose operations. goose keeps its dialect and file system in
// package state, so one migrator is used per process.
type Migrator struct {
	db     *bun.DB
	dir    string
	logger *zap.Logger
}

// New constructs a goose-backed migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, dir, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zap.NewStdLog(logger.Named("goose")))

	return &Migrator{
		db:     conns.Writer,
		dir:    dir,
		logger: logger,
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	err := goose.UpContext(ctx, m.db.DB, m.dir)
	switch {
	case isNoMigrationErr(err):
		m.logger.Info("schema already current")
	case err != nil:
		return fmt.Errorf("migrate up: %w", err)
	default:
		m.logger.Info("migrations applied", zap.String("dir", m.dir))
	}
	return nil
}

// Down rolls back steps migrations (at least one), or every migration when
// all is set.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		return m.rollback(ctx, func() error {
			return goose.DownToContext(ctx, m.db.DB, m.dir, 0)
		})
	}
	for i := 0; i < max(steps, 1); i++ {
		stop := false
		err := m.rollback(ctx, func() error {
			err := goose.DownContext(ctx, m.db.DB, m.dir)
			stop = isNoMigrationErr(err)
			return err
		})
		if err != nil || stop {
			return err
		}
	}
	return nil
}

func (m *Migrator) rollback(ctx context.Context, step func() error) error {
	err := step()
	if isNoMigrationErr(err) {
		m.logger.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	v, _ := m.Version(ctx)
	m.logger.Info("migration rolled back", zap.Int64("version", v))
	return nil
}

// Version reports the schema version currently recorded by goose.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db.DB)
}

func gooseDialect(driver string) (dialect, dir string, err error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", "sql/postgres", nil
	case "mysql":
		return "mysql", "sql/mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", "sql/sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}
