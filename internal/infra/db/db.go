// Package db opens the configured scan log database.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryanwahyu/qa-scanlog/internal/config"
	"github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/domain/settings"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/mysql"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/postgres"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/sqlite"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/sqlrepo"
)

// Store bundles the connection with its repositories.
type Store struct {
	DB       *sql.DB
	Dialect  sqlrepo.Dialect
	Scans    *sqlrepo.ScanRepository
	Specs    *sqlrepo.SpecRepository
	Settings *sqlrepo.SettingsRepository
}

// Open connects to the configured driver, creates missing tables and seeds
// default settings.
func Open(ctx context.Context, cfg config.Database) (*Store, error) {
	var (
		conn    *sql.DB
		dialect sqlrepo.Dialect
		migrate func(context.Context, *sql.DB) error
		err     error
	)

	switch cfg.Driver {
	case config.DriverSQLite, "":
		conn, err = sqlite.Connect(ctx, cfg.SQLitePath())
		dialect, migrate = sqlite.Dialect, sqlite.Migrate
	case config.DriverMySQL:
		conn, err = mysql.Connect(ctx, cfg.MySQLDSN())
		dialect, migrate = mysql.Dialect, mysql.Migrate
	case config.DriverPostgres:
		conn, err = postgres.Connect(ctx, cfg.PostgresDSN())
		dialect, migrate = postgres.Dialect, postgres.Migrate
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Driver, err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s migrate: %w", dialect.Name, err)
	}
	return newStore(ctx, conn, dialect)
}

func newStore(ctx context.Context, conn *sql.DB, d sqlrepo.Dialect) (*Store, error) {
	st := &Store{
		DB:       conn,
		Dialect:  d,
		Scans:    sqlrepo.NewScanRepository(conn, d),
		Specs:    sqlrepo.NewSpecRepository(conn, d),
		Settings: sqlrepo.NewSettingsRepository(conn, d),
	}
	if err := st.Settings.SeedDefaults(ctx, map[string]string{
		settings.KeyDefaultVoiceRecognition: scans.VoiceNA,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seeding settings: %w", err)
	}
	return st, nil
}

func (s *Store) Close() error { return s.DB.Close() }
