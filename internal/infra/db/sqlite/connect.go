package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/sqlrepo"
)

// Dialect for SQLite.
var Dialect = sqlrepo.Dialect{
	Name: "sqlite",
	UpsertModel: `
INSERT INTO models (model_prefix, power_min, power_max, pf_min, rpm_min, rpm_max)
VALUES (?,?,?,?,?,?)
ON CONFLICT(model_prefix) DO UPDATE SET
 power_min = excluded.power_min, power_max = excluded.power_max, pf_min = excluded.pf_min,
 rpm_min = excluded.rpm_min, rpm_max = excluded.rpm_max`,
	UpsertSetting: `
INSERT INTO settings (setting_key, setting_value) VALUES (?,?)
ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value`,
}

// Connect opens the scan log file; ":memory:" gives a private in-memory database.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS scans (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    daily_number INTEGER NOT NULL,
    qr_code TEXT NOT NULL,
    power REAL NOT NULL,
    rpm INTEGER NOT NULL,
    power_factor REAL NOT NULL,
    failure_code TEXT NOT NULL,
    status TEXT NOT NULL,
    scan_date TEXT NOT NULL,
    scanned_at TEXT NOT NULL,
    result TEXT NOT NULL DEFAULT 'FP OK',
    voice_recognition TEXT NOT NULL DEFAULT 'NA'
);
CREATE INDEX IF NOT EXISTS idx_scans_date ON scans (scan_date);
CREATE INDEX IF NOT EXISTS idx_scans_qr ON scans (qr_code);
CREATE TABLE IF NOT EXISTS models (
    model_prefix TEXT PRIMARY KEY,
    power_min REAL NOT NULL,
    power_max REAL NOT NULL,
    pf_min REAL NOT NULL,
    rpm_min INTEGER NOT NULL,
    rpm_max INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
    setting_key TEXT PRIMARY KEY,
    setting_value TEXT NOT NULL
);`

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
