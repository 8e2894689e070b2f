package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/sqlrepo"
)

// Dialect for PostgreSQL.
var Dialect = sqlrepo.Dialect{
	Name:     "postgres",
	Numbered: true,
	UpsertModel: `
INSERT INTO models (model_prefix, power_min, power_max, pf_min, rpm_min, rpm_max)
VALUES (?,?,?,?,?,?)
ON CONFLICT (model_prefix) DO UPDATE SET
 power_min = EXCLUDED.power_min, power_max = EXCLUDED.power_max, pf_min = EXCLUDED.pf_min,
 rpm_min = EXCLUDED.rpm_min, rpm_max = EXCLUDED.rpm_max`,
	UpsertSetting: `
INSERT INTO settings (setting_key, setting_value) VALUES (?,?)
ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`,
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS scans (
    seq BIGSERIAL PRIMARY KEY,
    id UUID NOT NULL UNIQUE,
    daily_number INTEGER NOT NULL,
    qr_code TEXT NOT NULL,
    power DOUBLE PRECISION NOT NULL,
    rpm INTEGER NOT NULL,
    power_factor DOUBLE PRECISION NOT NULL,
    failure_code TEXT NOT NULL,
    status TEXT NOT NULL,
    scan_date CHAR(10) NOT NULL,
    scanned_at CHAR(19) NOT NULL,
    result TEXT NOT NULL DEFAULT 'FP OK',
    voice_recognition TEXT NOT NULL DEFAULT 'NA'
);
CREATE INDEX IF NOT EXISTS idx_scans_date ON scans (scan_date);
CREATE INDEX IF NOT EXISTS idx_scans_qr ON scans (qr_code);
CREATE TABLE IF NOT EXISTS models (
    model_prefix TEXT PRIMARY KEY,
    power_min DOUBLE PRECISION NOT NULL,
    power_max DOUBLE PRECISION NOT NULL,
    pf_min DOUBLE PRECISION NOT NULL,
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
