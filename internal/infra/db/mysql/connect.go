package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/qa-scanlog/internal/infra/db/sqlrepo"
)

// Dialect for MySQL / MariaDB.
var Dialect = sqlrepo.Dialect{
	Name: "mysql",
	UpsertModel: `
INSERT INTO models (model_prefix, power_min, power_max, pf_min, rpm_min, rpm_max)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 power_min=VALUES(power_min), power_max=VALUES(power_max), pf_min=VALUES(pf_min),
 rpm_min=VALUES(rpm_min), rpm_max=VALUES(rpm_max)`,
	UpsertSetting: `
INSERT INTO settings (setting_key, setting_value) VALUES (?,?)
ON DUPLICATE KEY UPDATE setting_value=VALUES(setting_value)`,
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS scans (
    seq BIGINT AUTO_INCREMENT PRIMARY KEY,
    id VARCHAR(36) NOT NULL UNIQUE,
    daily_number INT NOT NULL,
    qr_code VARCHAR(255) NOT NULL,
    power DOUBLE NOT NULL,
    rpm INT NOT NULL,
    power_factor DOUBLE NOT NULL,
    failure_code VARCHAR(64) NOT NULL,
    status VARCHAR(8) NOT NULL,
    scan_date CHAR(10) NOT NULL,
    scanned_at CHAR(19) NOT NULL,
    result VARCHAR(64) NOT NULL DEFAULT 'FP OK',
    voice_recognition VARCHAR(8) NOT NULL DEFAULT 'NA',
    INDEX idx_scans_date (scan_date),
    INDEX idx_scans_qr (qr_code)
) DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS models (
    model_prefix VARCHAR(64) PRIMARY KEY,
    power_min DOUBLE NOT NULL,
    power_max DOUBLE NOT NULL,
    pf_min DOUBLE NOT NULL,
    rpm_min INT NOT NULL,
    rpm_max INT NOT NULL
) DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS settings (
    setting_key VARCHAR(64) PRIMARY KEY,
    setting_value VARCHAR(255) NOT NULL
) DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables when missing. The driver runs one statement per Exec.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
