package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
)

type SettingsRepository struct {
	db *sql.DB
	d  Dialect
}

func NewSettingsRepository(db *sql.DB, d Dialect) *SettingsRepository {
	return &SettingsRepository{db: db, d: d}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		r.d.Rebind(`SELECT setting_value FROM settings WHERE setting_key = ?`), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.d.Rebind(r.d.UpsertSetting), key, value)
	return err
}

// SeedDefaults writes each default whose key is not stored yet.
func (r *SettingsRepository) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	for k, v := range defaults {
		_, ok, err := r.Get(ctx, k)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := r.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}
