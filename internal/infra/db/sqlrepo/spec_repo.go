package sqlrepo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/specs"
)

type SpecRepository struct {
	db *sql.DB
	d  Dialect
}

func NewSpecRepository(db *sql.DB, d Dialect) *SpecRepository {
	return &SpecRepository{db: db, d: d}
}

// Upsert inserts or replaces a model row
func (r *SpecRepository) Upsert(ctx context.Context, m *domain.ModelSpec) error {
	_, err := r.db.ExecContext(ctx, r.d.Rebind(r.d.UpsertModel),
		m.Prefix, m.PowerMin, m.PowerMax, m.PFMin, m.RPMMin, m.RPMMax)
	return err
}

// Update changes the limits of an existing model, matching the prefix without case.
func (r *SpecRepository) Update(ctx context.Context, m *domain.ModelSpec) (bool, error) {
	q := r.d.Rebind(`
UPDATE models
SET power_min = ?, power_max = ?, pf_min = ?, rpm_min = ?, rpm_max = ?
WHERE LOWER(model_prefix) = LOWER(?)`)
	res, err := r.db.ExecContext(ctx, q, m.PowerMin, m.PowerMax, m.PFMin, m.RPMMin, m.RPMMax, m.Prefix)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SpecRepository) Delete(ctx context.Context, prefix string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM models WHERE LOWER(model_prefix) = LOWER(?)`), prefix)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Get returns nil, nil when the prefix is unknown.
func (r *SpecRepository) Get(ctx context.Context, prefix string) (*domain.ModelSpec, error) {
	q := r.d.Rebind(`
SELECT model_prefix, power_min, power_max, pf_min, rpm_min, rpm_max
FROM models
WHERE LOWER(model_prefix) = LOWER(?)
LIMIT 1`)
	var m domain.ModelSpec
	err := r.db.QueryRowContext(ctx, q, prefix).Scan(&m.Prefix, &m.PowerMin, &m.PowerMax, &m.PFMin, &m.RPMMin, &m.RPMMax)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SpecRepository) List(ctx context.Context) ([]*domain.ModelSpec, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT model_prefix, power_min, power_max, pf_min, rpm_min, rpm_max
FROM models
ORDER BY model_prefix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ModelSpec
	for rows.Next() {
		var m domain.ModelSpec
		if err := rows.Scan(&m.Prefix, &m.PowerMin, &m.PowerMax, &m.PFMin, &m.RPMMin, &m.RPMMax); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
