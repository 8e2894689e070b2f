package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

const scanColumns = `id, daily_number, qr_code, power, rpm, power_factor,
       failure_code, status, scanned_at, result, voice_recognition`

type ScanRepository struct {
	db *sql.DB
	d  Dialect
}

func NewScanRepository(db *sql.DB, d Dialect) *ScanRepository {
	return &ScanRepository{db: db, d: d}
}

// Save insert Scan record
func (r *ScanRepository) Save(ctx context.Context, s *domain.Scan) error {
	q := r.d.Rebind(`
INSERT INTO scans
(id, daily_number, qr_code, power, rpm, power_factor,
 failure_code, status, scan_date, scanned_at, result, voice_recognition)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.DailyNumber, s.QRCode, s.Power, s.RPM, s.PowerFactor,
		s.FailureCode, s.Status, s.Day(), s.Timestamp, s.Result, s.VoiceRecognition,
	)
	return err
}

// Latest returns the newest scan, nil when the table is empty.
func (r *ScanRepository) Latest(ctx context.Context) (*domain.Scan, error) {
	q := `SELECT ` + scanColumns + ` FROM scans ORDER BY seq DESC LIMIT 1`
	s, err := scanOne(r.db.QueryRowContext(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListByDate scans of one day, newest first
func (r *ScanRepository) ListByDate(ctx context.Context, date string) ([]*domain.Scan, error) {
	q := r.d.Rebind(`SELECT ` + scanColumns + ` FROM scans WHERE scan_date = ? ORDER BY seq DESC`)
	return r.list(ctx, q, date)
}

// ListBetween scans between two days inclusive, oldest first
func (r *ScanRepository) ListBetween(ctx context.Context, startDate, endDate string) ([]*domain.Scan, error) {
	q := r.d.Rebind(`SELECT ` + scanColumns + ` FROM scans
WHERE scan_date BETWEEN ? AND ? ORDER BY scanned_at ASC, seq ASC`)
	return r.list(ctx, q, startDate, endDate)
}

func (r *ScanRepository) list(ctx context.Context, q string, args ...any) ([]*domain.Scan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var out []*domain.Scan
	for rows.Next() {
		s, err := scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row rowScanner) (*domain.Scan, error) {
	var s domain.Scan
	if err := row.Scan(
		&s.ID, &s.DailyNumber, &s.QRCode, &s.Power, &s.RPM, &s.PowerFactor,
		&s.FailureCode, &s.Status, &s.Timestamp, &s.Result, &s.VoiceRecognition,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// CountByDate jumlah scan pada satu hari
func (r *ScanRepository) CountByDate(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM scans WHERE scan_date = ?`), date).Scan(&n)
	return n, err
}

// Stats counts the results of one day plus the scans of its month.
func (r *ScanRepository) Stats(ctx context.Context, date string) (domain.Stats, error) {
	q := r.d.Rebind(`
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'PASS' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN result = 'FP OK' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN result = 'SP OK' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN result = 'RW' THEN 1 ELSE 0 END), 0)
FROM scans
WHERE scan_date = ?`)

	var st domain.Stats
	if err := r.db.QueryRowContext(ctx, q, date).Scan(
		&st.TodayTotal, &st.TodayPassed, &st.FirstPassed, &st.SecondPassed, &st.Rework,
	); err != nil {
		return domain.Stats{}, err
	}
	st.TodayFailed = st.TodayTotal - st.TodayPassed
	st.TotalPassed = st.FirstPassed + st.SecondPassed

	month := date
	if len(month) >= 7 {
		month = month[:7]
	}
	if err := r.db.QueryRowContext(ctx,
		r.d.Rebind(`SELECT COUNT(*) FROM scans WHERE scan_date LIKE ?`), month+"-%",
	).Scan(&st.MonthlyScans); err != nil {
		return domain.Stats{}, err
	}
	return st, nil
}

// HasFirstPass reports whether qrCode already passed first time.
func (r *ScanRepository) HasFirstPass(ctx context.Context, qrCode string) (bool, error) {
	q := r.d.Rebind(`SELECT 1 FROM scans WHERE qr_code = ? AND result = 'FP OK' LIMIT 1`)
	var one int
	err := r.db.QueryRowContext(ctx, q, qrCode).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// latestSeq finds the newest row matching where; ok is false when none does.
func (r *ScanRepository) latestSeq(ctx context.Context, where string, args ...any) (int64, bool, error) {
	q := `SELECT seq FROM scans`
	if where != "" {
		q += ` WHERE ` + where
	}
	q += ` ORDER BY seq DESC LIMIT 1`

	var seq int64
	err := r.db.QueryRowContext(ctx, r.d.Rebind(q), args...).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

func (r *ScanRepository) updateSeq(ctx context.Context, set string, seq int64, args ...any) (bool, error) {
	q := r.d.Rebind(`UPDATE scans SET ` + set + ` WHERE seq = ?`)
	res, err := r.db.ExecContext(ctx, q, append(args, seq)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateFailureCode hanya update kolom failure_code
func (r *ScanRepository) UpdateFailureCode(ctx context.Context, qrCode, failureCode string) (bool, error) {
	seq, ok, err := r.latestSeq(ctx,
		`qr_code = ? AND status = 'FAIL' AND (failure_code = '' OR failure_code IS NULL)`, qrCode)
	if err != nil || !ok {
		return false, err
	}
	return r.updateSeq(ctx, `failure_code = ?`, seq, failureCode)
}

// UpdateLatestFailed update failure_code dan result pada scan FAIL terakhir
func (r *ScanRepository) UpdateLatestFailed(ctx context.Context, failureCode, result string) (bool, error) {
	seq, ok, err := r.latestSeq(ctx, `status = 'FAIL'`)
	if err != nil || !ok {
		return false, err
	}
	return r.updateSeq(ctx, `failure_code = ?, result = ?`, seq, failureCode, result)
}

// UpdateLatest update failure_code dan result pada scan terakhir
func (r *ScanRepository) UpdateLatest(ctx context.Context, failureCode, result string) (bool, error) {
	seq, ok, err := r.latestSeq(ctx, "")
	if err != nil || !ok {
		return false, err
	}
	return r.updateSeq(ctx, `failure_code = ?, result = ?`, seq, failureCode, result)
}

// UpdateLatestResult update result pada scan terakhir
func (r *ScanRepository) UpdateLatestResult(ctx context.Context, result string) (bool, error) {
	seq, ok, err := r.latestSeq(ctx, "")
	if err != nil || !ok {
		return false, err
	}
	return r.updateSeq(ctx, `result = ?`, seq, result)
}

// DeleteLatest hapus scan terakhir
func (r *ScanRepository) DeleteLatest(ctx context.Context) (bool, error) {
	seq, ok, err := r.latestSeq(ctx, "")
	if err != nil || !ok {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM scans WHERE seq = ?`), seq)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteAll clears the scan log.
func (r *ScanRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scans`)
	return err
}
