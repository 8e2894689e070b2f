package scans

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/qa-scanlog/internal/application"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/domain/settings"
	"github.com/bryanwahyu/qa-scanlog/internal/domain/specs"
)

// Service implements use-cases untuk Scan.
// Archive, Publisher and Observer are optional.
type Service struct {
	Repo      domain.Repository
	Specs     specs.Repository
	Settings  settings.Repository
	Meter     domain.Meter
	Publisher domain.Publisher
	Reports   domain.ReportWriter
	Archive   domain.ArchiveStore
	Observer  Observer
	Clock     application.Clock
	Log       zerolog.Logger
}

// Observer receives scan outcomes for metrics.
type Observer interface {
	ObserveScan(*domain.Scan)
	ObserveRejected(reason string)
	ObserveMeterRead(time.Duration)
}

//
// ==== USE CASES ====
//

// SubmitResult is returned for an accepted scan.
type SubmitResult struct {
	Scan  *domain.Scan `json:"data"`
	Stats domain.Stats `json:"stats"`
}

// Submit reads the meters, grades the reading, stores the scan and pushes it
// to every connected station.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (SubmitResult, error) {
	code := strings.TrimSpace(req.QRCode)
	if code == "" {
		return SubmitResult{}, domain.Invalid("QR code is required")
	}
	failureCode := req.FailureCode
	if failureCode == "" {
		failureCode = domain.FailureCodeNone
	}

	dup, err := s.Repo.HasFirstPass(ctx, code)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("checking duplicate: %w", err)
	}
	if dup {
		s.rejected("duplicate")
		return SubmitResult{}, domain.ErrDuplicatePass
	}

	start := time.Now()
	reading, err := s.Meter.Read(ctx)
	if s.Observer != nil {
		s.Observer.ObserveMeterRead(time.Since(start))
	}
	if err != nil {
		s.rejected("meter")
		s.Log.Error().Err(err).Str("qr_code", code).Msg("meter read failed")
		return SubmitResult{}, &domain.Error{Kind: domain.ErrMeterUnavailable, Msg: "Failed to read sensors data from RS485"}
	}

	scan, err := s.insert(ctx, code, reading, failureCode)
	if err != nil {
		return SubmitResult{}, err
	}

	stats, err := s.Repo.Stats(ctx, scan.Day())
	if err != nil {
		return SubmitResult{}, fmt.Errorf("computing stats: %w", err)
	}

	if s.Publisher != nil {
		s.Publisher.Publish(ctx, domain.NewScanEvent{Scan: *scan, Stats: stats})
	}
	if s.Observer != nil {
		s.Observer.ObserveScan(scan)
	}
	s.Log.Info().
		Str("qr_code", scan.QRCode).
		Int("daily_number", scan.DailyNumber).
		Str("status", string(scan.Status)).
		Str("result", scan.Result).
		Msg("scan recorded")

	return SubmitResult{Scan: scan, Stats: stats}, nil
}

func (s *Service) rejected(reason string) {
	if s.Observer != nil {
		s.Observer.ObserveRejected(reason)
	}
}

func (s *Service) insert(ctx context.Context, code string, r domain.Reading, failureCode string) (*domain.Scan, error) {
	voice, err := s.defaultVoice(ctx)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	today := now.Format(domain.DateLayout)
	n, err := s.Repo.CountByDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("counting today's scans: %w", err)
	}

	spec, err := s.Specs.Get(ctx, specs.PrefixOf(code))
	if err != nil {
		return nil, fmt.Errorf("loading model limits: %w", err)
	}
	out := domain.Evaluate(spec, r, failureCode)

	scan := &domain.Scan{
		ID:               domain.ScanID(uuid.New().String()),
		DailyNumber:      n + 1,
		QRCode:           code,
		Power:            r.Power,
		RPM:              r.RPM,
		PowerFactor:      r.PowerFactor,
		FailureCode:      out.FailureCode,
		Status:           out.Status,
		Timestamp:        domain.FormatTimestamp(now),
		Result:           out.Result,
		VoiceRecognition: voice,
	}
	if err := s.Repo.Save(ctx, scan); err != nil {
		return nil, fmt.Errorf("saving scan: %w", err)
	}
	return scan, nil
}

func (s *Service) defaultVoice(ctx context.Context) (string, error) {
	v, ok, err := s.Settings.Get(ctx, settings.KeyDefaultVoiceRecognition)
	if err != nil {
		return "", fmt.Errorf("reading voice setting: %w", err)
	}
	if !ok {
		return domain.VoiceNA, nil
	}
	return v, nil
}

// UpdateFailureCode fills in the failure code captured after a FAIL scan.
func (s *Service) UpdateFailureCode(ctx context.Context, qrCode, failureCode string) error {
	qrCode = strings.TrimSpace(qrCode)
	failureCode = strings.TrimSpace(failureCode)
	if qrCode == "" || failureCode == "" {
		return domain.Invalid("QR code and failure code are required")
	}
	ok, err := s.Repo.UpdateFailureCode(ctx, qrCode, failureCode)
	if err != nil {
		return fmt.Errorf("updating failure code: %w", err)
	}
	if !ok {
		return domain.NotFound("No matching failed scan found")
	}
	return nil
}

// UpdateFailureCodeAndResult sets both columns on the newest FAIL scan.
func (s *Service) UpdateFailureCodeAndResult(ctx context.Context, failureCode, result string) error {
	failureCode = strings.TrimSpace(failureCode)
	result = strings.TrimSpace(result)
	if failureCode == "" {
		return domain.Invalid("Failure code is required")
	}
	ok, err := s.Repo.UpdateLatestFailed(ctx, failureCode, result)
	if err != nil {
		return fmt.Errorf("updating failed scan: %w", err)
	}
	if !ok {
		return domain.NotFound("No failed scan found")
	}
	return nil
}

// EditLastScan overwrites failure code and result of the newest scan.
func (s *Service) EditLastScan(ctx context.Context, failureCode, result string) error {
	failureCode = strings.TrimSpace(failureCode)
	result = strings.TrimSpace(result)
	if failureCode == "" || result == "" {
		return domain.Invalid("Both failure code and result are required")
	}
	ok, err := s.Repo.UpdateLatest(ctx, failureCode, result)
	if err != nil {
		return fmt.Errorf("editing last scan: %w", err)
	}
	if !ok {
		return domain.NotFound("No scans found")
	}
	return nil
}

// UpdateResult overwrites the result of the newest scan.
func (s *Service) UpdateResult(ctx context.Context, result string) error {
	result = strings.TrimSpace(result)
	if result == "" {
		return domain.Invalid("Result is required")
	}
	ok, err := s.Repo.UpdateLatestResult(ctx, result)
	if err != nil {
		return fmt.Errorf("updating result: %w", err)
	}
	if !ok {
		return domain.NotFound("No scans found")
	}
	return nil
}

// Undo removes the most recent scan.
func (s *Service) Undo(ctx context.Context) error {
	ok, err := s.Repo.DeleteLatest(ctx)
	if err != nil {
		return fmt.Errorf("removing last scan: %w", err)
	}
	if !ok {
		return domain.NotFound("No scans to remove")
	}
	s.Log.Info().Msg("last scan removed")
	return nil
}

// Clear deletes every scan; model limits and settings stay.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.Repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing scans: %w", err)
	}
	s.Log.Warn().Msg("all scan logs cleared")
	return nil
}

// Last returns the newest scan.
func (s *Service) Last(ctx context.Context) (*domain.Scan, error) {
	scan, err := s.Repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if scan == nil {
		return nil, domain.NotFound("No scans found")
	}
	return scan, nil
}

// Dashboard ambil rows dan counters untuk satu tanggal; empty date means today.
func (s *Service) Dashboard(ctx context.Context, date string) (domain.Dashboard, error) {
	if date == "" {
		date = s.Clock.Now().Format(domain.DateLayout)
	}
	list, err := s.Repo.ListByDate(ctx, date)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("listing scans: %w", err)
	}
	stats, err := s.Repo.Stats(ctx, date)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("computing stats: %w", err)
	}
	models, err := s.Specs.List(ctx)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("listing models: %w", err)
	}
	if list == nil {
		list = []*domain.Scan{}
	}
	return domain.Dashboard{SelectedDate: date, Scans: list, Stats: stats, Models: models}, nil
}

// ExportCommand selects the rows to export.
type ExportCommand struct {
	StartDate string
	EndDate   string
	FileName  string
}

// ExportResult is a rendered report ready to be sent as an attachment.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
	ArchiveURL  string
}

// Export renders every scan between two dates (inclusive) into a report.
func (s *Service) Export(ctx context.Context, cmd ExportCommand) (ExportResult, error) {
	if cmd.StartDate == "" || cmd.EndDate == "" {
		return ExportResult{}, domain.Invalid("Date range is required")
	}
	name := strings.TrimSpace(cmd.FileName)
	if name == "" {
		name = "scan_report"
	}

	rows, err := s.Repo.ListBetween(ctx, cmd.StartDate, cmd.EndDate)
	if err != nil {
		return ExportResult{}, fmt.Errorf("listing export rows: %w", err)
	}
	if len(rows) == 0 {
		return ExportResult{}, domain.NotFound("No data found")
	}

	var buf bytes.Buffer
	if err := s.Reports.Write(&buf, rows); err != nil {
		return ExportResult{}, fmt.Errorf("rendering report: %w", err)
	}
	res := ExportResult{
		FileName:    name + s.Reports.Extension(),
		ContentType: s.Reports.ContentType(),
		Data:        buf.Bytes(),
	}

	// archive failures never block the download
	if s.Archive != nil {
		key := fmt.Sprintf("exports/%s_%s/%s", cmd.StartDate, cmd.EndDate, res.FileName)
		url, err := s.Archive.Upload(ctx, bytes.NewReader(res.Data), int64(len(res.Data)), key, res.ContentType)
		if err != nil {
			s.Log.Warn().Err(err).Str("key", key).Msg("archiving export failed")
		} else {
			res.ArchiveURL = url
		}
	}
	return res, nil
}
