package scans

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, s *Scan) error
	Latest(ctx context.Context) (*Scan, error)
	ListByDate(ctx context.Context, date string) ([]*Scan, error)
	ListBetween(ctx context.Context, startDate, endDate string) ([]*Scan, error)
	CountByDate(ctx context.Context, date string) (int, error)
	Stats(ctx context.Context, date string) (Stats, error)
	HasFirstPass(ctx context.Context, qrCode string) (bool, error)

	// UpdateFailureCode fills the failure code of the newest FAIL scan of
	// qrCode whose failure code is still empty. It reports whether a row changed.
	UpdateFailureCode(ctx context.Context, qrCode, failureCode string) (bool, error)
	UpdateLatestFailed(ctx context.Context, failureCode, result string) (bool, error)
	UpdateLatest(ctx context.Context, failureCode, result string) (bool, error)
	UpdateLatestResult(ctx context.Context, result string) (bool, error)
	DeleteLatest(ctx context.Context) (bool, error)
	DeleteAll(ctx context.Context) error
}

// Meter port (interface untuk membaca sensor RS485)
type Meter interface {
	Read(ctx context.Context) (Reading, error)
}

// Publisher pushes new scans to every connected station.
type Publisher interface {
	Publish(ctx context.Context, ev NewScanEvent)
}

// ReportWriter renders exported scans into a spreadsheet.
type ReportWriter interface {
	Write(w io.Writer, rows []*Scan) error
	ContentType() string
	Extension() string
}

// ArchiveStore port (interface untuk penyimpanan laporan)
type ArchiveStore interface {
	Upload(ctx context.Context, r io.Reader, size int64, key, contentType string) (string, error)
}
