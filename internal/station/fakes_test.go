package station

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) SubmitScan(ctx context.Context, qrCode, failureCode string) (ScanResponse, error) {
	args := m.Called(ctx, qrCode, failureCode)
	return args.Get(0).(ScanResponse), args.Error(1)
}

func (m *mockAPI) UpdateFailureCode(ctx context.Context, qrCode, failureCode string) error {
	return m.Called(ctx, qrCode, failureCode).Error(0)
}

func (m *mockAPI) UpdateFailureCodeAndResult(ctx context.Context, failureCode, result string) error {
	return m.Called(ctx, failureCode, result).Error(0)
}

func (m *mockAPI) Undo(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAPI) SetVoiceRecognition(ctx context.Context, option string) (string, error) {
	args := m.Called(ctx, option)
	return args.String(0), args.Error(1)
}

func (m *mockAPI) Dashboard(ctx context.Context, date string) (domain.Dashboard, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(domain.Dashboard), args.Error(1)
}

func (m *mockAPI) ExportURL(startDate, endDate, fileName string) string {
	return m.Called(startDate, endDate, fileName).String(0)
}

func (m *mockAPI) DownloadExport(ctx context.Context, startDate, endDate, fileName string, w io.Writer) error {
	return m.Called(ctx, startDate, endDate, fileName, w).Error(0)
}

// recordingView keeps what the controller rendered.
type recordingView struct {
	mu            sync.Mutex
	notifications []Notification
	cleared       int
	focused       int
	captures      []string
	closed        int
	rows          []*domain.Scan
	counters      domain.Stats
	dark          bool
}

func (v *recordingView) Notify(n Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifications = append(v.notifications, n)
}

func (v *recordingView) ClearInput() { v.mu.Lock(); v.cleared++; v.mu.Unlock() }
func (v *recordingView) FocusInput() { v.mu.Lock(); v.focused++; v.mu.Unlock() }

func (v *recordingView) OpenCapture(qrCode string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.captures = append(v.captures, qrCode)
}

func (v *recordingView) CloseCapture() { v.mu.Lock(); v.closed++; v.mu.Unlock() }

func (v *recordingView) PrependRow(s *domain.Scan) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rows = append([]*domain.Scan{s}, v.rows...)
}

func (v *recordingView) ReplaceRows(rows []*domain.Scan) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rows = append([]*domain.Scan(nil), rows...)
}

func (v *recordingView) SetCounters(s domain.Stats) { v.mu.Lock(); v.counters = s; v.mu.Unlock() }
func (v *recordingView) ApplyTheme(dark bool)       { v.mu.Lock(); v.dark = dark; v.mu.Unlock() }

func (v *recordingView) last() Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.notifications) == 0 {
		return Notification{}
	}
	return v.notifications[len(v.notifications)-1]
}

func passScan(id, code string) *domain.Scan {
	return &domain.Scan{ID: domain.ScanID(id), QRCode: code, Status: domain.StatusPass,
		FailureCode: domain.FailureCodeNone, Result: domain.ResultFirstPass, Timestamp: "2024-05-01 10:00:00"}
}

func failScan(id, code, failure string) *domain.Scan {
	return &domain.Scan{ID: domain.ScanID(id), QRCode: code, Status: domain.StatusFail,
		FailureCode: failure, Result: failure, Timestamp: "2024-05-01 10:00:00"}
}

func ok(s *domain.Scan) ScanResponse {
	return ScanResponse{Success: true, Data: s}
}
