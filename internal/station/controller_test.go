package station

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

var ctx = context.Background()

func newController(t *testing.T) (*Controller, *mockAPI, *recordingView) {
	t.Helper()
	api := &mockAPI{}
	view := &recordingView{}
	c := NewController(api, view, WithPrefs(PrefsStore{Path: filepath.Join(t.TempDir(), "prefs.yaml")}))
	return c, api, view
}

func TestDoubleEnterSubmitsOnce(t *testing.T) {
	c, api, view := newController(t)
	api.On("SubmitScan", mock.Anything, "ABC123", "NA").Return(ok(passScan("1", "ABC123")), nil).Once()

	out, err := c.OnKeyEvent(ctx, KeyEnter, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, Prompted, out)
	assert.Equal(t, AwaitingConfirmation, c.State())
	assert.Equal(t, Notification{Kind: Info, Message: MsgConfirm}, view.last())
	api.AssertNotCalled(t, "SubmitScan", mock.Anything, mock.Anything, mock.Anything)

	out, err = c.OnKeyEvent(ctx, KeyEnter, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, Submitted, out)
	assert.Equal(t, AwaitingFirstEnter, c.State())
	api.AssertNumberOfCalls(t, "SubmitScan", 1)
}

func TestEditResetsConfirmation(t *testing.T) {
	c, api, _ := newController(t)

	c.OnKeyEvent(ctx, KeyEnter, "ABC")
	out, _ := c.OnKeyEvent(ctx, KeyOther, "ABC1")
	assert.Equal(t, Reset, out)
	assert.Equal(t, AwaitingFirstEnter, c.State())

	out, _ = c.OnKeyEvent(ctx, KeyEnter, "ABC1")
	assert.Equal(t, Prompted, out)
	api.AssertNotCalled(t, "SubmitScan", mock.Anything, mock.Anything, mock.Anything)
}

func TestKeysIgnoredWithoutFocus(t *testing.T) {
	c, _, view := newController(t)
	c.SetFocus(false)

	out, err := c.OnKeyEvent(ctx, KeyEnter, "ABC")
	require.NoError(t, err)
	assert.Equal(t, Ignored, out)
	assert.Equal(t, AwaitingFirstEnter, c.State())
	assert.Empty(t, view.notifications)
}

// Enter submits exactly when the previous event was a non-submitting Enter.
func TestRandomKeySequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		c, api, _ := newController(t)
		api.On("SubmitScan", mock.Anything, "Q", "NA").Return(ok(passScan("", "Q")), nil).Maybe()

		armed := false
		want := 0
		for i := 0; i < 40; i++ {
			if rng.Intn(3) == 0 {
				c.OnKeyEvent(ctx, KeyOther, "Q")
				armed = false
				continue
			}
			out, _ := c.OnKeyEvent(ctx, KeyEnter, "Q")
			if armed {
				want++
				armed = false
				assert.Equal(t, Submitted, out)
			} else {
				armed = true
				assert.Equal(t, Prompted, out)
			}
		}
		api.AssertNumberOfCalls(t, "SubmitScan", want)
	}
}

func TestEmptySubmissionNeverHitsNetwork(t *testing.T) {
	c, api, view := newController(t)

	for _, field := range []string{"", "   ", "\t"} {
		c.OnKeyEvent(ctx, KeyOther, field)
		err := c.SubmitScan(ctx, domain.FailureCodeNone)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, Error, view.last().Kind)
	}
	api.AssertNotCalled(t, "SubmitScan", mock.Anything, mock.Anything, mock.Anything)
}

func TestFailWithoutCodeOpensOneCapture(t *testing.T) {
	c, api, view := newController(t)
	api.On("SubmitScan", mock.Anything, "XYZ999", "NA").Return(ok(failScan("1", "XYZ999", "")), nil).Once()

	c.OnKeyEvent(ctx, KeyOther, "XYZ999")
	require.NoError(t, c.SubmitScan(ctx, "NA"))

	assert.Equal(t, []string{"XYZ999"}, view.captures)
	require.NotNil(t, c.Pending())
	assert.Equal(t, "XYZ999", c.Pending().QRCode)
	assert.Equal(t, "", c.Field())

	c.OnKeyEvent(ctx, KeyOther, "NEXT1")
	err := c.SubmitScan(ctx, "NA")
	assert.ErrorIs(t, err, ErrCapturePending)
	assert.Len(t, view.captures, 1)
	api.AssertNumberOfCalls(t, "SubmitScan", 1)

	c.CancelCapture()
	assert.Nil(t, c.Pending())
	assert.Equal(t, 1, view.closed)
}

func TestPassOrCodedFailNeverOpensCapture(t *testing.T) {
	c, api, view := newController(t)
	api.On("SubmitScan", mock.Anything, "P1", "NA").Return(ok(passScan("1", "P1")), nil)
	api.On("SubmitScan", mock.Anything, "F1", "NA").Return(ok(failScan("2", "F1", "E5")), nil)
	api.On("SubmitScan", mock.Anything, "U1", "NA").Return(ok(failScan("3", "U1", domain.FailureCodeUnknownModel)), nil)

	for _, code := range []string{"P1", "F1", "U1"} {
		c.OnKeyEvent(ctx, KeyOther, code)
		require.NoError(t, c.SubmitScan(ctx, "NA"))
		assert.Nil(t, c.Pending())
	}
	assert.Empty(t, view.captures)
	assert.Equal(t, Notification{Kind: Error, Message: MsgScanFail}, view.last())
}

func TestSubmissionErrorKeepsField(t *testing.T) {
	c, api, view := newController(t)
	api.On("SubmitScan", mock.Anything, "A1", "NA").
		Return(ScanResponse{}, &APIError{StatusCode: 500, Message: "Failed to read sensors data from RS485"}).Once()
	api.On("SubmitScan", mock.Anything, "A1", "NA").
		Return(ScanResponse{}, errors.New("connection refused")).Once()
	api.On("SubmitScan", mock.Anything, "A1", "NA").
		Return(ScanResponse{Success: false, Duplicate: true, Message: "Duplicate scan not allowed."}, nil).Once()

	c.OnKeyEvent(ctx, KeyOther, "A1")

	var serr *SubmissionError
	require.ErrorAs(t, c.SubmitScan(ctx, "NA"), &serr)
	assert.Equal(t, "Failed to read sensors data from RS485", serr.Msg)

	require.ErrorAs(t, c.SubmitScan(ctx, "NA"), &serr)
	assert.Equal(t, MsgSubmitFailed, serr.Msg)

	require.ErrorAs(t, c.SubmitScan(ctx, "NA"), &serr)
	assert.Equal(t, "Duplicate scan not allowed.", view.last().Message)

	assert.Equal(t, "A1", c.Field())
	assert.Zero(t, view.cleared)
	assert.Empty(t, c.Rows())
}

func TestFailureCodeCapture(t *testing.T) {
	c, api, view := newController(t)
	api.On("SubmitScan", mock.Anything, "XYZ999", "NA").Return(ok(failScan("1", "XYZ999", "")), nil)

	c.OnKeyEvent(ctx, KeyOther, "XYZ999")
	require.NoError(t, c.SubmitScan(ctx, "NA"))

	var verr *ValidationError
	require.ErrorAs(t, c.OnFailureCodeCaptured(ctx, "  "), &verr)

	api.On("UpdateFailureCode", mock.Anything, "XYZ999", "E12").
		Return(&APIError{StatusCode: 404, Message: "No matching failed scan found"}).Once()
	var serr *SubmissionError
	require.ErrorAs(t, c.OnFailureCodeCaptured(ctx, "E12"), &serr)
	assert.Equal(t, "No matching failed scan found", serr.Msg)
	assert.NotNil(t, c.Pending())
	assert.Zero(t, view.closed)

	updated := failScan("1", "XYZ999", "E12")
	api.On("UpdateFailureCode", mock.Anything, "XYZ999", "E12").Return(nil).Once()
	api.On("Dashboard", mock.Anything, "").Return(domain.Dashboard{
		Scans: []*domain.Scan{updated},
		Stats: domain.Stats{TodayTotal: 1, TodayFailed: 1, MonthlyScans: 1},
	}, nil).Once()

	require.NoError(t, c.OnFailureCodeCaptured(ctx, "E12"))
	assert.Nil(t, c.Pending())
	assert.Equal(t, 1, view.closed)
	require.Len(t, c.Rows(), 1)
	assert.Equal(t, "E12", c.Rows()[0].FailureCode)
	api.AssertExpectations(t)

	assert.ErrorIs(t, c.OnFailureCodeCaptured(ctx, "E1"), ErrNoCapture)
}

func TestFailureCodeAndResultDefaultsResult(t *testing.T) {
	c, api, _ := newController(t)
	api.On("SubmitScan", mock.Anything, "X", "NA").Return(ok(failScan("1", "X", "")), nil)
	api.On("UpdateFailureCodeAndResult", mock.Anything, "E3", "E3").Return(nil).Once()
	api.On("Dashboard", mock.Anything, "").Return(domain.Dashboard{}, nil)

	c.OnKeyEvent(ctx, KeyOther, "X")
	require.NoError(t, c.SubmitScan(ctx, "NA"))
	require.NoError(t, c.OnFailureCodeAndResultCaptured(ctx, "E3", ""))
	assert.Nil(t, c.Pending())
	api.AssertExpectations(t)
}

func TestCountersMatchDistinctScans(t *testing.T) {
	c, api, view := newController(t)
	own := passScan("own", "A1")
	api.On("SubmitScan", mock.Anything, "A1", "NA").Return(ok(own), nil)

	// own echo after the HTTP reply, plus a foreign scan
	assert.True(t, c.OnPushedScan(*passScan("other", "B1")))
	c.OnKeyEvent(ctx, KeyOther, "A1")
	require.NoError(t, c.SubmitScan(ctx, "NA"))
	assert.False(t, c.OnPushedScan(*own))
	assert.False(t, c.OnPushedScan(*passScan("other", "B1")))
	assert.True(t, c.OnPushedScan(*failScan("f", "C1", "E1")))

	got := c.Counters()
	assert.Equal(t, 3, got.TodayTotal)
	assert.Equal(t, 2, got.TodayPassed)
	assert.Equal(t, 1, got.TodayFailed)
	assert.Equal(t, 2, got.FirstPassed)
	assert.Len(t, c.Rows(), 3)
	assert.Equal(t, "f", string(c.Rows()[0].ID))
	assert.Equal(t, got, view.counters)
	assert.Len(t, view.rows, 3)
}

func TestEchoBeforeReplyCountsOnce(t *testing.T) {
	c, api, view := newController(t)
	own := passScan("own", "A1")
	api.On("SubmitScan", mock.Anything, "A1", "NA").Return(ok(own), nil).Once()

	assert.True(t, c.OnPushedScan(*own))
	c.OnKeyEvent(ctx, KeyOther, "A1")
	require.NoError(t, c.SubmitScan(ctx, "NA"))

	assert.Len(t, c.Rows(), 1)
	assert.Equal(t, 1, c.Counters().TodayTotal)
	assert.Equal(t, 1, c.Counters().TodayPassed)
	assert.Len(t, view.rows, 1)
	assert.Nil(t, c.Pending())
}

func TestEchoBeforeReplyStillOpensCapture(t *testing.T) {
	c, api, view := newController(t)
	own := failScan("f1", "B1", "")
	api.On("SubmitScan", mock.Anything, "B1", "NA").Return(ok(own), nil).Once()

	assert.True(t, c.OnPushedScan(*own))
	c.OnKeyEvent(ctx, KeyOther, "B1")
	require.NoError(t, c.SubmitScan(ctx, "NA"))

	assert.Len(t, c.Rows(), 1)
	assert.Equal(t, 1, c.Counters().TodayTotal)
	assert.Equal(t, 1, c.Counters().TodayFailed)
	require.NotNil(t, c.Pending())
	assert.Equal(t, "B1", c.Pending().QRCode)
	assert.Equal(t, []string{"B1"}, view.captures)
}

func TestFailedSubmissionResetsConfirmation(t *testing.T) {
	c, api, _ := newController(t)
	api.On("SubmitScan", mock.Anything, "A1", "NA").
		Return(ScanResponse{}, errors.New("connection refused")).Once()
	api.On("SubmitScan", mock.Anything, "A1", "NA").
		Return(ScanResponse{Success: false, Duplicate: true, Message: "Duplicate scan not allowed."}, nil).Once()

	for i := 0; i < 2; i++ {
		c.OnKeyEvent(ctx, KeyOther, "A1")
		out, err := c.OnKeyEvent(ctx, KeyEnter, "A1")
		require.NoError(t, err)
		require.Equal(t, Prompted, out)
		require.Equal(t, AwaitingConfirmation, c.State())

		assert.Error(t, c.SubmitScan(ctx, "NA"))
		assert.Equal(t, AwaitingFirstEnter, c.State())
	}

	c.OnKeyEvent(ctx, KeyEnter, "")
	require.Equal(t, AwaitingConfirmation, c.State())
	assert.Error(t, c.SubmitScan(ctx, "NA"))
	assert.Equal(t, AwaitingFirstEnter, c.State())
	api.AssertExpectations(t)
}

func TestCountersMonotonicUnderPushes(t *testing.T) {
	c, _, _ := newController(t)
	rng := rand.New(rand.NewSource(3))
	prev := 0
	for i := 0; i < 100; i++ {
		id := rng.Intn(30)
		s := passScan(string(rune('A'+id)), "Q")
		if id%2 == 0 {
			s = failScan(string(rune('A'+id)), "Q", "E")
		}
		c.OnPushedScan(*s)
		n := c.Counters().TodayTotal
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
	assert.Equal(t, len(c.Rows()), c.Counters().TodayTotal)
}

func TestResyncAndFilterDate(t *testing.T) {
	c, api, view := newController(t)
	api.On("Dashboard", mock.Anything, "2024-04-30").Return(domain.Dashboard{
		SelectedDate: "2024-04-30",
		Scans:        []*domain.Scan{passScan("old", "A")},
		Stats:        domain.Stats{TodayTotal: 1, TodayPassed: 1},
	}, nil).Once()

	var verr *ValidationError
	require.ErrorAs(t, c.FilterDate(ctx, "30/04/2024"), &verr)

	require.NoError(t, c.FilterDate(ctx, "2024-04-30"))
	assert.Equal(t, "2024-04-30", c.Date())
	assert.Len(t, view.rows, 1)
	assert.Equal(t, 1, view.counters.TodayTotal)

	// a late echo of a row already loaded is not counted again
	assert.False(t, c.OnPushedScan(*passScan("old", "A")))

	api.On("Dashboard", mock.Anything, "2024-04-30").Return(domain.Dashboard{}, errors.New("offline")).Once()
	var serr *SubmissionError
	require.ErrorAs(t, c.Resync(ctx), &serr)
	assert.Len(t, c.Rows(), 1)
}

func TestUndo(t *testing.T) {
	c, api, view := newController(t)
	api.On("Undo", mock.Anything).Return(&APIError{StatusCode: 404, Message: "No scans to remove"}).Once()
	var serr *SubmissionError
	require.ErrorAs(t, c.Undo(ctx), &serr)
	assert.Equal(t, "No scans to remove", view.last().Message)

	api.On("Undo", mock.Anything).Return(nil).Once()
	api.On("Dashboard", mock.Anything, "").Return(domain.Dashboard{Scans: []*domain.Scan{}}, nil).Once()
	require.NoError(t, c.Undo(ctx))
	api.AssertExpectations(t)
}

func TestVoiceRecognition(t *testing.T) {
	c, api, view := newController(t)
	var verr *ValidationError
	require.ErrorAs(t, c.SetVoiceRecognition(ctx, "maybe"), &verr)

	api.On("SetVoiceRecognition", mock.Anything, "OK").Return("OK", nil).Once()
	require.NoError(t, c.SetVoiceRecognition(ctx, "ok"))
	assert.Equal(t, Success, view.last().Kind)
}

func TestToggleThemePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	view := &recordingView{}
	c := NewController(&mockAPI{}, view, WithPrefs(PrefsStore{Path: path}))
	assert.False(t, c.DarkMode())

	require.NoError(t, c.ToggleTheme())
	assert.True(t, view.dark)

	p, err := PrefsStore{Path: path}.Load()
	require.NoError(t, err)
	assert.True(t, p.DarkMode)

	view2 := &recordingView{}
	c2 := NewController(&mockAPI{}, view2, WithPrefs(PrefsStore{Path: path}))
	assert.True(t, c2.DarkMode())
	assert.True(t, view2.dark)
}

func TestExport(t *testing.T) {
	api := &mockAPI{}
	view := &recordingView{}
	now := func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local) }
	c := NewController(api, view, WithClock(now))

	api.On("ExportURL", "2024-05-01", "2024-05-01", "scan_report_2024-05-01").Return("http://x/export").Once()
	assert.Equal(t, "http://x/export", c.ExportURL("", "", ""))

	dir := t.TempDir()
	api.On("DownloadExport", mock.Anything, "2024-05-01", "2024-05-02", "may", mock.Anything).Return(nil).Once()
	path, err := c.DownloadExport(ctx, "2024-05-01", "2024-05-02", "may", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "may.xlsx"), path)

	api.On("DownloadExport", mock.Anything, "2024-05-01", "2024-05-01", "none", mock.Anything).
		Return(&APIError{StatusCode: 404, Message: "No data found"}).Once()
	_, err = c.DownloadExport(ctx, "2024-05-01", "", "none", dir)
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "No data found", serr.Msg)
	assert.NoFileExists(t, filepath.Join(dir, "none.xlsx"))

	_, err = c.DownloadExport(ctx, "May 1", "", "x", dir)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFailedExportKeepsExistingReport(t *testing.T) {
	api := &mockAPI{}
	c := NewController(api, &recordingView{})
	dir := t.TempDir()
	existing := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(existing, []byte("old report"), 0o644))

	api.On("DownloadExport", mock.Anything, "2024-05-01", "2024-05-01", "report", mock.Anything).
		Run(func(args mock.Arguments) {
			io.WriteString(args.Get(4).(io.Writer), "partial")
		}).
		Return(&APIError{StatusCode: 404, Message: "No data found"}).Once()

	_, err := c.DownloadExport(ctx, "2024-05-01", "", "report", dir)
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old report", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSuccessfulExportReplacesReport(t *testing.T) {
	api := &mockAPI{}
	c := NewController(api, &recordingView{})
	dir := t.TempDir()
	existing := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(existing, []byte("old report"), 0o644))

	api.On("DownloadExport", mock.Anything, "2024-05-01", "2024-05-01", "report", mock.Anything).
		Run(func(args mock.Arguments) {
			io.WriteString(args.Get(4).(io.Writer), "new report")
		}).
		Return(nil).Once()

	path, err := c.DownloadExport(ctx, "2024-05-01", "", "report", dir)
	require.NoError(t, err)
	assert.Equal(t, existing, path)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "new report", string(data))
}

func TestExportRejectsEscapingFileName(t *testing.T) {
	api := &mockAPI{}
	view := &recordingView{}
	c := NewController(api, view)
	parent := t.TempDir()
	dir := filepath.Join(parent, "reports")
	require.NoError(t, os.Mkdir(dir, 0o755))
	victim := filepath.Join(parent, "victim.txt.xlsx")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o644))

	for _, name := range []string{"../victim.txt", "a/b", `a\b`} {
		_, err := c.DownloadExport(ctx, "2024-05-01", "", name, dir)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Equal(t, "file_name", verr.Field)
	}
	assert.Equal(t, MsgInvalidFileName, view.last().Message)

	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	api.AssertNotCalled(t, "DownloadExport", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
