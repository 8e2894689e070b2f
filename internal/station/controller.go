// Package station is the operator side of the scan log: it turns scanner
// keystrokes into scan submissions and keeps the visible log in step with
// the server.
package station

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/middleware"
)

// InputState of the double-Enter rule.
type InputState int

const (
	AwaitingFirstEnter InputState = iota
	AwaitingConfirmation
)

func (s InputState) String() string {
	if s == AwaitingConfirmation {
		return "awaiting-confirmation"
	}
	return "awaiting-first-enter"
}

type Key int

const (
	KeyOther Key = iota
	KeyEnter
)

// Outcome tells the caller what a key event did.
type Outcome int

const (
	Ignored Outcome = iota
	Reset
	Prompted
	Submitted
)

// PendingSubmission is a FAIL scan still waiting for its failure code.
type PendingSubmission struct {
	QRCode string
}

// Notification texts.
const (
	MsgConfirm         = "Press Enter again to confirm submission"
	MsgEnterQRCode     = "Please enter the QR code"
	MsgEnterFailure    = "Enter a failure code"
	MsgScanPass        = "Scan added - PASS"
	MsgScanFail        = "Scan added - FAIL"
	MsgSubmitFailed    = "Failed to submit scan"
	MsgFailureUpdated  = "Failure code updated"
	MsgFailureFailed   = "Failed to update failure code"
	MsgCaptureOpen     = "Finish the failure code of the previous scan first"
	MsgUndone          = "Last scan removed"
	MsgUndoFailed      = "Failed to remove scan"
	MsgResyncFailed    = "Failed to refresh scan log"
	MsgVoiceFailed     = "Failed to update voice recognition"
	MsgExportFailed    = "Failed to export"
	MsgInvalidDate     = "Invalid date, expected YYYY-MM-DD"
	MsgInvalidFileName = "Invalid file name"
)

// API is the part of the scan server the controller needs.
type API interface {
	SubmitScan(ctx context.Context, qrCode, failureCode string) (ScanResponse, error)
	UpdateFailureCode(ctx context.Context, qrCode, failureCode string) error
	UpdateFailureCodeAndResult(ctx context.Context, failureCode, result string) error
	Undo(ctx context.Context) error
	SetVoiceRecognition(ctx context.Context, option string) (string, error)
	Dashboard(ctx context.Context, date string) (domain.Dashboard, error)
	ExportURL(startDate, endDate, fileName string) string
	DownloadExport(ctx context.Context, startDate, endDate, fileName string, w io.Writer) error
}

// Controller owns the input field, the confirmation state, the pending
// capture and the displayed rows and counters. Network calls run without
// the lock; results are applied under it.
type Controller struct {
	api   API
	view  View
	prefs PrefsStore
	log   zerolog.Logger
	now   func() time.Time

	mu       sync.Mutex
	focused  bool
	field    string
	state    InputState
	pending  *PendingSubmission
	rows     []*domain.Scan
	counters domain.Stats
	seen     map[domain.ScanID]bool
	date     string
	dark     bool
}

// Option configures a Controller.
type Option func(*Controller)

func WithPrefs(store PrefsStore) Option { return func(c *Controller) { c.prefs = store } }

func WithLogger(log zerolog.Logger) Option { return func(c *Controller) { c.log = log } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func NewController(api API, view View, opts ...Option) *Controller {
	c := &Controller{
		api:     api,
		view:    view,
		log:     zerolog.Nop(),
		now:     time.Now,
		focused: true,
		seen:    make(map[domain.ScanID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	p, err := c.prefs.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("loading station prefs")
	}
	c.dark = p.DarkMode
	c.view.ApplyTheme(c.dark)
	return c
}

//
// ==== accessors ====
//

func (c *Controller) State() InputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Field() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.field
}

// Pending returns a copy of the open capture, or nil.
func (c *Controller) Pending() *PendingSubmission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

func (c *Controller) Counters() domain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Rows returns the displayed scans, newest first.
func (c *Controller) Rows() []*domain.Scan {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Scan, len(c.rows))
	copy(out, c.rows)
	return out
}

func (c *Controller) Date() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

func (c *Controller) DarkMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dark
}

// SetFocus marks whether the input field has focus; keys are ignored
// without it.
func (c *Controller) SetFocus(focused bool) {
	c.mu.Lock()
	c.focused = focused
	c.mu.Unlock()
}

//
// ==== input ====
//

// OnKeyEvent runs the double-Enter rule. field is the input value after the
// key. A non-Enter key is an edit and always resets the rule.
func (c *Controller) OnKeyEvent(ctx context.Context, key Key, field string) (Outcome, error) {
	c.mu.Lock()
	if !c.focused {
		c.mu.Unlock()
		return Ignored, nil
	}
	c.field = field

	if key != KeyEnter {
		c.state = AwaitingFirstEnter
		c.mu.Unlock()
		return Reset, nil
	}

	if c.state == AwaitingFirstEnter {
		c.state = AwaitingConfirmation
		c.view.Notify(Notification{Kind: Info, Message: MsgConfirm})
		c.mu.Unlock()
		return Prompted, nil
	}

	c.state = AwaitingFirstEnter
	c.mu.Unlock()
	return Submitted, c.SubmitScan(ctx, domain.FailureCodeNone)
}

// SubmitScan sends the field as a new scan. The field is kept when the
// request fails so the operator can retry; the confirmation state is reset
// either way.
func (c *Controller) SubmitScan(ctx context.Context, failureCode string) error {
	c.mu.Lock()
	c.state = AwaitingFirstEnter
	if c.pending != nil {
		c.view.Notify(Notification{Kind: Error, Message: MsgCaptureOpen})
		c.mu.Unlock()
		return ErrCapturePending
	}
	code := strings.TrimSpace(c.field)
	if code == "" {
		c.view.Notify(Notification{Kind: Error, Message: MsgEnterQRCode})
		c.mu.Unlock()
		return &ValidationError{Field: "qr_code", Msg: MsgEnterQRCode}
	}
	c.mu.Unlock()

	if failureCode == "" {
		failureCode = domain.FailureCodeNone
	}
	resp, err := c.api.SubmitScan(ctx, code, failureCode)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		serr := submissionError("scan", MsgSubmitFailed, err)
		c.log.Warn().Err(err).Str("qr_code", code).Msg("scan submission failed")
		c.view.Notify(Notification{Kind: Error, Message: serr.Msg})
		return serr
	}
	if !resp.Success || resp.Data == nil {
		msg := resp.Message
		if msg == "" {
			msg = MsgSubmitFailed
		}
		c.view.Notify(Notification{Kind: Error, Message: msg})
		return &SubmissionError{Op: "scan", Msg: msg}
	}

	c.field = ""
	c.view.ClearInput()
	c.view.FocusInput()
	c.accept(resp.Data)

	if resp.Data.NeedsFailureCode() {
		c.pending = &PendingSubmission{QRCode: code}
		c.view.OpenCapture(code)
		return nil
	}
	c.notifyOutcome(resp.Data)
	return nil
}

// OnFailureCodeCaptured sends the failure code of the pending scan. The
// capture stays open when the request fails.
func (c *Controller) OnFailureCodeCaptured(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	pending, err := c.beginCapture(code)
	if err != nil {
		return err
	}
	if err := c.api.UpdateFailureCode(ctx, pending.QRCode, code); err != nil {
		return c.captureFailed(err)
	}
	return c.captureDone(ctx)
}

// OnFailureCodeAndResultCaptured sets failure code and result of the newest
// FAIL scan; result defaults to the code.
func (c *Controller) OnFailureCodeAndResultCaptured(ctx context.Context, code, result string) error {
	code = strings.TrimSpace(code)
	result = strings.TrimSpace(result)
	if result == "" {
		result = code
	}
	if _, err := c.beginCapture(code); err != nil {
		return err
	}
	if err := c.api.UpdateFailureCodeAndResult(ctx, code, result); err != nil {
		return c.captureFailed(err)
	}
	return c.captureDone(ctx)
}

func (c *Controller) beginCapture(code string) (PendingSubmission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingSubmission{}, ErrNoCapture
	}
	if code == "" {
		c.view.Notify(Notification{Kind: Error, Message: MsgEnterFailure})
		return PendingSubmission{}, &ValidationError{Field: "failure_code", Msg: MsgEnterFailure}
	}
	return *c.pending, nil
}

func (c *Controller) captureFailed(err error) error {
	serr := submissionError("failure_code", MsgFailureFailed, err)
	c.mu.Lock()
	c.view.Notify(Notification{Kind: Error, Message: serr.Msg})
	c.mu.Unlock()
	return serr
}

func (c *Controller) captureDone(ctx context.Context) error {
	c.mu.Lock()
	c.pending = nil
	c.view.CloseCapture()
	c.view.Notify(Notification{Kind: Success, Message: MsgFailureUpdated})
	c.mu.Unlock()
	return c.Resync(ctx)
}

// CancelCapture drops the pending capture; the scan stays without a
// failure code.
func (c *Controller) CancelCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.pending = nil
	c.view.CloseCapture()
	c.view.FocusInput()
}

//
// ==== sync ====
//

// OnPushedScan applies a scan delivered by the push feed. It reports false
// when the scan was already shown.
func (c *Controller) OnPushedScan(scan domain.Scan) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accept(&scan) {
		return false
	}
	c.notifyOutcome(&scan)
	return true
}

// accept is the single place a scan enters the displayed log; rows are
// deduplicated by id so the HTTP reply and its push echo count once.
func (c *Controller) accept(s *domain.Scan) bool {
	if s.ID != "" {
		if c.seen[s.ID] {
			return false
		}
		c.seen[s.ID] = true
	}
	c.rows = append([]*domain.Scan{s}, c.rows...)
	c.counters.Count(s)
	c.view.PrependRow(s)
	c.view.SetCounters(c.counters)
	return true
}

func (c *Controller) notifyOutcome(s *domain.Scan) {
	if s.Status == domain.StatusPass {
		c.view.Notify(Notification{Kind: Success, Message: MsgScanPass})
		return
	}
	c.view.Notify(Notification{Kind: Error, Message: MsgScanFail})
}

// Resync replaces rows and counters with the server's view of the
// selected date.
func (c *Controller) Resync(ctx context.Context) error {
	date := c.Date()
	dash, err := c.api.Dashboard(ctx, date)
	if err != nil {
		serr := submissionError("resync", MsgResyncFailed, err)
		c.mu.Lock()
		c.view.Notify(Notification{Kind: Error, Message: serr.Msg})
		c.mu.Unlock()
		return serr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = dash.Scans
	c.counters = dash.Stats
	for _, s := range dash.Scans {
		if s.ID != "" {
			c.seen[s.ID] = true
		}
	}
	c.view.ReplaceRows(c.rows)
	c.view.SetCounters(c.counters)
	return nil
}

// FilterDate switches the log to another day; empty means today.
func (c *Controller) FilterDate(ctx context.Context, date string) error {
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			c.mu.Lock()
			c.view.Notify(Notification{Kind: Error, Message: MsgInvalidDate})
			c.mu.Unlock()
			return &ValidationError{Field: "date", Msg: MsgInvalidDate}
		}
	}
	c.mu.Lock()
	c.date = date
	c.mu.Unlock()
	return c.Resync(ctx)
}

//
// ==== conveniences ====
//

// Undo removes the newest scan on the server and reloads the log.
func (c *Controller) Undo(ctx context.Context) error {
	if err := c.api.Undo(ctx); err != nil {
		serr := submissionError("undo", MsgUndoFailed, err)
		c.mu.Lock()
		c.view.Notify(Notification{Kind: Error, Message: serr.Msg})
		c.mu.Unlock()
		return serr
	}
	c.mu.Lock()
	c.view.Notify(Notification{Kind: Success, Message: MsgUndone})
	c.mu.Unlock()
	return c.Resync(ctx)
}

// SetVoiceRecognition changes the tag stamped on the next scans.
func (c *Controller) SetVoiceRecognition(ctx context.Context, option string) error {
	option = strings.ToUpper(strings.TrimSpace(option))
	if option != domain.VoiceOK && option != domain.VoiceNA {
		c.mu.Lock()
		c.view.Notify(Notification{Kind: Error, Message: "Invalid option"})
		c.mu.Unlock()
		return &ValidationError{Field: "option", Msg: "Invalid option"}
	}
	selected, err := c.api.SetVoiceRecognition(ctx, option)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		serr := submissionError("voice_recognition", MsgVoiceFailed, err)
		c.view.Notify(Notification{Kind: Error, Message: serr.Msg})
		return serr
	}
	c.view.Notify(Notification{Kind: Success, Message: "Voice recognition set to " + selected})
	return nil
}

// ToggleTheme flips dark mode and persists it.
func (c *Controller) ToggleTheme() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dark = !c.dark
	c.view.ApplyTheme(c.dark)
	if err := c.prefs.Save(Prefs{DarkMode: c.dark}); err != nil {
		c.log.Warn().Err(err).Msg("saving station prefs")
		return err
	}
	return nil
}

// ExportURL builds the report link; empty dates mean today and an empty
// name becomes scan_report_<start>.
func (c *Controller) ExportURL(startDate, endDate, fileName string) string {
	startDate, endDate, fileName = c.exportArgs(startDate, endDate, fileName)
	return c.api.ExportURL(startDate, endDate, fileName)
}

// DownloadExport saves the report into dir and returns its path. The report
// is written to a temp file first; an existing file is only replaced once
// the download completed.
func (c *Controller) DownloadExport(ctx context.Context, startDate, endDate, fileName, dir string) (string, error) {
	startDate, endDate, fileName = c.exportArgs(startDate, endDate, fileName)
	for _, d := range []string{startDate, endDate} {
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			return "", c.invalid("date", MsgInvalidDate)
		}
	}
	if err := middleware.ValidateFileName(fileName); err != nil {
		return "", c.invalid("file_name", MsgInvalidFileName)
	}

	path := filepath.Join(dir, fileName+".xlsx")
	tmp, err := os.CreateTemp(dir, ".export-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("creating temp report in %s: %w", dir, err)
	}
	err = c.api.DownloadExport(ctx, startDate, endDate, fileName, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		os.Remove(tmp.Name())
		serr := submissionError("export", MsgExportFailed, err)
		c.view.Notify(Notification{Kind: Error, Message: serr.Msg})
		return "", serr
	}
	c.view.Notify(Notification{Kind: Success, Message: "Report saved to " + path})
	return path, nil
}

func (c *Controller) invalid(field, msg string) error {
	c.mu.Lock()
	c.view.Notify(Notification{Kind: Error, Message: msg})
	c.mu.Unlock()
	return &ValidationError{Field: field, Msg: msg}
}

func (c *Controller) exportArgs(startDate, endDate, fileName string) (string, string, string) {
	today := c.now().Format(domain.DateLayout)
	if startDate == "" {
		startDate = today
	}
	if endDate == "" {
		endDate = startDate
	}
	if fileName == "" {
		fileName = "scan_report_" + startDate
	}
	return startDate, endDate, fileName
}
