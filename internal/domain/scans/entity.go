package scans

import (
	"time"
)

// ID tipe untuk Scan
type ScanID string

// Status enum
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Result labels written into the result column.
const (
	ResultFirstPass     = "FP OK"
	ResultSecondPass    = "SP OK"
	ResultRework        = "RW"
	ResultModelNotFound = "MODEL NOT FOUND"
)

// Failure codes with a fixed meaning.
const (
	FailureCodeNone         = "NA"
	FailureCodeUnknownModel = "UNKNOWN MODEL"
)

// Voice recognition tags.
const (
	VoiceOK = "OK"
	VoiceNA = "NA"
)

// DateLayout is the layout of the scan_date column and of ?date= filters.
const DateLayout = "2006-01-02"

// TimestampLayout is how timestamps travel on the wire.
const TimestampLayout = "2006-01-02 15:04:05"

// Scan is one QR-code read with its measured attributes and outcome.
type Scan struct {
	ID               ScanID  `json:"id"`
	DailyNumber      int     `json:"daily_number"`
	QRCode           string  `json:"qr_code"`
	Power            float64 `json:"power"`
	RPM              int     `json:"rpm"`
	PowerFactor      float64 `json:"power_factor"`
	FailureCode      string  `json:"failure_code"`
	Status           Status  `json:"status"`
	Timestamp        string  `json:"timestamp"`
	Result           string  `json:"result"`
	VoiceRecognition string  `json:"voice_recognition"`
}

// Day returns the YYYY-MM-DD part of the timestamp.
func (s *Scan) Day() string {
	if len(s.Timestamp) < len(DateLayout) {
		return ""
	}
	return s.Timestamp[:len(DateLayout)]
}

// NeedsFailureCode reports whether the scan failed without a failure code.
func (s *Scan) NeedsFailureCode() bool {
	return s.Status == StatusFail && s.FailureCode == ""
}

// Stats value object, counters for one day (and its month).
type Stats struct {
	TotalPassed  int `json:"total_passed"`
	FirstPassed  int `json:"first_passed"`
	SecondPassed int `json:"second_passed"`
	Rework       int `json:"rework"`
	TodayTotal   int `json:"today_total"`
	TodayPassed  int `json:"today_passed"`
	TodayFailed  int `json:"today_failed"`
	MonthlyScans int `json:"monthly_scans"`
}

// Count folds one more scan into the counters.
func (c *Stats) Count(s *Scan) {
	c.TodayTotal++
	c.MonthlyScans++
	if s.Status == StatusPass {
		c.TodayPassed++
	} else {
		c.TodayFailed++
	}
	switch s.Result {
	case ResultFirstPass:
		c.FirstPassed++
		c.TotalPassed++
	case ResultSecondPass:
		c.SecondPassed++
		c.TotalPassed++
	case ResultRework:
		c.Rework++
	}
}

// NewScanEvent is what the push channel carries: the record flattened
// together with the refreshed counters.
type NewScanEvent struct {
	Scan
	Stats
}

// FormatTimestamp formats t the way timestamps are stored.
func FormatTimestamp(t time.Time) string { return t.Format(TimestampLayout) }
