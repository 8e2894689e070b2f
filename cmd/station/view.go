package main

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/station"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiDim   = "\033[2m"
)

// terminalView renders the station on a plain terminal. The newest row is
// printed as it arrives; ReplaceRows prints the whole log again.
type terminalView struct {
	mu   sync.Mutex
	out  io.Writer
	dark bool
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) colour(kind station.NotificationKind) string {
	if !v.dark {
		return ""
	}
	switch kind {
	case station.Success:
		return ansiGreen
	case station.Error:
		return ansiRed
	}
	return ansiDim
}

func (v *terminalView) reset() string {
	if !v.dark {
		return ""
	}
	return ansiReset
}

func (v *terminalView) Notify(n station.Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "%s[%s] %s%s\n", v.colour(n.Kind), n.Kind, n.Message, v.reset())
}

func (v *terminalView) ClearInput() {}

func (v *terminalView) FocusInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprint(v.out, "> ")
}

func (v *terminalView) OpenCapture(qrCode string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "%s%s failed. Type CODE or CODE RESULT (/cancel to skip):%s\n", v.colour(station.Error), qrCode, v.reset())
}

func (v *terminalView) CloseCapture() {}

func (v *terminalView) PrependRow(s *domain.Scan) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tw := tabwriter.NewWriter(v.out, 0, 4, 2, ' ', 0)
	writeRow(tw, s)
	tw.Flush()
}

func (v *terminalView) ReplaceRows(rows []*domain.Scan) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tw := tabwriter.NewWriter(v.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NO\tTIME\tQR CODE\tPOWER\tPF\tRPM\tSTATUS\tCODE\tRESULT")
	for _, s := range rows {
		writeRow(tw, s)
	}
	tw.Flush()
}

func writeRow(w io.Writer, s *domain.Scan) {
	fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%.2f\t%d\t%s\t%s\t%s\n",
		s.DailyNumber, s.Timestamp, s.QRCode, s.Power, s.PowerFactor, s.RPM, s.Status, s.FailureCode, s.Result)
}

func (v *terminalView) SetCounters(st domain.Stats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "today %d (pass %d / fail %d)  first pass %d  second pass %d  rework %d  month %d\n",
		st.TodayTotal, st.TodayPassed, st.TodayFailed, st.FirstPassed, st.SecondPassed, st.Rework, st.MonthlyScans)
}

func (v *terminalView) ApplyTheme(dark bool) {
	v.mu.Lock()
	v.dark = dark
	v.mu.Unlock()
}
