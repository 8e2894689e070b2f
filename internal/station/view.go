package station

import domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"

// NotificationKind picks the styling of a transient message.
type NotificationKind int

const (
	Info NotificationKind = iota
	Success
	Error
)

func (k NotificationKind) String() string {
	switch k {
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return "info"
}

type Notification struct {
	Kind    NotificationKind
	Message string
}

// View renders controller state. Calls are made with the controller lock
// held, so implementations must not call back into the controller.
type View interface {
	Notify(Notification)
	ClearInput()
	FocusInput()
	OpenCapture(qrCode string)
	CloseCapture()
	PrependRow(*domain.Scan)
	ReplaceRows([]*domain.Scan)
	SetCounters(domain.Stats)
	ApplyTheme(dark bool)
}
