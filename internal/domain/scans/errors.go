package scans

import "errors"

var (
	// ErrInvalidInput marks a request missing a required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means no scan matched.
	ErrNotFound = errors.New("scan not found")
	// ErrDuplicatePass is returned when the code already has a first-pass record.
	ErrDuplicatePass = errors.New("duplicate first-pass scan")
	// ErrMeterUnavailable means the RS485 meters did not answer.
	ErrMeterUnavailable = errors.New("meter unavailable")
)

// Error carries the message shown to operators while still matching its kind
// through errors.Is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Invalid builds an ErrInvalidInput with an operator-facing message.
func Invalid(msg string) error { return &Error{Kind: ErrInvalidInput, Msg: msg} }

// NotFound builds an ErrNotFound with an operator-facing message.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Msg: msg} }
