package station

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCapturePending refuses a scan while a failure code is still owed.
	ErrCapturePending = errors.New("failure code capture still open")
	// ErrNoCapture is returned when a failure code arrives with nothing pending.
	ErrNoCapture = errors.New("no failure code capture open")
)

// ValidationError is an empty or malformed required field; it never reaches
// the network.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// SubmissionError is a network or server-reported failure of one request.
type SubmissionError struct {
	Op  string
	Msg string
	Err error
}

func (e *SubmissionError) Error() string { return e.Msg }

func (e *SubmissionError) Unwrap() error { return e.Err }

// APIError is a non-2xx reply from the scan server.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Timestamp  time.Time
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.StatusCode, e.Message)
}

// submissionError wraps err for op, preferring the server's own message.
func submissionError(op, fallback string, err error) *SubmissionError {
	msg := fallback
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &SubmissionError{Op: op, Msg: msg, Err: err}
}
