package shared

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Token errors
	ErrTokenAcquisition = fmt.Errorf("token acquisition failed")

	// License entry errors
	ErrRequestSubmission   = fmt.Errorf("request submission failed")
	ErrProtocolDecode      = fmt.Errorf("malformed progress frame")
	ErrApplicationReported = fmt.Errorf("operation reported an error")
	ErrStreamIncomplete    = fmt.Errorf("progress stream ended without a terminal event")

	// API and service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Storage errors
	ErrStorage = fmt.Errorf("storage failure")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// TokenAcquisitionError is returned when the authentication endpoint could not produce a token pair.
type TokenAcquisitionError struct {
	Message string // Human-readable cause, shown to the user
	Err     error  // Underlying transport or decode error, if any
}

func (e *TokenAcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrTokenAcquisition, e.Message, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrTokenAcquisition, e.Message)
}

func (e *TokenAcquisitionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTokenAcquisition, e.Err}
	}
	return []error{ErrTokenAcquisition}
}

// RequestSubmissionError is returned when the create-entry call fails before any progress is streamed.
type RequestSubmissionError struct {
	StatusCode int    // HTTP status, 0 when the request never completed
	Body       string // Truncated response body
	Err        error
}

func (e *RequestSubmissionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", ErrRequestSubmission, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%v: status %d: %s", ErrRequestSubmission, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%v: status %d", ErrRequestSubmission, e.StatusCode)
	}
}

func (e *RequestSubmissionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRequestSubmission, e.Err}
	}
	return []error{ErrRequestSubmission}
}

// ProtocolDecodeError describes a data frame that could not be parsed, even after quote normalization.
type ProtocolDecodeError struct {
	Frame string // Raw frame text, prefix included
	Err   error
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("%v: %v (frame %q)", ErrProtocolDecode, e.Err, Truncate(e.Frame, 120))
}

func (e *ProtocolDecodeError) Unwrap() []error {
	return []error{ErrProtocolDecode, e.Err}
}

// ApplicationReportedError carries the message of a well-formed "error" frame, verbatim.
type ApplicationReportedError struct {
	Message string
}

func (e *ApplicationReportedError) Error() string {
	return e.Message
}

func (e *ApplicationReportedError) Unwrap() error {
	return ErrApplicationReported
}

// Exit codes returned by the CLI for each error kind.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitTokenAcquisition    = 2
	ExitRequestSubmission   = 3
	ExitProtocolDecode      = 4
	ExitApplicationReported = 5
	ExitCancelled           = 130
)

// ExitCode maps err to the process exit status for a non-interactive caller.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, ErrTokenAcquisition):
		return ExitTokenAcquisition
	case errors.Is(err, ErrRequestSubmission):
		return ExitRequestSubmission
	case errors.Is(err, ErrProtocolDecode):
		return ExitProtocolDecode
	case errors.Is(err, ErrApplicationReported):
		return ExitApplicationReported
	default:
		return ExitFailure
	}
}

// Truncate shortens s to at most n bytes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
