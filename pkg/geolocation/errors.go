package geolocation

import (
	"errors"
	"fmt"
)

// Code identifies the terminal failure of a request.
type Code string

// Error codes delivered to result handlers.
const (
	// CodeUnavailable means positioning is disabled or the source failed.
	CodeUnavailable Code = "UNAVAILABLE"
	// CodeTimeout means no qualifying fix arrived before the timeout.
	CodeTimeout Code = "TIMEOUT"
	// CodeUnauthorized means location permission was denied.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeCancelled means the request was superseded or cancelled.
	CodeCancelled Code = "CANCELLED"
)

// Error is the failure outcome of a request. Err holds the underlying
// platform error, if any.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "geolocation: " + string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrTimeout)
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Payload returns the error as the object handed across the bridge.
func (e *Error) Payload() map[string]any {
	p := map[string]any{
		"code":    string(e.Code),
		"message": e.Message,
	}
	if e.Err != nil {
		p["cause"] = e.Err.Error()
	}
	return p
}

// Sentinels for errors.Is.
var (
	ErrUnavailable  = &Error{Code: CodeUnavailable, Message: "location services unavailable"}
	ErrTimeout      = &Error{Code: CodeTimeout, Message: "location request timed out"}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "location permission denied"}
	ErrCancelled    = &Error{Code: CodeCancelled, Message: "location request cancelled"}
)

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf returns the code of err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// SettingsError is returned when the settings page could not be opened.
type SettingsError struct {
	Err error
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("geolocation: open settings: %v", e.Err)
}

func (e *SettingsError) Unwrap() error {
	return e.Err
}
