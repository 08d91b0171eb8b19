package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the integration layer. Every public operation
// returns one of these so handlers can map failures to HTTP statuses and
// operators can tell a configuration mistake from a provider outage.
const (
	CodeConfiguration = "configuration_error"
	CodeProvider      = "provider_error"
	CodeTransport     = "transport_error"
	CodeCrypto        = "crypto_error"
	CodeNotFound      = "not_found"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Configuration reports missing or malformed credentials/metadata. The user
// can fix it; retrying without a change will not help.
func Configuration(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeConfiguration, fmt.Errorf(format, args...))
}

// Provider reports a non-success or unparseable response from an external
// API, carrying the upstream status and a truncated body for diagnostics.
func Provider(providerStatus int, body string, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return New(http.StatusBadGateway, CodeProvider, fmt.Errorf("%s: status %d: %s", msg, providerStatus, Truncate(body, 500)))
}

// Transport reports a network-level failure reaching a provider. Potentially
// transient; the caller may retry.
func Transport(err error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return New(http.StatusBadGateway, CodeTransport, fmt.Errorf("%s: %w", msg, err))
}

func Crypto(format string, args ...interface{}) *Error {
	return New(http.StatusInternalServerError, CodeCrypto, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func Is(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// StatusOf returns the HTTP status an error should surface as, defaulting to
// 500 for untyped errors.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the taxonomy code of an error, or empty for untyped errors.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
