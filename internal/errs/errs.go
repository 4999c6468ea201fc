// Package errs defines the single error type shared by every component of
// the client (config resolver, auth strategy, HTTP client, streaming
// transport, supervisor, coordinator). Keeping it in its own package lets
// every internal package construct and inspect these errors without
// importing the root genai package, which would create an import cycle.
package errs

import "fmt"

// Kind classifies a failure so callers can branch on it without
// string-matching error messages.
type Kind string

const (
	// Config covers a missing or invalid credential, or an unknown auth type.
	Config Kind = "config_error"
	// Network covers transport failures: DNS, TLS, connection refused, timeout.
	Network Kind = "network_error"
	// API covers an HTTP non-2xx response carrying a structured API error.
	API Kind = "api_error"
	// InvalidResponse covers a non-JSON or schema-mismatched response body.
	InvalidResponse Kind = "invalid_response"
	// InvalidInput covers caller-supplied contents/options that don't parse.
	InvalidInput Kind = "invalid_input"
	// StreamNotFound covers an operation targeting an unknown stream id.
	StreamNotFound Kind = "stream_not_found"
	// CapacityExceeded covers the supervisor's max_streams limit.
	CapacityExceeded Kind = "capacity_exceeded"
	// Parse is reserved for an unrecoverable SSE parse failure.
	Parse Kind = "parse_error"
)

// Error is the single error type returned by every fallible operation in
// this module. Status and Detail are only meaningful for Kind API.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Detail  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying transport/decoding error, if any, so callers
// can use errors.Is/errors.As against it.
func (e *Error) Unwrap() error { return e.cause }

// NewConfig builds a Config-kind error.
func NewConfig(format string, args ...any) *Error {
	return &Error{Kind: Config, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidInput builds an InvalidInput-kind error.
func NewInvalidInput(format string, args ...any) *Error {
	return &Error{Kind: InvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NewNetwork builds a Network-kind error, wrapping the transport cause.
func NewNetwork(reason string, cause error) *Error {
	return &Error{Kind: Network, Message: reason, cause: cause}
}

// NewInvalidResponse builds an InvalidResponse-kind error, wrapping the
// decode failure.
func NewInvalidResponse(cause error) *Error {
	return &Error{Kind: InvalidResponse, Message: "response body is not valid JSON", cause: cause}
}

// NewAPI builds an API-kind error from a non-2xx status and its extracted
// (or synthesized) error detail.
func NewAPI(status int, detail map[string]any) *Error {
	msg := fmt.Sprintf("HTTP %d", status)
	if m, ok := detail["message"].(string); ok && m != "" {
		msg = m
	}
	return &Error{Kind: API, Message: msg, Status: status, Detail: detail}
}

// NewStreamNotFound builds a StreamNotFound-kind error for the given id.
func NewStreamNotFound(id string) *Error {
	return &Error{Kind: StreamNotFound, Message: fmt.Sprintf("stream %q not found", id)}
}

// NewCapacityExceeded builds a CapacityExceeded-kind error.
func NewCapacityExceeded(max int) *Error {
	return &Error{Kind: CapacityExceeded, Message: fmt.Sprintf("max_streams (%d) reached", max)}
}
