package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Category sentinels.
var (
	ErrNotFound        = fmt.Errorf("not found")
	ErrTimeout         = fmt.Errorf("operation timed out")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrPayloadTooLarge = fmt.Errorf("payload too large")
	ErrServer          = fmt.Errorf("server error")
	ErrUpstreamStatus  = fmt.Errorf("unexpected response status")
)

// Sentinel errors for backend calls.
var (
	ErrTransport    = fmt.Errorf("transport failed")
	ErrNoBody       = fmt.Errorf("no response body")
	ErrStreamRead   = fmt.Errorf("stream read failed")
	ErrCircuitOpen  = fmt.Errorf("circuit open")
	ErrDecode       = fmt.Errorf("decode response failed")
	ErrConfigLoad   = fmt.Errorf("failed to load configuration")
	ErrHistoryStore = fmt.Errorf("history store failed")
	ErrTaskFailed   = fmt.Errorf("task failed")
)

// StatusError reports a non-success HTTP status from the backend.
// It unwraps to the category sentinel matching the status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return statusCategory(e.StatusCode) }

func statusCategory(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthInvalid
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	case code >= 500:
		return ErrServer
	default:
		return ErrUpstreamStatus
	}
}

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Backend.UploadText")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs and exit messages.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	CodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeServer          ErrorCode = "SERVER_ERROR"
	CodeUpstreamStatus  ErrorCode = "UPSTREAM_STATUS"
	CodeTransport       ErrorCode = "TRANSPORT"
	CodeNoBody          ErrorCode = "NO_BODY"
	CodeStreamRead      ErrorCode = "STREAM_READ"
	CodeCircuitOpen     ErrorCode = "CIRCUIT_OPEN"
	CodeDecode          ErrorCode = "DECODE"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeHistoryStore    ErrorCode = "HISTORY_STORE"
	CodeTaskFailed      ErrorCode = "TASK_FAILED"
)

// errorCodeOrder lists sentinels from most to least specific. A wrapped
// stream-read error that also carries a timeout reports STREAM_READ.
var errorCodeOrder = []struct {
	err  error
	code ErrorCode
}{
	{ErrCircuitOpen, CodeCircuitOpen},
	{ErrNoBody, CodeNoBody},
	{ErrStreamRead, CodeStreamRead},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrNotFound, CodeNotFound},
	{ErrPayloadTooLarge, CodePayloadTooLarge},
	{ErrServer, CodeServer},
	{ErrUpstreamStatus, CodeUpstreamStatus},
	{ErrTransport, CodeTransport},
	{ErrDecode, CodeDecode},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrTimeout, CodeTimeout},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrHistoryStore, CodeHistoryStore},
	{ErrTaskFailed, CodeTaskFailed},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, entry := range errorCodeOrder {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
