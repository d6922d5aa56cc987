package usecase

import (
	"context"
	"errors"
	"strings"

	"ragchat/internal/domain"
)

// ErrorCategory indicates whether an error is retryable or permanent.
type ErrorCategory int

const (
	ErrorCategoryUnknown   ErrorCategory = iota
	ErrorCategoryRetryable               // 429, 5xx, transport, open circuit
	ErrorCategoryPermanent               // 4xx, bad input, decode failures
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryRetryable:
		return "retryable"
	case ErrorCategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifiedError holds the result of error classification.
type ClassifiedError struct {
	Original error
	Category ErrorCategory
	Sentinel error  // matched domain sentinel, or nil
	Hint     string // what the user can do about it, may be empty
}

// ErrorClassifier maps backend and local errors to a category and a hint.
type ErrorClassifier struct{}

// NewErrorClassifier creates a new classifier.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

type classRule struct {
	sentinel error
	category ErrorCategory
	hint     string
}

// Order matters: ErrCircuitOpen and ErrTimeout wrap alongside ErrTransport.
var classRules = []classRule{
	{domain.ErrCircuitOpen, ErrorCategoryRetryable, "the backend failed repeatedly; wait a moment before retrying"},
	{domain.ErrRateLimit, ErrorCategoryRetryable, "too many requests; slow down or raise api.requests_per_minute"},
	{domain.ErrTimeout, ErrorCategoryRetryable, "the backend did not answer in time; retry or raise api.resp_timeout"},
	{domain.ErrTransport, ErrorCategoryRetryable, "cannot reach the backend; check api.base_url or run 'ragchat doctor'"},
	{domain.ErrServer, ErrorCategoryRetryable, "the backend reported an internal error; retry later"},
	{domain.ErrStreamRead, ErrorCategoryRetryable, "the answer stream was interrupted; send the message again"},
	{domain.ErrNoBody, ErrorCategoryRetryable, "the backend returned an empty response; send the message again"},
	{domain.ErrAuthInvalid, ErrorCategoryPermanent, "the backend rejected the request as unauthorized"},
	{domain.ErrPayloadTooLarge, ErrorCategoryPermanent, "the document is too large for the backend; split it up"},
	{domain.ErrNotFound, ErrorCategoryPermanent, ""},
	{domain.ErrInvalidInput, ErrorCategoryPermanent, ""},
	{domain.ErrDecode, ErrorCategoryPermanent, "the backend answered with an unexpected format; check api.base_url"},
	{domain.ErrConfigLoad, ErrorCategoryPermanent, "fix the configuration or run 'ragchat doctor'"},
	{domain.ErrHistoryStore, ErrorCategoryPermanent, "check history.path or disable history"},
	{domain.ErrTaskFailed, ErrorCategoryPermanent, "ingestion failed on the backend; check the document and upload again"},
	{domain.ErrUpstreamStatus, ErrorCategoryPermanent, ""},
}

// Classify inspects err and returns its category, matched sentinel and hint.
func (c *ErrorClassifier) Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	if errors.Is(err, context.Canceled) {
		return ClassifiedError{Original: err, Category: ErrorCategoryPermanent}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassifiedError{
			Original: err, Category: ErrorCategoryRetryable,
			Hint: "the operation ran out of time; raise chat.wait_timeout to wait longer",
		}
	}

	for _, r := range classRules {
		if errors.Is(err, r.sentinel) {
			return ClassifiedError{Original: err, Category: r.category, Sentinel: r.sentinel, Hint: r.hint}
		}
	}
	return c.classifyByString(err)
}

// classifyByString handles errors that carry no sentinel, such as those
// bubbling up from the standard library.
func (c *ErrorClassifier) classifyByString(err error) ClassifiedError {
	lower := strings.ToLower(err.Error())

	for _, p := range []string{
		"connection refused", "no such host", "timeout",
		"deadline exceeded", "connection reset",
	} {
		if strings.Contains(lower, p) {
			return ClassifiedError{
				Original: err, Category: ErrorCategoryRetryable,
				Hint: "cannot reach the backend; check api.base_url or run 'ragchat doctor'",
			}
		}
	}

	return ClassifiedError{Original: err, Category: ErrorCategoryUnknown}
}
