package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ragchat/internal/domain"
)

func TestClassifyNilError(t *testing.T) {
	c := NewErrorClassifier()
	got := c.Classify(nil)
	if got.Category != ErrorCategoryUnknown {
		t.Errorf("Category = %v, want unknown", got.Category)
	}
	if got.Original != nil {
		t.Errorf("Original = %v, want nil", got.Original)
	}
}

func TestClassifyStatusErrors(t *testing.T) {
	tests := []struct {
		code     int
		category ErrorCategory
		sentinel error
	}{
		{429, ErrorCategoryRetryable, domain.ErrRateLimit},
		{500, ErrorCategoryRetryable, domain.ErrServer},
		{503, ErrorCategoryRetryable, domain.ErrServer},
		{401, ErrorCategoryPermanent, domain.ErrAuthInvalid},
		{403, ErrorCategoryPermanent, domain.ErrAuthInvalid},
		{404, ErrorCategoryPermanent, domain.ErrNotFound},
		{413, ErrorCategoryPermanent, domain.ErrPayloadTooLarge},
		{418, ErrorCategoryPermanent, domain.ErrUpstreamStatus},
	}

	c := NewErrorClassifier()
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := domain.WrapOp("Backend.ChatStream", &domain.StatusError{StatusCode: tt.code})
			got := c.Classify(err)
			if got.Category != tt.category {
				t.Errorf("Category = %v, want %v", got.Category, tt.category)
			}
			if !errors.Is(got.Sentinel, tt.sentinel) {
				t.Errorf("Sentinel = %v, want %v", got.Sentinel, tt.sentinel)
			}
		})
	}
}

func TestClassifyTimeoutBeforeTransport(t *testing.T) {
	c := NewErrorClassifier()
	err := fmt.Errorf("%w: %w: dial tcp: i/o timeout", domain.ErrTransport, domain.ErrTimeout)
	got := c.Classify(err)
	if got.Sentinel != domain.ErrTimeout {
		t.Errorf("Sentinel = %v, want ErrTimeout", got.Sentinel)
	}
	if got.Hint == "" {
		t.Error("expected a hint for timeouts")
	}
}

func TestClassifyCircuitOpen(t *testing.T) {
	c := NewErrorClassifier()
	err := fmt.Errorf("%w: circuit breaker is open", domain.ErrCircuitOpen)
	got := c.Classify(err)
	if got.Category != ErrorCategoryRetryable || got.Sentinel != domain.ErrCircuitOpen {
		t.Errorf("got %v/%v, want retryable/ErrCircuitOpen", got.Category, got.Sentinel)
	}
}

func TestClassifyDomainErrors(t *testing.T) {
	c := NewErrorClassifier()

	got := c.Classify(domain.NewDomainError("Backend.UploadText", domain.ErrInvalidInput, "title is required"))
	if got.Category != ErrorCategoryPermanent {
		t.Errorf("Category = %v, want permanent", got.Category)
	}
	if got.Hint != "" {
		t.Errorf("Hint = %q, want none for input errors", got.Hint)
	}

	got = c.Classify(domain.NewDomainError("TaskWaiter.Wait", domain.ErrTaskFailed, "bad pdf"))
	if got.Sentinel != domain.ErrTaskFailed || got.Hint == "" {
		t.Errorf("got %v/%q, want ErrTaskFailed with hint", got.Sentinel, got.Hint)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	c := NewErrorClassifier()

	if got := c.Classify(fmt.Errorf("wait: %w", context.DeadlineExceeded)); got.Category != ErrorCategoryRetryable {
		t.Errorf("DeadlineExceeded Category = %v, want retryable", got.Category)
	}
	got := c.Classify(context.Canceled)
	if got.Category != ErrorCategoryPermanent || got.Hint != "" {
		t.Errorf("Canceled = %v/%q, want permanent without hint", got.Category, got.Hint)
	}
}

func TestClassifyByString(t *testing.T) {
	c := NewErrorClassifier()
	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"dial tcp 127.0.0.1:8080: connection refused", ErrorCategoryRetryable},
		{"lookup backend: no such host", ErrorCategoryRetryable},
		{"read: connection reset by peer", ErrorCategoryRetryable},
		{"something odd happened", ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		if got := c.Classify(errors.New(tt.msg)); got.Category != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.msg, got.Category, tt.want)
		}
	}
}

func TestErrorCategoryString(t *testing.T) {
	for cat, want := range map[ErrorCategory]string{
		ErrorCategoryUnknown:   "unknown",
		ErrorCategoryRetryable: "retryable",
		ErrorCategoryPermanent: "permanent",
	} {
		if got := cat.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
