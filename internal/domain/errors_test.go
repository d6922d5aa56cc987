package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Backend.UploadText", ErrInvalidInput, "empty content")
	want := "Backend.UploadText: empty content: invalid input"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Backend.Health", ErrTransport, "")
	want := "Backend.Health: transport failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Backend.TaskStatus", ErrNotFound, "task 42")
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is should match ErrNotFound")
	}
	assert.Equal(t, CodeNotFound, err.Code())
}

func TestStatusErrorFormat(t *testing.T) {
	assert.Equal(t, "HTTP 502", (&StatusError{StatusCode: 502}).Error())
	assert.Equal(t, "HTTP 400: bad", (&StatusError{StatusCode: 400, Body: "bad"}).Error())
}

func TestStatusErrorCategories(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusUnauthorized, ErrAuthInvalid},
		{http.StatusForbidden, ErrAuthInvalid},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusRequestEntityTooLarge, ErrPayloadTooLarge},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
		{http.StatusBadRequest, ErrUpstreamStatus},
		{http.StatusConflict, ErrUpstreamStatus},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := fmt.Errorf("chat stream: %w", &StatusError{StatusCode: tt.code})
			assert.ErrorIs(t, err, tt.want)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.StatusCode)
		})
	}
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(errors.New("boom")))
	assert.Equal(t, CodeNoBody, ErrorCodeOf(ErrNoBody))
	assert.Equal(t, CodeRateLimit, ErrorCodeOf(&StatusError{StatusCode: 429}))
	assert.Equal(t, CodeServer, ErrorCodeOf(&StatusError{StatusCode: 503}))
	assert.Equal(t, CodeStreamRead, ErrorCodeOf(fmt.Errorf("%w: %w", ErrStreamRead, ErrTimeout)))
	assert.Equal(t, CodeCircuitOpen, ErrorCodeOf(WrapOp("chat", ErrCircuitOpen)))
}

func TestWrapOpNil(t *testing.T) {
	assert.NoError(t, WrapOp("noop", nil))
}
