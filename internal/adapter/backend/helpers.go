package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"ragchat/internal/domain"
)

// maxResponseBody is the maximum body size read from request/response calls.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// maxErrorBody caps the body text attached to a StatusError.
const maxErrorBody = 4096

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// send performs req through the rate limiter and the circuit breaker. A
// non-2xx response is closed and returned as *domain.StatusError; its body
// text is attached only when withBody is set.
func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request, withBody bool) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	return c.execute(func() (*http.Response, error) {
		resp, err := hc.Do(req)
		if err != nil {
			return nil, mapTransportError(ctx, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			statusErr := &domain.StatusError{StatusCode: resp.StatusCode}
			if withBody {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
				statusErr.Body = strings.TrimSpace(string(body))
			}
			return nil, statusErr
		}
		return resp, nil
	})
}

// mapTransportError returns the context error when the call was cancelled,
// otherwise err wrapped with ErrTransport (and ErrTimeout for timeouts).
func mapTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w: %w", domain.ErrTransport, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrTransport, err)
}

// doJSON sends req and decodes the JSON response body into out.
func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.send(ctx, c.client, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return mapTransportError(ctx, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDecode, preview(body), err)
	}
	return nil
}

// doText sends req and returns the trimmed response body.
func (c *Client) doText(ctx context.Context, req *http.Request) (string, error) {
	resp, err := c.send(ctx, c.client, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", mapTransportError(ctx, err)
	}
	return strings.TrimSpace(string(body)), nil
}

// preview shortens body for inclusion in an error message.
func preview(body []byte) string {
	const limit = 120
	s := []rune(strings.TrimSpace(string(body)))
	if len(s) > limit {
		return string(s[:limit]) + "..."
	}
	return string(s)
}
