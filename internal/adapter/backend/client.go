// Package backend is the HTTP client for the RAG backend: streamed chat,
// document ingestion, task status and health.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"ragchat/internal/domain"
	"ragchat/internal/infra/config"
)

// Backend paths.
const (
	pathChat      = "/api/chat"
	pathDocuments = "/api/documents"
	pathTasks     = "/api/documents/tasks/"
	pathHealth    = "/health"
)

// Client talks to one backend. It is safe for concurrent use; every chat
// stream owns its own decoding state.
type Client struct {
	baseURL      string
	client       *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	logger       *slog.Logger
}

// New creates a Client from cfg.
func New(cfg config.APIConfig, logger *slog.Logger) *Client {
	call, stream := newHTTPClients(cfg)
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       call,
		streamClient: stream,
		logger:       logger,
	}

	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = newBreaker(c.baseURL, cfg.CircuitBreaker, logger)
	}
	return c
}

// BaseURL returns the backend root the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

// wait blocks until the rate limiter admits one request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", domain.ErrRateLimit, err)
	}
	return nil
}
