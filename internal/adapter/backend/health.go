package backend

import (
	"context"
	"net/http"

	"ragchat/internal/domain"
	"ragchat/internal/infra/tracer"
)

// HealthCheck returns the backend's health text (normally "OK").
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.health")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, pathHealth, nil, "")
	if err != nil {
		tracer.Finish(span, err)
		return "", domain.WrapOp("Backend.HealthCheck", err)
	}

	text, err := c.doText(ctx, req)
	tracer.Finish(span, err)
	if err != nil {
		return "", domain.WrapOp("Backend.HealthCheck", err)
	}
	return text, nil
}
