package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/infra/tracer"
)

// GetTaskStatus returns the ingestion status of taskID.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*domain.TaskStatus, error) {
	const op = "Backend.GetTaskStatus"
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "task id is required")
	}

	ctx, span := tracer.StartSpan(ctx, "backend.task_status")
	defer span.End()
	span.SetAttributes(tracer.KeyTaskID.String(taskID))

	req, err := c.newRequest(ctx, http.MethodGet, pathTasks+url.PathEscape(taskID), nil, "")
	if err != nil {
		tracer.Finish(span, err)
		return nil, domain.WrapOp(op, err)
	}

	var out domain.TaskStatus
	err = c.doJSON(ctx, req, &out)
	tracer.Finish(span, err)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	span.SetAttributes(tracer.KeyTaskStatus.String(string(out.Status)))
	return &out, nil
}
