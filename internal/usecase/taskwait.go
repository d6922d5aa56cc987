package usecase

import (
	"context"
	"log/slog"
	"time"

	"ragchat/internal/domain"
)

const defaultPollInterval = time.Second

// TaskStatusGetter looks up the status of an ingestion task.
type TaskStatusGetter interface {
	GetTaskStatus(ctx context.Context, taskID string) (*domain.TaskStatus, error)
}

// TaskWaiter polls an ingestion task until it reaches a terminal state.
type TaskWaiter struct {
	getter   TaskStatusGetter
	interval time.Duration
	logger   *slog.Logger
}

// NewTaskWaiter creates a TaskWaiter polling every interval.
func NewTaskWaiter(getter TaskStatusGetter, interval time.Duration, logger *slog.Logger) *TaskWaiter {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &TaskWaiter{getter: getter, interval: interval, logger: logger}
}

// Wait polls taskID until it succeeds or fails, or ctx ends. onUpdate (may
// be nil) receives each status whose state or progress changed. A failed
// task returns its final status and an error wrapping ErrTaskFailed.
func (w *TaskWaiter) Wait(ctx context.Context, taskID string, onUpdate func(domain.TaskStatus)) (*domain.TaskStatus, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last *domain.TaskStatus
	for {
		status, err := w.getter.GetTaskStatus(ctx, taskID)
		if err != nil {
			return last, domain.WrapOp("TaskWaiter.Wait", err)
		}

		if changed(last, status) {
			w.logger.Debug("task status", "task_id", taskID, "status", string(status.Status))
			if onUpdate != nil {
				onUpdate(*status)
			}
		}
		last = status

		switch status.Status {
		case domain.TaskSucceeded:
			return status, nil
		case domain.TaskFailed:
			detail := status.Error
			if detail == "" {
				detail = "no error detail"
			}
			return status, domain.NewDomainError("TaskWaiter.Wait", domain.ErrTaskFailed, detail)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func changed(prev, cur *domain.TaskStatus) bool {
	if prev == nil {
		return true
	}
	if prev.Status != cur.Status {
		return true
	}
	switch {
	case prev.Progress == nil && cur.Progress == nil:
		return false
	case prev.Progress == nil || cur.Progress == nil:
		return true
	default:
		return *prev.Progress != *cur.Progress
	}
}
