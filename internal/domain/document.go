package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// DocumentMetadata is optional metadata attached to an uploaded document.
type DocumentMetadata struct {
	Title string   `json:"title,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Type  string   `json:"type,omitempty"`
	Date  string   `json:"date,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m DocumentMetadata) IsZero() bool {
	return m.Title == "" && len(m.Tags) == 0 && m.Type == "" && m.Date == ""
}

// UploadResponse is returned by the document upload endpoint.
type UploadResponse struct {
	TaskID string `json:"task_id,omitempty"`
	Status string `json:"status"`
}

// TaskState is the processing state of an ingestion task.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskProcessing TaskState = "processing"
	TaskSucceeded  TaskState = "succeeded"
	TaskFailed     TaskState = "failed"
)

// UnmarshalJSON accepts any casing ("Pending", "pending").
func (s *TaskState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = TaskState(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// Terminal reports whether no further state change is expected.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskStatus describes the progress of a document ingestion task.
type TaskStatus struct {
	ID        string    `json:"id"`
	Status    TaskState `json:"status"`
	Progress  *float64  `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentInfo is one entry of a document listing.
type DocumentInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// DocumentListResponse is returned by the document listing endpoint.
type DocumentListResponse struct {
	Documents []DocumentInfo `json:"documents"`
}
