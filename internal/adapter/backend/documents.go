package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/infra/tracer"
)

// UploadDocument uploads a file for ingestion. meta may be nil.
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader, meta *domain.DocumentMetadata) (*domain.UploadResponse, error) {
	const op = "Backend.UploadDocument"
	if strings.TrimSpace(filename) == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "filename is required")
	}
	if r == nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "no file content")
	}

	ctx, span := tracer.StartSpan(ctx, "backend.upload_document")
	defer span.End()
	span.SetAttributes(tracer.KeyDocFilename.String(filepath.Base(filename)))

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			return err
		}
		_, err = io.Copy(part, r)
		return err
	}, meta)
	if err != nil {
		tracer.Finish(span, err)
		return nil, domain.WrapOp(op, err)
	}

	resp, err := c.postForm(ctx, body, contentType)
	tracer.Finish(span, err)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	c.logger.Debug("document uploaded", "filename", filepath.Base(filename), "task_id", resp.TaskID)
	return resp, nil
}

// UploadText uploads raw text under title for ingestion. meta may be nil.
func (c *Client) UploadText(ctx context.Context, content, title string, meta *domain.DocumentMetadata) (*domain.UploadResponse, error) {
	const op = "Backend.UploadText"
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "content is empty")
	}
	if strings.TrimSpace(title) == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "title is required")
	}

	ctx, span := tracer.StartSpan(ctx, "backend.upload_text")
	defer span.End()
	span.SetAttributes(tracer.KeyDocBytes.Int(len(content)))

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := w.WriteField("content", content); err != nil {
			return err
		}
		return w.WriteField("title", title)
	}, meta)
	if err != nil {
		tracer.Finish(span, err)
		return nil, domain.WrapOp(op, err)
	}

	resp, err := c.postForm(ctx, body, contentType)
	tracer.Finish(span, err)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	c.logger.Debug("text uploaded", "title", title, "task_id", resp.TaskID)
	return resp, nil
}

// ListDocuments returns the documents known to the backend.
func (c *Client) ListDocuments(ctx context.Context) (*domain.DocumentListResponse, error) {
	const op = "Backend.ListDocuments"
	ctx, span := tracer.StartSpan(ctx, "backend.list_documents")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, pathDocuments, nil, "")
	if err != nil {
		tracer.Finish(span, err)
		return nil, domain.WrapOp(op, err)
	}

	var out domain.DocumentListResponse
	err = c.doJSON(ctx, req, &out)
	tracer.Finish(span, err)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	span.SetAttributes(tracer.KeyDocCount.Int(len(out.Documents)))
	return &out, nil
}

func (c *Client) postForm(ctx context.Context, body *bytes.Buffer, contentType string) (*domain.UploadResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, pathDocuments, body, contentType)
	if err != nil {
		return nil, err
	}
	var out domain.UploadResponse
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// buildForm writes the multipart body: the fields added by write, then the
// metadata part as JSON when meta is set.
func buildForm(write func(*multipart.Writer) error, meta *domain.DocumentMetadata) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := write(w); err != nil {
		return nil, "", fmt.Errorf("build form: %w", err)
	}
	if meta != nil {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, "", fmt.Errorf("marshal metadata: %w", err)
		}
		if err := w.WriteField("metadata", string(data)); err != nil {
			return nil, "", fmt.Errorf("build form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
