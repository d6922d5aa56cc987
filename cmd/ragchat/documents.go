package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
	"ragchat/internal/usecase"
)

type metadataOptions struct {
	title string
	tags  []string
	kind  string
	date  string
}

func (o *metadataOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.tags, "tags", nil, "comma-separated document tags")
	cmd.Flags().StringVar(&o.kind, "type", "", "document type")
	cmd.Flags().StringVar(&o.date, "date", "", "document date")
}

// metadata returns nil when no field is set so the form omits it.
func (o *metadataOptions) metadata() *domain.DocumentMetadata {
	meta := domain.DocumentMetadata{Title: o.title, Tags: o.tags, Type: o.kind, Date: o.date}
	if meta.IsZero() {
		return nil
	}
	return &meta
}

func newUploadCmd(a *app) *cobra.Command {
	meta := &metadataOptions{}
	var wait bool
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a document for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return domain.NewDomainError("Upload", domain.ErrInvalidInput, err.Error())
			}
			defer f.Close()

			resp, err := a.client.UploadDocument(cmd.Context(), args[0], f, meta.metadata())
			if err != nil {
				return err
			}
			return a.afterUpload(cmd.Context(), resp, wait)
		},
	}
	cmd.Flags().StringVar(&meta.title, "title", "", "document title")
	meta.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until ingestion finishes")
	return cmd
}

func newUploadTextCmd(a *app) *cobra.Command {
	meta := &metadataOptions{}
	var wait bool
	cmd := &cobra.Command{
		Use:   "upload-text --title TITLE [TEXT|-]",
		Short: "Upload raw text for ingestion",
		Long: `upload-text ingests TEXT under the given title. With "-" or no
argument the text is read from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := textArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			resp, err := a.client.UploadText(cmd.Context(), content, meta.title, meta.metadata())
			if err != nil {
				return err
			}
			return a.afterUpload(cmd.Context(), resp, wait)
		},
	}
	cmd.Flags().StringVar(&meta.title, "title", "", "document title (required)")
	meta.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until ingestion finishes")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func textArg(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", domain.NewDomainError("UploadText", domain.ErrInvalidInput, err.Error())
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func (a *app) afterUpload(ctx context.Context, resp *domain.UploadResponse, wait bool) error {
	a.ui.upload(resp)
	if !wait {
		return nil
	}
	if resp.TaskID == "" {
		a.ui.muted("backend returned no task ID, nothing to wait for")
		return nil
	}
	return a.waitTask(ctx, resp.TaskID)
}

func (a *app) waitTask(ctx context.Context, taskID string) error {
	if a.cfg.Chat.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Chat.WaitTimeout)
		defer cancel()
	}
	w := usecase.NewTaskWaiter(a.client, a.cfg.Chat.PollInterval, a.logger)
	_, err := w.Wait(ctx, taskID, a.ui.taskStatus)
	return err
}

func newStatusCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show the status of an ingestion task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait {
				return a.waitTask(cmd.Context(), args[0])
			}
			st, err := a.client.GetTaskStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.ui.taskStatus(*st)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the task finishes")
	return cmd
}

func newDocsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "List ingested documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.client.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			a.ui.documents(list)
			return nil
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := a.client.HealthCheck(cmd.Context())
			if err != nil {
				return err
			}
			a.ui.success("%s: %s", a.client.BaseURL(), text)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [SESSION_ID]",
		Short: "List stored conversations or show one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("%w: history is disabled", domain.ErrHistoryStore)
			}
			if len(args) == 1 {
				msgs, err := store.Messages(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.ui.transcript(msgs)
				return nil
			}
			sessions, err := store.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			a.ui.sessions(sessions)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list (0 = all)")
	return cmd
}
