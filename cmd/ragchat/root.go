package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"ragchat/internal/adapter/backend"
	"ragchat/internal/adapter/history"
	"ragchat/internal/domain"
	"ragchat/internal/infra/config"
	"ragchat/internal/infra/logger"
	"ragchat/internal/infra/tracer"
)

// annotationNoSetup marks commands that run without the shared app wiring.
const annotationNoSetup = "ragchat/no-setup"

type rootOptions struct {
	configPath string
	baseURL    string
	debug      bool
}

// app holds the wiring shared by all commands. It is built once in the
// root's PersistentPreRunE and torn down by execute.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *backend.Client
	store   domain.HistoryStore
	ui      *renderer
	closers []func() error
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintf(errOut, "error [%s]: %v\n", domain.ErrorCodeOf(err), err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintf(errOut, "hint: %s\n", hint)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Terminal client for a retrieval-augmented chat backend",
		Long: `ragchat talks to a RAG backend: it streams chat answers, uploads
documents for ingestion, follows ingestion tasks and keeps a local
transcript of every conversation.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoSetup] == "true" {
				return nil
			}
			return a.setup(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "config file path")
	root.PersistentFlags().StringVar(&opts.baseURL, "api", "", "backend base URL (overrides config)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(a),
		newUploadCmd(a),
		newUploadTextCmd(a),
		newStatusCmd(a),
		newDocsCmd(a),
		newHealthCmd(a),
		newHistoryCmd(a),
		newDoctorCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	a.logger = log
	a.closers = append(a.closers, closeLog)

	shutdown, err := tracer.Setup(cmd.Context(), cfg.Tracer)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	a.client = backend.New(cfg.API, log)
	a.ui = newRenderer(cmd.OutOrStdout(), cfg.Chat.RenderMarkdown)

	log.Debug("ragchat configured",
		"config", opts.configPath,
		"api", cfg.API.BaseURL,
		"history", cfg.History.Enabled,
	)
	return nil
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.debug {
		cfg.Logger.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	return cfg, nil
}

// historyStore opens the transcript store on first use. It returns nil
// when history is disabled.
func (a *app) historyStore() (domain.HistoryStore, error) {
	if a.store != nil || !a.cfg.History.Enabled {
		return a.store, nil
	}
	store, err := history.NewSQLiteStore(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("cleanup failed", "error", err)
		}
	}
	a.closers = nil
}
