package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"ragchat/internal/adapter/backend"
	"ragchat/internal/infra/config"
	"ragchat/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

const doctorTimeout = 10 * time.Second

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Diagnose configuration and backend connectivity",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(ctx context.Context, out io.Writer, opts *rootOptions) error {
	// Some checks work without a config.
	cfg, cfgErr := loadConfig(opts)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(opts.configPath, cfgErr)},
		{Name: "Backend DNS", Fn: checkBackendDNS},
		{Name: "Backend health", Fn: checkBackendHealth},
		{Name: "History store", Fn: checkHistoryStore},
	}

	fmt.Fprintln(out, "ragchat doctor")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	results := runChecks(ctx, cfg, checks)

	var pass, warn, fail int
	for _, result := range results {
		fmt.Fprintf(out, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(out, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 50))
	fmt.Fprintf(out, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

// runChecks runs every check concurrently. Checks report problems through
// their result, so there is no error to collect. Results keep the order of
// checks.
func runChecks(ctx context.Context, cfg *config.Config, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Go(func() {
			results[i] = check.Fn(ctx, cfg)
			results[i].Name = check.Name
		})
	}
	wg.Wait()
	return results
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loads. A
// missing file is only a warning since defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Check the syntax and permissions of %s", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkBackendDNS resolves the backend host.
func checkBackendDNS(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid base URL: %v", err)}
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is an IP address", host)}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot resolve %s: %v", host, err),
			Fix:     "Check api.base_url and your DNS settings",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s resolves to %s", host, strings.Join(addrs, ", ")),
	}
}

// checkBackendHealth calls the health endpoint.
func checkBackendHealth(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	client := backend.New(cfg.API, logger.Discard())
	start := time.Now()
	text, err := client.HealthCheck(ctx)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s unhealthy: %v", client.BaseURL(), err),
			Fix:     "Start the backend or point --api at a running instance",
		}
	}
	if !strings.EqualFold(text, "ok") {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s answered %q (latency: %dms)", client.BaseURL(), text, latency.Milliseconds()),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s healthy (latency: %dms)", client.BaseURL(), latency.Milliseconds()),
	}
}

// checkHistoryStore verifies the history directory exists and is writable.
func checkHistoryStore(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusWarn, Message: "cannot check, config not loaded"}
	}
	if !cfg.History.Enabled {
		return CheckResult{Status: StatusPass, Message: "history disabled (transcripts are not saved)"}
	}

	absDir, _ := filepath.Abs(filepath.Dir(cfg.History.Path))
	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(absDir, 0o700); mkErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("history directory %s cannot be created: %v", absDir, mkErr),
				Fix:     fmt.Sprintf("Create the directory: mkdir -p %s", absDir),
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("history directory created at %s", absDir)}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot stat history directory: %v", err)}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s exists but is not a directory", absDir)}
	}

	testFile := filepath.Join(absDir, ".doctor-check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("history directory %s is not writable: %v", absDir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod 700 %s", absDir),
		}
	}
	os.Remove(testFile)

	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("history at %s", cfg.History.Path)}
}
