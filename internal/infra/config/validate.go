package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAPI(cfg, ve)
	validateChat(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateHistory(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAPI(cfg *Config, ve *ValidationError) {
	u, err := url.Parse(cfg.API.BaseURL)
	switch {
	case cfg.API.BaseURL == "":
		ve.Add("api.base_url must not be empty")
	case err != nil:
		ve.Add("api.base_url is not a valid URL: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		ve.Add("api.base_url scheme must be http or https, got %q", u.Scheme)
	case u.Host == "":
		ve.Add("api.base_url must include a host")
	}
	if cfg.API.ConnTimeout < 0 {
		ve.Add("api.conn_timeout must be >= 0")
	}
	if cfg.API.RespTimeout < 0 {
		ve.Add("api.resp_timeout must be >= 0")
	}
	if cfg.API.RequestsPerMinute < 0 {
		ve.Add("api.requests_per_minute must be >= 0")
	}
	if cfg.API.RequestsPerMinute > 0 && cfg.API.Burst <= 0 {
		ve.Add("api.burst must be > 0 when requests_per_minute is set")
	}
	if cb := cfg.API.CircuitBreaker; cb.Enabled && cb.Timeout < 0 {
		ve.Add("api.circuit_breaker.timeout must be >= 0")
	}
}

func validateChat(cfg *Config, ve *ValidationError) {
	if cfg.Chat.PollInterval <= 0 {
		ve.Add("chat.poll_interval must be > 0")
	}
	if cfg.Chat.WaitTimeout < 0 {
		ve.Add("chat.wait_timeout must be >= 0")
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format must be text or json, got %q", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter must be noop or stdout, got %q", cfg.Tracer.Exporter)
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		ve.Add("history.path must not be empty when history is enabled")
	}
}
