package config

import (
	"fmt"
	"slices"

	"github.com/soyeahso/enso/internal/logging"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var (
	validBackends      = []string{"file", "sqlite", "memory"}
	validBinds         = []string{"loopback", "lan", "custom"}
	validAuthModes     = []string{"token", "password"}
	validConsoleStyles = []string{logging.StyleConsole, logging.StyleJSON}
	validPlatforms     = []string{"darwin", "linux", "windows"}
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Platform != "" && !slices.Contains(validPlatforms, cfg.Platform) {
		add("platform", "must be one of %v, got %q", validPlatforms, cfg.Platform)
	}

	// Storage validation
	if !slices.Contains(validBackends, cfg.Storage.Backend) {
		add("storage.backend", "must be one of %v, got %q", validBackends, cfg.Storage.Backend)
	}
	if cfg.Storage.Key == "" {
		add("storage.key", "key is required")
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	// Logging validation
	if cfg.Logging.Level != "" && !logging.ValidLevel(cfg.Logging.Level) {
		add("logging.level", "unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Detection validation
	if cfg.Detect.TimeoutSeconds < 1 || cfg.Detect.TimeoutSeconds > 120 {
		add("detect.timeoutSeconds", "must be 1-120, got %d", cfg.Detect.TimeoutSeconds)
	}
	if cfg.Detect.Concurrency < 1 || cfg.Detect.Concurrency > 32 {
		add("detect.concurrency", "must be 1-32, got %d", cfg.Detect.Concurrency)
	}

	return issues
}
