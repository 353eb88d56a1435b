package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort        = 18790
	DefaultSettingsKey = "enso-settings"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Backend: "file",
			Key:     DefaultSettingsKey,
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Port:    DefaultPort,
			Bind:    "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "console",
		},
		Detect: DetectConfig{
			OnStartup:      true,
			TimeoutSeconds: 5,
			Concurrency:    4,
		},
	}
}

// Timeout returns the per-probe detection timeout.
func (d DetectConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// SettingsFile returns the settings JSON path, falling back to the
// standard location under p.
func (c Config) SettingsFile(p Paths) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return p.Settings
}

// DatabaseFile returns the SQLite path, falling back to the standard
// location under p.
func (c Config) DatabaseFile(p Paths) string {
	if c.Storage.Database != "" {
		return c.Storage.Database
	}
	return p.Database
}
