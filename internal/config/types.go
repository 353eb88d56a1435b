package config

// Config is the root configuration of the enso daemon. It covers where
// settings live and how the host bridge is exposed; the settings
// themselves are owned by the settings store, not by this file.
type Config struct {
	Platform string        `yaml:"platform,omitempty"` // "darwin" | "linux" | "windows"; empty uses the running OS
	Storage  StorageConfig `yaml:"storage,omitempty"`
	Gateway  GatewayConfig `yaml:"gateway,omitempty"`
	Logging  LoggingConfig `yaml:"logging,omitempty"`
	Detect   DetectConfig  `yaml:"detect,omitempty"`
}

// StorageConfig selects the persistence backend for settings.
type StorageConfig struct {
	Backend  string `yaml:"backend,omitempty"`  // "file" | "sqlite" | "memory"
	Path     string `yaml:"path,omitempty"`     // settings JSON file; empty uses <home>/settings.json
	Database string `yaml:"database,omitempty"` // SQLite file; empty uses <home>/enso.db
	Key      string `yaml:"key,omitempty"`      // top-level store name
}

// GatewayConfig controls the host bridge HTTP/WebSocket server.
type GatewayConfig struct {
	Enabled        bool        `yaml:"enabled"`
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LoggingConfig controls daemon logging.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "console" | "json"
}

// DetectConfig controls agent CLI detection.
type DetectConfig struct {
	OnStartup      bool `yaml:"onStartup"`
	TimeoutSeconds int  `yaml:"timeoutSeconds,omitempty"`
	Concurrency    int  `yaml:"concurrency,omitempty"`
}
