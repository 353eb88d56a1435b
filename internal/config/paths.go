package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the per-user application directory.
const AppName = "enso"

// Paths holds resolved filesystem paths for enso data.
type Paths struct {
	Base     string // $XDG_CONFIG_HOME/enso
	Config   string // <base>/config.yaml
	Settings string // <base>/settings.json
	Database string // <base>/enso.db
	Logs     string // <base>/logs
}

// ResolvePaths computes all standard paths. ENSO_HOME overrides the base
// directory; otherwise the XDG config home is used.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ENSO_HOME")
	if base == "" {
		if xdg.ConfigHome == "" {
			return Paths{}, &ConfigError{Message: "cannot determine config directory"}
		}
		base = filepath.Join(xdg.ConfigHome, AppName)
	}
	return PathsAt(base), nil
}

// PathsAt lays out the standard files under base.
func PathsAt(base string) Paths {
	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Settings: filepath.Join(base, "settings.json"),
		Database: filepath.Join(base, "enso.db"),
		Logs:     filepath.Join(base, "logs"),
	}
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
