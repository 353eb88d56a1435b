package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/enso/internal/migrate"
	"github.com/soyeahso/enso/internal/settings"
)

// SetTheme selects the UI theme.
func (s *Store) SetTheme(theme string) error {
	if !slices.Contains(settings.Themes, theme) {
		return &ValueError{Field: "theme", Value: theme}
	}
	return s.mutate(mutation{domain: "appearance", apply: func(n *settings.Snapshot) error {
		n.Theme = theme
		return nil
	}})
}

// SetLanguage selects the UI language and propagates it to the host.
func (s *Store) SetLanguage(lang string) error {
	if !slices.Contains(settings.Languages, lang) {
		return &ValueError{Field: "language", Value: lang}
	}
	return s.mutate(mutation{domain: "appearance", apply: func(n *settings.Snapshot) error {
		n.Language = lang
		return nil
	}})
}

// SetFontSize sets the UI font size, clamped to its bounds.
func (s *Store) SetFontSize(size int) error {
	return s.update("appearance", func(n *settings.Snapshot) {
		n.FontSize = size
	})
}

// SetFontFamily sets the UI font family. Blank names are rejected.
func (s *Store) SetFontFamily(family string) error {
	if strings.TrimSpace(family) == "" {
		return &ValueError{Field: "fontFamily", Value: family}
	}
	return s.update("appearance", func(n *settings.Snapshot) {
		n.FontFamily = family
	})
}

// UpdateTerminal edits the terminal settings. Out-of-range or unknown
// values are replaced by the previous ones.
func (s *Store) UpdateTerminal(fn func(*settings.TerminalSettings)) error {
	return s.update("terminal", func(n *settings.Snapshot) { fn(&n.TerminalSettings) })
}

func (s *Store) UpdateEditor(fn func(*settings.EditorSettings)) error {
	return s.update("editor", func(n *settings.Snapshot) { fn(&n.Editor) })
}

func (s *Store) UpdateXtermKeybindings(fn func(*settings.XtermKeybindings)) error {
	return s.update("xtermKeybindings", func(n *settings.Snapshot) { fn(&n.XtermKeybindings) })
}

func (s *Store) UpdateMainTabKeybindings(fn func(*settings.MainTabKeybindings)) error {
	return s.update("mainTabKeybindings", func(n *settings.Snapshot) { fn(&n.MainTabKeybindings) })
}

func (s *Store) UpdateClaudeCodeIntegration(fn func(*settings.ClaudeCodeIntegrationSettings)) error {
	return s.update("claudeCodeIntegration", func(n *settings.Snapshot) { fn(&n.ClaudeCodeIntegration) })
}

func (s *Store) UpdateCommitMessageGenerator(fn func(*settings.CommitMessageGeneratorSettings)) error {
	return s.update("commitMessageGenerator", func(n *settings.Snapshot) { fn(&n.CommitMessageGenerator) })
}

func (s *Store) UpdateCodeReview(fn func(*settings.CodeReviewSettings)) error {
	return s.update("codeReview", func(n *settings.Snapshot) { fn(&n.CodeReview) })
}

func (s *Store) UpdateBranchNameGenerator(fn func(*settings.BranchNameGeneratorSettings)) error {
	return s.update("branchNameGenerator", func(n *settings.Snapshot) { fn(&n.BranchNameGenerator) })
}

// UpdateBackground edits the background image settings. The refresh key
// is transient and cannot be changed here; see BumpBackgroundRefresh.
func (s *Store) UpdateBackground(fn func(*settings.BackgroundSettings)) error {
	return s.update("background", func(n *settings.Snapshot) {
		key := n.BackgroundRefreshKey
		fn(&n.BackgroundSettings)
		n.BackgroundRefreshKey = key
	})
}

func (s *Store) UpdateWindow(fn func(*settings.WindowSettings)) error {
	return s.update("window", func(n *settings.Snapshot) { fn(&n.Window) })
}

// SetProxy replaces the proxy settings and propagates them to the host.
func (s *Store) SetProxy(p settings.ProxySettings) error {
	return s.update("proxy", func(n *settings.Snapshot) { n.Proxy = p })
}

// SetLogging replaces the host logging settings and propagates them.
func (s *Store) SetLogging(l settings.LoggingSettings) error {
	if !slices.Contains(settings.LogLevels, l.Level) {
		return &ValueError{Field: "logging.level", Value: l.Level}
	}
	return s.update("logging", func(n *settings.Snapshot) { n.Logging = l })
}

// SetWebInspectorEnabled toggles the web inspector and starts or stops it
// on the host.
func (s *Store) SetWebInspectorEnabled(enabled bool) error {
	return s.update("webInspector", func(n *settings.Snapshot) { n.WebInspectorEnabled = enabled })
}

// BumpBackgroundRefresh increments the transient refresh key so the UI
// reloads the background image. Nothing is written to storage.
func (s *Store) BumpBackgroundRefresh() error {
	return s.mutate(mutation{domain: "background", transient: true, apply: func(n *settings.Snapshot) error {
		n.BackgroundRefreshKey++
		return nil
	}})
}

// Reset restores every persisted field to its default.
func (s *Store) Reset() error {
	return s.mutate(mutation{domain: "all", apply: func(n *settings.Snapshot) error {
		key := n.BackgroundRefreshKey
		*n = s.defaults.Clone()
		n.BackgroundRefreshKey = key
		return nil
	}})
}

// Apply sets the value at a dot-separated path of the persisted shape, as
// used by the gateway and the command line. The value is validated like
// persisted input; it returns the value in effect afterwards, which is the
// previous one when the input was rejected.
func (s *Store) Apply(path string, value any) (any, error) {
	segments, err := settings.ParsePath(path)
	if err != nil {
		return nil, err
	}

	var effective any
	err = s.mutate(mutation{domain: segments[0], apply: func(n *settings.Snapshot) error {
		raw := n.ToRaw()
		if _, ok := raw[segments[0]]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, segments[0])
		}
		if err := checkAgentPath(n, segments, value); err != nil {
			return err
		}
		settings.SetValueAtPath(raw, segments, value)

		prev := *n
		*n = migrate.Conform(raw, prev)
		if segments[0] == "agentSettings" {
			preferred := ""
			if len(segments) > 1 && n.AgentSettings[segments[1]].IsDefault {
				preferred = segments[1]
			}
			normalizeDefaultAgent(n, preferred)
		}

		effective, _ = settings.GetValueAtPath(n.ToRaw(), segments)
		return nil
	}})
	if err != nil {
		return nil, err
	}
	return effective, nil
}

// update runs fn on the snapshot and then validates the result against
// the previous snapshot, so invalid edits keep the previous values.
func (s *Store) update(domain string, fn func(*settings.Snapshot)) error {
	return s.mutate(mutation{domain: domain, apply: func(n *settings.Snapshot) error {
		prev := *n
		fn(n)
		*n = migrate.Conform(n.ToRaw(), prev)
		return nil
	}})
}
