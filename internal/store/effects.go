package store

import (
	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/settings"
)

type effect struct {
	event string
	data  map[string]any
}

// diffEffects returns the outbound events implied by moving from prev to
// next: host notifications first, then the appearance refresh.
func diffEffects(prev, next settings.Snapshot) []effect {
	var out []effect
	if prev.Language != next.Language {
		out = append(out, languageEffect(next))
	}
	if prev.Proxy != next.Proxy {
		out = append(out, proxyEffect(next))
	}
	if prev.Logging != next.Logging {
		out = append(out, logConfigEffect(next))
	}
	if prev.WebInspectorEnabled != next.WebInspectorEnabled {
		out = append(out, webInspectorEffect(next))
	}
	if appearanceChanged(prev, next) {
		out = append(out, appearanceEffect(next))
	}
	return out
}

// initialEffects are replayed once after Init so the host adopts the
// loaded state.
func initialEffects(s settings.Snapshot) []effect {
	out := []effect{languageEffect(s), appearanceEffect(s)}
	if s.Proxy.Enabled {
		out = append(out, proxyEffect(s))
	}
	if s.Logging.Enabled {
		out = append(out, logConfigEffect(s))
	}
	if s.WebInspectorEnabled {
		out = append(out, webInspectorEffect(s))
	}
	return out
}

func appearanceChanged(prev, next settings.Snapshot) bool {
	return prev.Theme != next.Theme ||
		prev.FontSize != next.FontSize ||
		prev.FontFamily != next.FontFamily ||
		prev.TerminalFontSize != next.TerminalFontSize ||
		prev.TerminalFontFamily != next.TerminalFontFamily ||
		prev.TerminalTheme != next.TerminalTheme ||
		prev.BackgroundSettings != next.BackgroundSettings ||
		prev.Window.ZoomLevel != next.Window.ZoomLevel
}

func languageEffect(s settings.Snapshot) effect {
	return effect{hooks.EventSetLanguage, map[string]any{"language": s.Language}}
}

func proxyEffect(s settings.Snapshot) effect {
	return effect{hooks.EventSetProxy, map[string]any{
		"enabled":    s.Proxy.Enabled,
		"server":     s.Proxy.Server,
		"bypassList": s.Proxy.BypassList,
	}}
}

func logConfigEffect(s settings.Snapshot) effect {
	return effect{hooks.EventUpdateLogConfig, map[string]any{
		"enabled": s.Logging.Enabled,
		"level":   s.Logging.Level,
	}}
}

func webInspectorEffect(s settings.Snapshot) effect {
	if s.WebInspectorEnabled {
		return effect{hooks.EventWebInspectorStart, nil}
	}
	return effect{hooks.EventWebInspectorStop, nil}
}

func appearanceEffect(s settings.Snapshot) effect {
	return effect{hooks.EventAppearanceChanged, map[string]any{
		"theme":                s.Theme,
		"fontSize":             s.FontSize,
		"fontFamily":           s.FontFamily,
		"terminalFontSize":     s.TerminalFontSize,
		"terminalFontFamily":   s.TerminalFontFamily,
		"terminalTheme":        s.TerminalTheme,
		"backgroundEnabled":    s.BackgroundImageEnabled,
		"backgroundRefreshKey": s.BackgroundRefreshKey,
		"zoomLevel":            s.Window.ZoomLevel,
	}}
}
