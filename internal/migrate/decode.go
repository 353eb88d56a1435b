package migrate

import (
	"sort"
	"strings"

	"github.com/soyeahso/enso/internal/sanitize"
	"github.com/soyeahso/enso/internal/settings"
)

// mapMode selects how keyed collections (agentSettings, agentDetectionStatus)
// combine with the fallback.
type mapMode int

const (
	// mergeMaps keeps fallback entries the raw input does not mention.
	mergeMaps mapMode = iota
	// replaceMaps keeps exactly the entries present in the raw input.
	replaceMaps
)

// Decode validates every field of raw against fallback: fields that are
// missing or malformed take the fallback value, keyed collections are merged
// over the fallback's entries. It performs no renames and no repairs.
func Decode(raw Raw, fallback settings.Snapshot) settings.Snapshot {
	return decode(raw, fallback, mergeMaps)
}

// Conform validates raw against the current snapshot for a mutation: it is
// Decode except that keyed collections present in raw replace the current
// ones, so deleted entries stay deleted.
func Conform(raw Raw, current settings.Snapshot) settings.Snapshot {
	return decode(raw, current, replaceMaps)
}

func decode(raw Raw, fb settings.Snapshot, mode mapMode) settings.Snapshot {
	return settings.Snapshot{
		AppearanceSettings:     decodeAppearance(raw, fb.AppearanceSettings),
		TerminalSettings:       decodeTerminal(raw, fb.TerminalSettings),
		BackgroundSettings:     decodeBackground(raw, fb.BackgroundSettings),
		Editor:                 decodeEditor(object(raw, "editor"), fb.Editor),
		XtermKeybindings:       decodeXtermKeybindings(object(raw, "xtermKeybindings"), fb.XtermKeybindings),
		MainTabKeybindings:     decodeMainTabKeybindings(object(raw, "mainTabKeybindings"), fb.MainTabKeybindings),
		AgentSettings:          decodeAgentSettings(raw["agentSettings"], fb.AgentSettings, mode),
		CustomAgents:           decodeCustomAgents(raw["customAgents"], fb.CustomAgents),
		AgentDetectionStatus:   decodeDetectionStatus(raw["agentDetectionStatus"], fb.AgentDetectionStatus, mode),
		ClaudeCodeIntegration:  decodeClaudeCode(object(raw, "claudeCodeIntegration"), fb.ClaudeCodeIntegration),
		CommitMessageGenerator: decodeCommitMessage(object(raw, "commitMessageGenerator"), fb.CommitMessageGenerator),
		CodeReview:             decodeCodeReview(object(raw, "codeReview"), fb.CodeReview),
		BranchNameGenerator:    decodeBranchName(object(raw, "branchNameGenerator"), fb.BranchNameGenerator),
		Proxy:                  decodeProxy(object(raw, "proxy"), fb.Proxy),
		Logging:                decodeLogging(object(raw, "logging"), fb.Logging),
		WebInspectorEnabled:    sanitize.Boolean(raw["webInspectorEnabled"], fb.WebInspectorEnabled),
		Window:                 decodeWindow(object(raw, "window"), fb.Window),
	}
}

// maxDetectedAt is the largest integral float64 that converts exactly.
const maxDetectedAt = 1 << 53

// object returns raw[key] as a map; a nil map reads as "every field missing".
func object(raw Raw, key string) map[string]any {
	m, _ := sanitize.Object(raw[key])
	return m
}

func clampInt(v any, b settings.Bounds, fallback int) int {
	return sanitize.ClampInt(v, int(b.Min), int(b.Max), fallback)
}

func clampFloat(v any, b settings.Bounds, fallback float64) float64 {
	return sanitize.ClampNumber(v, b.Min, b.Max, fallback)
}

func decodeAppearance(raw Raw, fb settings.AppearanceSettings) settings.AppearanceSettings {
	return settings.AppearanceSettings{
		Theme:      sanitize.Enum(raw["theme"], settings.Themes, fb.Theme),
		Language:   sanitize.Enum(raw["language"], settings.Languages, fb.Language),
		FontSize:   clampInt(raw["fontSize"], settings.FontSizeBounds, fb.FontSize),
		FontFamily: sanitize.NonEmptyString(raw["fontFamily"], fb.FontFamily),
	}
}

func decodeTerminal(raw Raw, fb settings.TerminalSettings) settings.TerminalSettings {
	shell := object(raw, "shellConfig")
	return settings.TerminalSettings{
		TerminalFontSize:     clampInt(raw["terminalFontSize"], settings.TerminalFontSizeBounds, fb.TerminalFontSize),
		TerminalFontFamily:   sanitize.NonEmptyString(raw["terminalFontFamily"], fb.TerminalFontFamily),
		TerminalTheme:        sanitize.NonEmptyString(raw["terminalTheme"], fb.TerminalTheme),
		TerminalRenderer:     sanitize.Enum(raw["terminalRenderer"], settings.Renderers, fb.TerminalRenderer),
		TerminalScrollback:   clampInt(raw["terminalScrollback"], settings.TerminalScrollbackBounds, fb.TerminalScrollback),
		TerminalOptionIsMeta: sanitize.Boolean(raw["terminalOptionIsMeta"], fb.TerminalOptionIsMeta),
		ShellConfig: settings.ShellConfig{
			ShellType:       sanitize.Enum(shell["shellType"], settings.ShellTypes, fb.ShellConfig.ShellType),
			CustomShellPath: sanitize.String(shell["customShellPath"], fb.ShellConfig.CustomShellPath),
			CustomShellArgs: sanitize.StringSlice(shell["customShellArgs"], fb.ShellConfig.CustomShellArgs),
		},
	}
}

func decodeBackground(raw Raw, fb settings.BackgroundSettings) settings.BackgroundSettings {
	return settings.BackgroundSettings{
		BackgroundImageEnabled: sanitize.Boolean(raw["backgroundImageEnabled"], fb.BackgroundImageEnabled),
		BackgroundImagePath:    sanitize.String(raw["backgroundImagePath"], fb.BackgroundImagePath),
		BackgroundOpacity:      clampFloat(raw["backgroundOpacity"], settings.BackgroundOpacityBounds, fb.BackgroundOpacity),
		BackgroundBlur:         clampInt(raw["backgroundBlur"], settings.BackgroundBlurBounds, fb.BackgroundBlur),
		BackgroundBrightness:   clampFloat(raw["backgroundBrightness"], settings.BackgroundBrightnessBounds, fb.BackgroundBrightness),
		BackgroundSaturation:   clampFloat(raw["backgroundSaturation"], settings.BackgroundSaturationBounds, fb.BackgroundSaturation),
		BackgroundSizeMode:     sanitize.Enum(raw["backgroundSizeMode"], settings.BackgroundSizeModes, fb.BackgroundSizeMode),
		BackgroundRenderer:     sanitize.Enum(raw["backgroundRenderer"], settings.Renderers, fb.BackgroundRenderer),
		BackgroundRefreshKey:   fb.BackgroundRefreshKey,
	}
}

func decodeEditor(m map[string]any, fb settings.EditorSettings) settings.EditorSettings {
	return settings.EditorSettings{
		FontSize:         clampInt(m["fontSize"], settings.EditorFontSizeBounds, fb.FontSize),
		FontFamily:       sanitize.NonEmptyString(m["fontFamily"], fb.FontFamily),
		TabSize:          clampInt(m["tabSize"], settings.TabSizeBounds, fb.TabSize),
		InsertSpaces:     sanitize.Boolean(m["insertSpaces"], fb.InsertSpaces),
		WordWrap:         sanitize.Enum(m["wordWrap"], settings.WordWrapModes, fb.WordWrap),
		MinimapEnabled:   sanitize.Boolean(m["minimapEnabled"], fb.MinimapEnabled),
		LineNumbers:      sanitize.Enum(m["lineNumbers"], settings.LineNumberModes, fb.LineNumbers),
		RenderWhitespace: sanitize.Enum(m["renderWhitespace"], settings.RenderWhitespaceModes, fb.RenderWhitespace),
		AutoSave:         sanitize.Enum(m["autoSave"], settings.AutoSaveModes, fb.AutoSave),
		AutoSaveDelay:    clampInt(m["autoSaveDelay"], settings.AutoSaveDelayBounds, fb.AutoSaveDelay),
	}
}

// decodeKeybinding accepts a binding only when it names a key. Modifiers
// belong to the binding, so absent ones are false rather than inherited.
func decodeKeybinding(v any, fb settings.Keybinding) settings.Keybinding {
	m, ok := sanitize.Object(v)
	if !ok {
		return fb
	}
	key := sanitize.NonEmptyString(m["key"], "")
	if key == "" {
		return fb
	}
	return settings.Keybinding{
		Key:   key,
		Ctrl:  sanitize.Boolean(m["ctrl"], false),
		Alt:   sanitize.Boolean(m["alt"], false),
		Shift: sanitize.Boolean(m["shift"], false),
		Meta:  sanitize.Boolean(m["meta"], false),
	}
}

func decodeXtermKeybindings(m map[string]any, fb settings.XtermKeybindings) settings.XtermKeybindings {
	return settings.XtermKeybindings{
		NewTab:   decodeKeybinding(m["newTab"], fb.NewTab),
		CloseTab: decodeKeybinding(m["closeTab"], fb.CloseTab),
		NextTab:  decodeKeybinding(m["nextTab"], fb.NextTab),
		PrevTab:  decodeKeybinding(m["prevTab"], fb.PrevTab),
		Split:    decodeKeybinding(m["split"], fb.Split),
		Merge:    decodeKeybinding(m["merge"], fb.Merge),
		Clear:    decodeKeybinding(m["clear"], fb.Clear),
	}
}

func decodeMainTabKeybindings(m map[string]any, fb settings.MainTabKeybindings) settings.MainTabKeybindings {
	return settings.MainTabKeybindings{
		SwitchToAgent:    decodeKeybinding(m["switchToAgent"], fb.SwitchToAgent),
		SwitchToFile:     decodeKeybinding(m["switchToFile"], fb.SwitchToFile),
		SwitchToTerminal: decodeKeybinding(m["switchToTerminal"], fb.SwitchToTerminal),
	}
}

func decodeAgentSettings(v any, fb map[string]settings.AgentConfig, mode mapMode) map[string]settings.AgentConfig {
	m, ok := sanitize.Object(v)
	if !ok || mode == mergeMaps {
		out := make(map[string]settings.AgentConfig, len(fb))
		for id, cfg := range fb {
			out[id] = cfg
		}
		if !ok {
			return out
		}
		return mergeAgentEntries(out, m, fb)
	}
	return mergeAgentEntries(make(map[string]settings.AgentConfig, len(m)), m, fb)
}

func mergeAgentEntries(out map[string]settings.AgentConfig, m map[string]any, fb map[string]settings.AgentConfig) map[string]settings.AgentConfig {
	for id, entry := range m {
		if strings.TrimSpace(id) == "" {
			continue
		}
		em, ok := sanitize.Object(entry)
		if !ok {
			continue
		}
		base := fb[id]
		out[id] = settings.AgentConfig{
			Enabled:    sanitize.Boolean(em["enabled"], base.Enabled),
			IsDefault:  sanitize.Boolean(em["isDefault"], base.IsDefault),
			CustomPath: sanitize.String(em["customPath"], base.CustomPath),
			CustomArgs: sanitize.String(em["customArgs"], base.CustomArgs),
		}
	}
	return out
}

// decodeCustomAgents keeps entries that carry an id and a command; the
// first entry wins when ids repeat.
func decodeCustomAgents(v any, fb []settings.CustomAgent) []settings.CustomAgent {
	list, ok := v.([]any)
	if !ok {
		return append([]settings.CustomAgent{}, fb...)
	}
	out := make([]settings.CustomAgent, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, item := range list {
		m, ok := sanitize.Object(item)
		if !ok {
			continue
		}
		id := strings.TrimSpace(sanitize.String(m["id"], ""))
		command := sanitize.NonEmptyString(m["command"], "")
		if id == "" || command == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, settings.CustomAgent{
			ID:          id,
			Name:        sanitize.NonEmptyString(m["name"], id),
			Command:     command,
			Description: sanitize.String(m["description"], ""),
		})
	}
	return out
}

func decodeDetectionStatus(v any, fb map[string]settings.AgentDetectionInfo, mode mapMode) map[string]settings.AgentDetectionInfo {
	m, ok := sanitize.Object(v)
	out := make(map[string]settings.AgentDetectionInfo, len(fb))
	if !ok || mode == mergeMaps {
		for id, info := range fb {
			out[id] = info
		}
	}
	if !ok {
		return out
	}
	for id, entry := range m {
		if strings.TrimSpace(id) == "" {
			continue
		}
		em, ok := sanitize.Object(entry)
		if !ok {
			continue
		}
		detectedAt := sanitize.ClampNumber(em["detectedAt"], 0, maxDetectedAt, 0)
		out[id] = settings.AgentDetectionInfo{
			Installed:  sanitize.Boolean(em["installed"], false),
			Version:    sanitize.String(em["version"], ""),
			Path:       sanitize.String(em["path"], ""),
			IsWSL:      sanitize.Boolean(em["isWsl"], false),
			DetectedAt: int64(detectedAt),
		}
	}
	return out
}

func decodeClaudeCode(m map[string]any, fb settings.ClaudeCodeIntegrationSettings) settings.ClaudeCodeIntegrationSettings {
	return settings.ClaudeCodeIntegrationSettings{
		Enabled:                  sanitize.Boolean(m["enabled"], fb.Enabled),
		SelectionChangedDebounce: clampInt(m["selectionChangedDebounce"], settings.SelectionDebounceBounds, fb.SelectionChangedDebounce),
		AtMentionedKeybinding:    decodeKeybinding(m["atMentionedKeybinding"], fb.AtMentionedKeybinding),
		StopHookEnabled:          sanitize.Boolean(m["stopHookEnabled"], fb.StopHookEnabled),
		EnhancedInputEnabled:     sanitize.Boolean(m["enhancedInputEnabled"], fb.EnhancedInputEnabled),
		EnhancedInputAutoPopup:   sanitize.Enum(m["enhancedInputAutoPopup"], settings.AutoPopupModes, fb.EnhancedInputAutoPopup),
	}
}

func decodeCommitMessage(m map[string]any, fb settings.CommitMessageGeneratorSettings) settings.CommitMessageGeneratorSettings {
	return settings.CommitMessageGeneratorSettings{
		Enabled:      sanitize.Boolean(m["enabled"], fb.Enabled),
		MaxDiffLines: clampInt(m["maxDiffLines"], settings.MaxDiffLinesBounds, fb.MaxDiffLines),
		Timeout:      clampInt(m["timeout"], settings.CommitTimeoutBounds, fb.Timeout),
		Provider:     sanitize.Enum(m["provider"], settings.AIProviders, fb.Provider),
		Model:        sanitize.NonEmptyString(m["model"], fb.Model),
	}
}

func decodeCodeReview(m map[string]any, fb settings.CodeReviewSettings) settings.CodeReviewSettings {
	return settings.CodeReviewSettings{
		Enabled:  sanitize.Boolean(m["enabled"], fb.Enabled),
		Provider: sanitize.Enum(m["provider"], settings.AIProviders, fb.Provider),
		Model:    sanitize.NonEmptyString(m["model"], fb.Model),
		Language: sanitize.NonEmptyString(m["language"], fb.Language),
	}
}

func decodeBranchName(m map[string]any, fb settings.BranchNameGeneratorSettings) settings.BranchNameGeneratorSettings {
	return settings.BranchNameGeneratorSettings{
		Enabled:  sanitize.Boolean(m["enabled"], fb.Enabled),
		Provider: sanitize.Enum(m["provider"], settings.AIProviders, fb.Provider),
		Model:    sanitize.NonEmptyString(m["model"], fb.Model),
		Prompt:   sanitize.String(m["prompt"], fb.Prompt),
	}
}

func decodeProxy(m map[string]any, fb settings.ProxySettings) settings.ProxySettings {
	return settings.ProxySettings{
		Enabled:    sanitize.Boolean(m["enabled"], fb.Enabled),
		Server:     strings.TrimSpace(sanitize.String(m["server"], fb.Server)),
		BypassList: sanitize.String(m["bypassList"], fb.BypassList),
	}
}

func decodeLogging(m map[string]any, fb settings.LoggingSettings) settings.LoggingSettings {
	return settings.LoggingSettings{
		Enabled: sanitize.Boolean(m["enabled"], fb.Enabled),
		Level:   sanitize.Enum(m["level"], settings.LogLevels, fb.Level),
	}
}

func decodeWindow(m map[string]any, fb settings.WindowSettings) settings.WindowSettings {
	return settings.WindowSettings{
		MinimizeToTray:     sanitize.Boolean(m["minimizeToTray"], fb.MinimizeToTray),
		RestoreLastSession: sanitize.Boolean(m["restoreLastSession"], fb.RestoreLastSession),
		ZoomLevel:          clampFloat(m["zoomLevel"], settings.ZoomLevelBounds, fb.ZoomLevel),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
