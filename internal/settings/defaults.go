package settings

import (
	"runtime"
	"slices"
)

// Allowed value sets for enum-like fields.
var (
	Themes                = []string{"light", "dark", "system", "sync-terminal"}
	Languages             = []string{"en", "zh"}
	Renderers             = []string{"dom", "webgl"}
	ShellTypes            = []string{"system", "bash", "zsh", "fish", "nushell", "powershell", "pwsh", "cmd", "wsl", "gitbash", "custom"}
	WordWrapModes         = []string{"off", "on", "wordWrapColumn", "bounded"}
	LineNumberModes       = []string{"on", "off", "relative", "interval"}
	RenderWhitespaceModes = []string{"none", "boundary", "selection", "trailing", "all"}
	AutoSaveModes         = []string{"off", "afterDelay", "onFocusChange", "onWindowChange"}
	AutoPopupModes        = []string{"always", "hideWhileRunning", "manual"}
	AIProviders           = []string{"claude-code", "codex", "gemini"}
	BackgroundSizeModes   = []string{"cover", "contain", "repeat", "center"}
	LogLevels             = []string{"error", "warn", "info", "debug"}
	BuiltinAgentIDs       = []string{"claude", "codex", "droid", "gemini", "auggie", "cursor", "opencode"}
	defaultBuiltinAgentID = "claude"
)

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min, Max float64
}

var (
	FontSizeBounds             = Bounds{10, 32}
	TerminalFontSizeBounds     = Bounds{8, 32}
	TerminalScrollbackBounds   = Bounds{1000, 100000}
	EditorFontSizeBounds       = Bounds{8, 32}
	TabSizeBounds              = Bounds{1, 8}
	AutoSaveDelayBounds        = Bounds{100, 60000}
	SelectionDebounceBounds    = Bounds{50, 5000}
	MaxDiffLinesBounds         = Bounds{100, 10000}
	CommitTimeoutBounds        = Bounds{5, 300}
	BackgroundOpacityBounds    = Bounds{0, 1}
	BackgroundBlurBounds       = Bounds{0, 20}
	BackgroundBrightnessBounds = Bounds{0, 2}
	BackgroundSaturationBounds = Bounds{0, 2}
	ZoomLevelBounds            = Bounds{-3, 3}
)

// PlatformDefaults holds the fields whose default depends on the host OS.
type PlatformDefaults struct {
	ShellType          string
	TerminalFontFamily string
}

// DefaultForPlatform returns the OS-dependent defaults for a GOOS value.
func DefaultForPlatform(platform string) PlatformDefaults {
	switch platform {
	case "darwin":
		return PlatformDefaults{ShellType: "zsh", TerminalFontFamily: "Menlo, Monaco, monospace"}
	case "windows":
		return PlatformDefaults{ShellType: "powershell", TerminalFontFamily: "Cascadia Mono, Consolas, monospace"}
	default:
		return PlatformDefaults{ShellType: "system", TerminalFontFamily: "JetBrains Mono, DejaVu Sans Mono, monospace"}
	}
}

// CurrentPlatform is the platform Defaults uses when none is given.
func CurrentPlatform() string {
	return runtime.GOOS
}

// Defaults returns the complete default snapshot for a platform.
// An empty platform means the running OS.
func Defaults(platform string) Snapshot {
	if platform == "" {
		platform = CurrentPlatform()
	}
	pd := DefaultForPlatform(platform)

	return Snapshot{
		AppearanceSettings: AppearanceSettings{
			Theme:      "system",
			Language:   "en",
			FontSize:   14,
			FontFamily: "Inter, system-ui, sans-serif",
		},
		TerminalSettings: TerminalSettings{
			TerminalFontSize:     14,
			TerminalFontFamily:   pd.TerminalFontFamily,
			TerminalTheme:        "Dracula",
			TerminalRenderer:     "webgl",
			TerminalScrollback:   10000,
			TerminalOptionIsMeta: false,
			ShellConfig: ShellConfig{
				ShellType:       pd.ShellType,
				CustomShellPath: "",
				CustomShellArgs: []string{},
			},
		},
		BackgroundSettings: BackgroundSettings{
			BackgroundImageEnabled: false,
			BackgroundImagePath:    "",
			BackgroundOpacity:      0.85,
			BackgroundBlur:         0,
			BackgroundBrightness:   1,
			BackgroundSaturation:   1,
			BackgroundSizeMode:     "cover",
			BackgroundRenderer:     "webgl",
		},
		Editor: EditorSettings{
			FontSize:         13,
			FontFamily:       "JetBrains Mono, Menlo, monospace",
			TabSize:          2,
			InsertSpaces:     true,
			WordWrap:         "on",
			MinimapEnabled:   false,
			LineNumbers:      "on",
			RenderWhitespace: "selection",
			AutoSave:         "off",
			AutoSaveDelay:    1000,
		},
		XtermKeybindings: XtermKeybindings{
			NewTab:   Keybinding{Key: "t", Ctrl: true},
			CloseTab: Keybinding{Key: "w", Ctrl: true},
			NextTab:  Keybinding{Key: "]", Ctrl: true},
			PrevTab:  Keybinding{Key: "[", Ctrl: true},
			Split:    Keybinding{Key: "d", Ctrl: true},
			Merge:    Keybinding{Key: "d", Ctrl: true, Shift: true},
			Clear:    Keybinding{Key: "k", Ctrl: true},
		},
		MainTabKeybindings: MainTabKeybindings{
			SwitchToAgent:    Keybinding{Key: "1", Ctrl: true},
			SwitchToFile:     Keybinding{Key: "2", Ctrl: true},
			SwitchToTerminal: Keybinding{Key: "3", Ctrl: true},
		},
		AgentSettings:        defaultAgentSettings(),
		CustomAgents:         []CustomAgent{},
		AgentDetectionStatus: map[string]AgentDetectionInfo{},
		ClaudeCodeIntegration: ClaudeCodeIntegrationSettings{
			Enabled:                  true,
			SelectionChangedDebounce: 300,
			AtMentionedKeybinding:    Keybinding{Key: "m", Meta: true, Shift: true},
			StopHookEnabled:          true,
			EnhancedInputEnabled:     true,
			EnhancedInputAutoPopup:   "hideWhileRunning",
		},
		CommitMessageGenerator: CommitMessageGeneratorSettings{
			Enabled:      true,
			MaxDiffLines: 1000,
			Timeout:      60,
			Provider:     "claude-code",
			Model:        "haiku",
		},
		CodeReview: CodeReviewSettings{
			Enabled:  true,
			Provider: "claude-code",
			Model:    "sonnet",
			Language: "English",
		},
		BranchNameGenerator: BranchNameGeneratorSettings{
			Enabled:  false,
			Provider: "claude-code",
			Model:    "haiku",
			Prompt:   "",
		},
		Proxy: ProxySettings{
			Enabled:    false,
			Server:     "",
			BypassList: "localhost,127.0.0.1",
		},
		Logging: LoggingSettings{
			Enabled: false,
			Level:   "info",
		},
		WebInspectorEnabled: false,
		Window: WindowSettings{
			MinimizeToTray:     false,
			RestoreLastSession: true,
			ZoomLevel:          0,
		},
	}
}

func defaultAgentSettings() map[string]AgentConfig {
	agents := make(map[string]AgentConfig, len(BuiltinAgentIDs))
	for _, id := range BuiltinAgentIDs {
		agents[id] = AgentConfig{
			Enabled:   id == defaultBuiltinAgentID,
			IsDefault: id == defaultBuiltinAgentID,
		}
	}
	return agents
}

// IsBuiltinAgent reports whether id names a built-in agent.
func IsBuiltinAgent(id string) bool {
	return slices.Contains(BuiltinAgentIDs, id)
}
