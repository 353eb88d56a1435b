// Package settings defines the typed settings snapshot, its default table and
// the allowed value sets each enum-like field is validated against.
package settings

// StoreKey is the top-level key the settings snapshot is persisted under.
const StoreKey = "enso-settings"

// SchemaVersion is written next to the persisted state. Loading does not
// branch on it; the merge against defaults handles every older shape.
const SchemaVersion = 3

// Snapshot is the complete, validated settings state.
// Embedded groups are flattened into the top-level JSON object; named
// fields are persisted as nested objects.
type Snapshot struct {
	AppearanceSettings
	TerminalSettings
	BackgroundSettings

	Editor                 EditorSettings                 `json:"editor"`
	XtermKeybindings       XtermKeybindings               `json:"xtermKeybindings"`
	MainTabKeybindings     MainTabKeybindings             `json:"mainTabKeybindings"`
	AgentSettings          map[string]AgentConfig         `json:"agentSettings"`
	CustomAgents           []CustomAgent                  `json:"customAgents"`
	AgentDetectionStatus   map[string]AgentDetectionInfo  `json:"agentDetectionStatus"`
	ClaudeCodeIntegration  ClaudeCodeIntegrationSettings  `json:"claudeCodeIntegration"`
	CommitMessageGenerator CommitMessageGeneratorSettings `json:"commitMessageGenerator"`
	CodeReview             CodeReviewSettings             `json:"codeReview"`
	BranchNameGenerator    BranchNameGeneratorSettings    `json:"branchNameGenerator"`
	Proxy                  ProxySettings                  `json:"proxy"`
	Logging                LoggingSettings                `json:"logging"`
	WebInspectorEnabled    bool                           `json:"webInspectorEnabled"`
	Window                 WindowSettings                 `json:"window"`
}

// AppearanceSettings holds the UI look-and-feel fields.
type AppearanceSettings struct {
	Theme      string `json:"theme"`
	Language   string `json:"language"`
	FontSize   int    `json:"fontSize"`
	FontFamily string `json:"fontFamily"`
}

// TerminalSettings holds the integrated terminal fields.
type TerminalSettings struct {
	TerminalFontSize     int         `json:"terminalFontSize"`
	TerminalFontFamily   string      `json:"terminalFontFamily"`
	TerminalTheme        string      `json:"terminalTheme"`
	TerminalRenderer     string      `json:"terminalRenderer"`
	TerminalScrollback   int         `json:"terminalScrollback"`
	TerminalOptionIsMeta bool        `json:"terminalOptionIsMeta"`
	ShellConfig          ShellConfig `json:"shellConfig"`
}

// ShellConfig selects the shell spawned by new terminals.
type ShellConfig struct {
	ShellType       string   `json:"shellType"`
	CustomShellPath string   `json:"customShellPath"`
	CustomShellArgs []string `json:"customShellArgs"`
}

// BackgroundSettings holds the window background image fields.
// BackgroundRefreshKey is transient: it only exists to force the UI to
// recompute and is never written to storage.
type BackgroundSettings struct {
	BackgroundImageEnabled bool    `json:"backgroundImageEnabled"`
	BackgroundImagePath    string  `json:"backgroundImagePath"`
	BackgroundOpacity      float64 `json:"backgroundOpacity"`
	BackgroundBlur         int     `json:"backgroundBlur"`
	BackgroundBrightness   float64 `json:"backgroundBrightness"`
	BackgroundSaturation   float64 `json:"backgroundSaturation"`
	BackgroundSizeMode     string  `json:"backgroundSizeMode"`
	BackgroundRenderer     string  `json:"backgroundRenderer"`
	BackgroundRefreshKey   int     `json:"-"`
}

// EditorSettings configures the code editor panel.
type EditorSettings struct {
	FontSize         int    `json:"fontSize"`
	FontFamily       string `json:"fontFamily"`
	TabSize          int    `json:"tabSize"`
	InsertSpaces     bool   `json:"insertSpaces"`
	WordWrap         string `json:"wordWrap"`
	MinimapEnabled   bool   `json:"minimapEnabled"`
	LineNumbers      string `json:"lineNumbers"`
	RenderWhitespace string `json:"renderWhitespace"`
	AutoSave         string `json:"autoSave"`
	AutoSaveDelay    int    `json:"autoSaveDelay"` // milliseconds
}

// Keybinding is a key symbol plus modifier flags.
type Keybinding struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// XtermKeybindings are the terminal tab/pane shortcuts.
type XtermKeybindings struct {
	NewTab   Keybinding `json:"newTab"`
	CloseTab Keybinding `json:"closeTab"`
	NextTab  Keybinding `json:"nextTab"`
	PrevTab  Keybinding `json:"prevTab"`
	Split    Keybinding `json:"split"`
	Merge    Keybinding `json:"merge"`
	Clear    Keybinding `json:"clear"`
}

// MainTabKeybindings switch between the main panels.
type MainTabKeybindings struct {
	SwitchToAgent    Keybinding `json:"switchToAgent"`
	SwitchToFile     Keybinding `json:"switchToFile"`
	SwitchToTerminal Keybinding `json:"switchToTerminal"`
}

// AgentConfig is the per-agent enablement record.
type AgentConfig struct {
	Enabled    bool   `json:"enabled"`
	IsDefault  bool   `json:"isDefault"`
	CustomPath string `json:"customPath,omitempty"`
	CustomArgs string `json:"customArgs,omitempty"`
}

// CustomAgent is a user-defined agent CLI.
type CustomAgent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
}

// AgentDetectionInfo records the last CLI probe result for an agent.
type AgentDetectionInfo struct {
	Installed  bool   `json:"installed"`
	Version    string `json:"version,omitempty"`
	Path       string `json:"path,omitempty"`
	IsWSL      bool   `json:"isWsl,omitempty"`
	DetectedAt int64  `json:"detectedAt"` // unix milliseconds
}

// ClaudeCodeIntegrationSettings configures the editor <-> Claude Code bridge.
type ClaudeCodeIntegrationSettings struct {
	Enabled                  bool       `json:"enabled"`
	SelectionChangedDebounce int        `json:"selectionChangedDebounce"` // milliseconds
	AtMentionedKeybinding    Keybinding `json:"atMentionedKeybinding"`
	StopHookEnabled          bool       `json:"stopHookEnabled"`
	EnhancedInputEnabled     bool       `json:"enhancedInputEnabled"`
	EnhancedInputAutoPopup   string     `json:"enhancedInputAutoPopup"`
}

// CommitMessageGeneratorSettings configures AI commit messages.
type CommitMessageGeneratorSettings struct {
	Enabled      bool   `json:"enabled"`
	MaxDiffLines int    `json:"maxDiffLines"`
	Timeout      int    `json:"timeout"` // seconds
	Provider     string `json:"provider"`
	Model        string `json:"model"`
}

// CodeReviewSettings configures AI code review.
type CodeReviewSettings struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// BranchNameGeneratorSettings configures AI branch naming.
type BranchNameGeneratorSettings struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
}

// ProxySettings is forwarded to the host process on change.
type ProxySettings struct {
	Enabled    bool   `json:"enabled"`
	Server     string `json:"server"`
	BypassList string `json:"bypassList"`
}

// LoggingSettings is forwarded to the host process on change.
type LoggingSettings struct {
	Enabled bool   `json:"enabled"`
	Level   string `json:"level"`
}

// WindowSettings holds window behaviour preferences.
type WindowSettings struct {
	MinimizeToTray     bool    `json:"minimizeToTray"`
	RestoreLastSession bool    `json:"restoreLastSession"`
	ZoomLevel          float64 `json:"zoomLevel"`
}

// Clone returns a deep copy of the snapshot so callers can never alias
// the store's maps and slices.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.ShellConfig.CustomShellArgs = append([]string{}, s.ShellConfig.CustomShellArgs...)
	out.CustomAgents = append([]CustomAgent{}, s.CustomAgents...)

	out.AgentSettings = make(map[string]AgentConfig, len(s.AgentSettings))
	for id, cfg := range s.AgentSettings {
		out.AgentSettings[id] = cfg
	}
	out.AgentDetectionStatus = make(map[string]AgentDetectionInfo, len(s.AgentDetectionStatus))
	for id, info := range s.AgentDetectionStatus {
		out.AgentDetectionStatus[id] = info
	}
	return out
}
