package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults("linux")
	assert.Equal(t, "system", d.Theme)
	assert.Equal(t, "en", d.Language)
	assert.Equal(t, "webgl", d.TerminalRenderer)
	assert.Equal(t, "webgl", d.BackgroundRenderer)
	assert.Equal(t, 0.85, d.BackgroundOpacity)
	assert.Equal(t, "hideWhileRunning", d.ClaudeCodeIntegration.EnhancedInputAutoPopup)
	assert.True(t, d.ClaudeCodeIntegration.StopHookEnabled)
	assert.Equal(t, Keybinding{Key: "t", Ctrl: true}, d.XtermKeybindings.NewTab)
	assert.NotNil(t, d.CustomAgents)
	assert.NotNil(t, d.AgentDetectionStatus)
	assert.NotNil(t, d.ShellConfig.CustomShellArgs)
}

func TestDefaults_SingleDefaultAgent(t *testing.T) {
	d := Defaults("linux")
	var defaults []string
	for id, cfg := range d.AgentSettings {
		if cfg.IsDefault {
			defaults = append(defaults, id)
			assert.True(t, cfg.Enabled)
		}
	}
	assert.Equal(t, []string{"claude"}, defaults)
	assert.Len(t, d.AgentSettings, len(BuiltinAgentIDs))
}

func TestDefaultForPlatform(t *testing.T) {
	tests := []struct {
		platform string
		shell    string
	}{
		{"darwin", "zsh"},
		{"windows", "powershell"},
		{"linux", "system"},
		{"freebsd", "system"},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			pd := DefaultForPlatform(tt.platform)
			assert.Equal(t, tt.shell, pd.ShellType)
			assert.NotEmpty(t, pd.TerminalFontFamily)

			d := Defaults(tt.platform)
			assert.Equal(t, tt.shell, d.ShellConfig.ShellType)
			assert.Equal(t, pd.TerminalFontFamily, d.TerminalFontFamily)
		})
	}
}

func TestDefaults_EmptyPlatformUsesRuntime(t *testing.T) {
	assert.Equal(t, Defaults(CurrentPlatform()), Defaults(""))
}

func TestClone_DoesNotAlias(t *testing.T) {
	orig := Defaults("linux")
	c := orig.Clone()

	c.AgentSettings["codex"] = AgentConfig{Enabled: true}
	c.AgentDetectionStatus["claude"] = AgentDetectionInfo{Installed: true}
	c.CustomAgents = append(c.CustomAgents, CustomAgent{ID: "x"})
	c.ShellConfig.CustomShellArgs = append(c.ShellConfig.CustomShellArgs, "-l")

	assert.False(t, orig.AgentSettings["codex"].Enabled)
	assert.Empty(t, orig.AgentDetectionStatus)
	assert.Empty(t, orig.CustomAgents)
	assert.Empty(t, orig.ShellConfig.CustomShellArgs)
}

func TestToRaw_FlattensGroupsAndDropsTransient(t *testing.T) {
	s := Defaults("linux")
	s.BackgroundRefreshKey = 42

	raw := s.ToRaw()
	assert.Equal(t, "system", raw["theme"])
	assert.Equal(t, "webgl", raw["terminalRenderer"])
	assert.Equal(t, 0.85, raw["backgroundOpacity"])
	assert.NotContains(t, raw, "backgroundRefreshKey")
	assert.NotContains(t, raw, "BackgroundRefreshKey")

	editor, ok := raw["editor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), editor["tabSize"])

	newTab, ok := GetValueAtPath(raw, []string{"xtermKeybindings", "newTab"})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"key": "t", "ctrl": true}, newTab)
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "theme", []string{"theme"}, false},
		{"two segments", "editor.tabSize", []string{"editor", "tabSize"}, false},
		{"three segments", "xtermKeybindings.newTab.key", []string{"xtermKeybindings", "newTab", "key"}, false},
		{"empty", "", nil, true},
		{"empty segment", "editor..tabSize", nil, true},
		{"trailing dot", "editor.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				var pe *PathError
				assert.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSetUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"editor": map[string]any{"tabSize": 2, "wordWrap": "on"},
		"theme":  "dark",
	}

	val, ok := GetValueAtPath(root, []string{"editor", "tabSize"})
	assert.True(t, ok)
	assert.Equal(t, 2, val)

	_, ok = GetValueAtPath(root, []string{"theme", "sub"})
	assert.False(t, ok)

	SetValueAtPath(root, []string{"editor", "tabSize"}, 4)
	val, _ = GetValueAtPath(root, []string{"editor", "tabSize"})
	assert.Equal(t, 4, val)

	SetValueAtPath(root, []string{"proxy", "server"}, "http://127.0.0.1:7890")
	val, ok = GetValueAtPath(root, []string{"proxy", "server"})
	assert.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:7890", val)

	assert.True(t, UnsetValueAtPath(root, []string{"editor", "wordWrap"}))
	assert.False(t, UnsetValueAtPath(root, []string{"editor", "wordWrap"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
}
