package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/enso/internal/config"
)

// run executes the root command against home and returns stdout.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--home", home, "--log-level", "silent"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	s, err := run(t, home, args...)
	require.NoError(t, err, "enso %s", strings.Join(args, " "))
	return s
}

func seedSettings(t *testing.T, home string, content map[string]any) {
	t.Helper()
	data, err := json.Marshal(content)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(home, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, "settings.json"), data, 0o600))
}

func TestVersionJSON(t *testing.T) {
	s := mustRun(t, t.TempDir(), "version", "--json")
	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(s), &fields))
	assert.Contains(t, fields, "version")
	assert.Contains(t, fields, "go")
}

func TestSettingsSetGet(t *testing.T) {
	home := t.TempDir()

	assert.Equal(t, "2\n", mustRun(t, home, "settings", "get", "editor.tabSize"))
	assert.Equal(t, "Set editor.tabSize = 4\n", mustRun(t, home, "settings", "set", "editor.tabSize", "4"))
	assert.Equal(t, "4\n", mustRun(t, home, "settings", "get", "editor.tabSize"))

	assert.Equal(t, "Set language = en\n", mustRun(t, home, "settings", "set", "language", "klingon"))

	_, err := run(t, home, "settings", "get", "nope")
	assert.Error(t, err)
}

func TestSettingsShowAndPath(t *testing.T) {
	home := t.TempDir()

	s := mustRun(t, home, "settings", "show", "--json")
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	assert.Equal(t, "system", raw["theme"])

	assert.Equal(t, filepath.Join(home, "settings.json")+"\n", mustRun(t, home, "settings", "path"))
}

func TestSettingsMigrate(t *testing.T) {
	home := t.TempDir()
	seedSettings(t, home, map[string]any{
		config.DefaultSettingsKey: map[string]any{
			"version": 1,
			"state":   map[string]any{"shellType": "zsh", "theme": "dark"},
		},
	})

	s := mustRun(t, home, "settings", "migrate", "--dry-run")
	assert.Contains(t, s, "shellType")
	assert.Contains(t, s, "1 top-level key(s) remain")

	mustRun(t, home, "settings", "migrate")
	assert.Equal(t, "Settings are current.\n", mustRun(t, home, "settings", "migrate", "--dry-run"))
	assert.Equal(t, "dark\n", mustRun(t, home, "settings", "get", "theme"))
}

func TestSettingsMigrate_NothingStored(t *testing.T) {
	s := mustRun(t, t.TempDir(), "settings", "migrate", "--dry-run")
	assert.Equal(t, "No stored settings; defaults apply.\n", s)
}

func TestAgentsCommands(t *testing.T) {
	home := t.TempDir()

	s := mustRun(t, home, "agents", "list")
	assert.Contains(t, s, "claude")
	assert.Contains(t, s, "codex")

	_, err := run(t, home, "agents", "default", "codex")
	assert.ErrorContains(t, err, "not enabled")

	_, err = run(t, home, "agents", "default", "ghost")
	assert.ErrorContains(t, err, "unknown agent")

	mustRun(t, home, "settings", "set", "agentSettings.codex.enabled", "true")
	assert.Equal(t, "Default agent: codex\n", mustRun(t, home, "agents", "default", "codex"))
	assert.Equal(t, "false\n", mustRun(t, home, "settings", "get", "agentSettings.claude.isDefault"))
}

func TestTodoCommands(t *testing.T) {
	home := t.TempDir()
	repo := t.TempDir()

	assert.Equal(t, "No tasks.\n", mustRun(t, home, "todo", "list"))

	s := mustRun(t, home, "todo", "add", "--repo", repo, "--priority", "high", "Write tests")
	assert.True(t, strings.HasPrefix(s, "Added "))
	id := strings.TrimSpace(strings.TrimPrefix(s, "Added "))

	s = mustRun(t, home, "todo", "move", id, "done")
	assert.Equal(t, "Moved "+id+" to done #0\n", s)

	s = mustRun(t, home, "todo", "list", repo)
	assert.Contains(t, s, "Write tests")
	assert.Contains(t, s, "done")

	_, err := run(t, home, "todo", "add", "--repo", repo, "--priority", "urgent", "x")
	assert.Error(t, err)
}

func TestTodoImportLegacy(t *testing.T) {
	home := t.TempDir()
	seedSettings(t, home, map[string]any{
		"enso-todos": map[string]any{
			"state": map[string]any{
				"tasks": map[string]any{
					"/src/app": []any{
						map[string]any{"id": "a", "title": "One"},
						map[string]any{"id": "b", "title": "Two", "status": "completed"},
					},
				},
			},
		},
	})

	assert.Equal(t, "Imported 2 task(s), dropped 0.\n", mustRun(t, home, "todo", "import-legacy"))
	assert.Equal(t, "Nothing to import.\n", mustRun(t, home, "todo", "import-legacy"))
	assert.Contains(t, mustRun(t, home, "todo", "list", "/src/app"), "Two")
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()

	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", mustRun(t, home, "config", "path"))
	assert.Equal(t, "Config OK\n", mustRun(t, home, "config", "validate"))

	mustRun(t, home, "config", "set", "gateway.port", "19000")
	assert.Equal(t, "19000\n", mustRun(t, home, "config", "get", "gateway.port"))

	mustRun(t, home, "config", "set", "gateway.bind", "moon")
	s, err := run(t, home, "config", "validate")
	assert.Error(t, err)
	assert.Contains(t, s, "gateway.bind")

	mustRun(t, home, "config", "unset", "gateway.bind")
	_, err = run(t, home, "config", "get", "gateway.bind")
	assert.Error(t, err)
	_, err = run(t, home, "config", "unset", "gateway.bind")
	assert.Error(t, err)

	_, err = run(t, home, "config", "get", "gateway..port")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	home := t.TempDir()
	s := mustRun(t, home, "status")
	assert.Contains(t, s, "Home:     "+home)
	assert.Contains(t, s, "Storage:  backend=file")
	assert.Contains(t, s, "Agents:   1 enabled, default claude")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"null", nil},
		{"42", 42},
		{"-3", -3},
		{"1.5", 1.5},
		{"dark", "dark"},
		{`{"enabled":true}`, map[string]any{"enabled": true}},
		{`["a","b"]`, []any{"a", "b"}},
		{"{not json", "{not json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.in), tt.in)
	}
}
