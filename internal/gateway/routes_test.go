package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/store"
)

func TestRPC_Health(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	resp, _ := call(t, conn, "1", "health", nil)
	var h HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ready", h.StorePhase)
	assert.Equal(t, 1, h.Clients)
	assert.Zero(t, h.WriteFailures)
}

func TestRPC_SettingsGet(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	resp, _ := call(t, conn, "1", "settings.get", map[string]string{"key": "editor.tabSize"})
	out := decodePayload(t, resp)
	assert.Equal(t, "editor.tabSize", out["key"])
	assert.EqualValues(t, 2, out["value"])

	resp, _ = call(t, conn, "2", "settings.get", nil)
	out = decodePayload(t, resp)
	all, ok := out["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "en", all["language"])

	resp, _ = call(t, conn, "3", "settings.get", map[string]string{"key": "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	resp, _ = call(t, conn, "4", "settings.get", map[string]string{"key": "editor..tabSize"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestRPC_SettingsSet(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	tests := []struct {
		key   string
		value any
		want  any
	}{
		{"editor.tabSize", 4, float64(4)},
		{"editor.tabSize", 99, float64(8)},
		{"language", "fr", "en"},
		{"theme", "dark", "dark"},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("%s=%v", tt.key, tt.value), func(t *testing.T) {
			resp, _ := call(t, conn, fmt.Sprint(i), "settings.set", map[string]any{"key": tt.key, "value": tt.value})
			out := decodePayload(t, resp)
			assert.Equal(t, tt.want, out["value"])
		})
	}

	v, err := env.store.Get("editor.tabSize")
	require.NoError(t, err)
	assert.EqualValues(t, 8, v)
}

func TestRPC_SettingsSet_Errors(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	resp, _ := call(t, conn, "1", "settings.set", map[string]any{"value": 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp, _ = call(t, conn, "2", "settings.set", map[string]any{"key": "bogus.field", "value": 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	resp, _ = call(t, conn, "4", "settings.set", map[string]any{"key": "agentSettings.ghost.enabled", "value": true})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.NotContains(t, env.store.Snapshot().AgentSettings, "ghost")

	req, err := NewRequest("3", "settings.set", nil)
	require.NoError(t, err)
	req.Params = json.RawMessage(`[1,2]`)
	require.NoError(t, conn.WriteJSON(req))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	require.NotNil(t, f.Error)
	assert.Equal(t, CodeInvalidParams, f.Error.Code)
}

func TestRPC_SettingsSet_BroadcastsHostEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	resp, events := call(t, conn, "1", "settings.set", map[string]any{"key": "language", "value": "zh"})
	decodePayload(t, resp)

	lang := waitEvent(t, conn, events, hooks.EventSetLanguage)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(lang.Payload, &payload))
	assert.Equal(t, "zh", payload["language"])

	changed := waitEvent(t, conn, events, hooks.EventSettingsChanged)
	require.NoError(t, json.Unmarshal(changed.Payload, &payload))
	assert.Equal(t, "language", payload["domain"])
}

func TestRPC_Agents(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	resp, _ := call(t, conn, "1", "agents.list", nil)
	out := decodePayload(t, resp)
	assert.Equal(t, "claude", out["default"])
	agents, ok := out["agents"].([]any)
	require.True(t, ok)
	assert.Len(t, agents, len(settings.BuiltinAgentIDs))

	resp, _ = call(t, conn, "2", "agents.setDefault", map[string]string{"id": "codex"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodePrecondition, resp.Error.Code)

	resp, _ = call(t, conn, "3", "agents.setEnabled", map[string]any{"id": "codex", "enabled": true})
	decodePayload(t, resp)

	resp, _ = call(t, conn, "4", "agents.setDefault", map[string]string{"id": "codex"})
	assert.Equal(t, "codex", decodePayload(t, resp)["default"])

	resp, _ = call(t, conn, "5", "agents.setEnabled", map[string]any{"id": "codex", "enabled": false})
	assert.Equal(t, "claude", decodePayload(t, resp)["default"])

	resp, _ = call(t, conn, "6", "agents.setDefault", map[string]string{"id": "ghost"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	resp, _ = call(t, conn, "7", "agents.setEnabled", map[string]any{"id": "codex"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestRPC_AgentsDetect(t *testing.T) {
	det := &fakeDetector{results: map[string]settings.AgentDetectionInfo{
		"claude": {Installed: true, Version: "1.0.3", Path: "/usr/bin/claude", DetectedAt: 1},
	}}
	env := newTestEnv(t, WithDetector(det))
	conn := env.connect(t)

	resp, events := call(t, conn, "1", "agents.detect", nil)
	assert.Equal(t, true, decodePayload(t, resp)["started"])

	waitEvent(t, conn, events, hooks.EventAgentsDetected)
	require.Eventually(t, func() bool { return !env.srv.detecting.Load() }, time.Second, 10*time.Millisecond)

	info := env.store.Snapshot().AgentDetectionStatus["claude"]
	assert.True(t, info.Installed)
	assert.Equal(t, "1.0.3", info.Version)
}

func TestRPC_AgentsDetect_NotRegisteredWithoutDetector(t *testing.T) {
	env := newTestEnv(t)
	assert.NotContains(t, env.srv.Methods(), "agents.detect")
}

func TestListAgents_IncludesCustom(t *testing.T) {
	snap := settings.Defaults("")
	snap.CustomAgents = append(snap.CustomAgents, settings.CustomAgent{ID: "aider", Name: "Aider", Command: "aider"})
	snap.AgentSettings["aider"] = settings.AgentConfig{Enabled: true}
	snap.AgentDetectionStatus["claude"] = settings.AgentDetectionInfo{Installed: true}

	entries := ListAgents(snap)
	require.Len(t, entries, len(settings.BuiltinAgentIDs)+1)

	first := entries[0]
	assert.Equal(t, "claude", first.ID)
	assert.True(t, first.Builtin)
	require.NotNil(t, first.Detection)
	assert.True(t, first.Detection.Installed)

	last := entries[len(entries)-1]
	assert.Equal(t, "aider", last.ID)
	assert.False(t, last.Builtin)
	assert.Equal(t, "Aider", last.Name)
	assert.Nil(t, last.Detection)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{store.ErrNotReady, CodeUnavailable},
		{fmt.Errorf("%w: x", store.ErrUnknownField), CodeNotFound},
		{store.ErrUnknownAgent, CodeNotFound},
		{store.ErrDuplicateAgent, CodeConflict},
		{store.ErrAgentDisabled, CodePrecondition},
		{store.ErrBuiltinAgent, CodePrecondition},
		{&store.ValueError{Field: "theme", Value: "neon"}, CodeInvalidParams},
		{&settings.PathError{Message: "empty"}, CodeInvalidParams},
		{errors.New("disk on fire"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}
