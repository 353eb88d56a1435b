package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/store"
)

// detectTimeout bounds one agents.detect run.
const detectTimeout = 2 * time.Minute

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("settings.get", s.rpcSettingsGet)
	s.Handle("settings.set", s.rpcSettingsSet)
	s.Handle("agents.list", s.rpcAgentsList)
	s.Handle("agents.setDefault", s.rpcAgentsSetDefault)
	s.Handle("agents.setEnabled", s.rpcAgentsSetEnabled)
	if s.detector != nil {
		s.Handle("agents.detect", s.rpcAgentsDetect)
	}
}

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	}
	if !s.startedAt.IsZero() {
		resp.UptimeMs = time.Since(s.startedAt).Milliseconds()
	}
	if s.settings != nil {
		resp.StorePhase = s.settings.Phase().String()
		resp.Revision = s.settings.Revision()
		resp.WriteFailures = s.settings.WriteFailures()
		if resp.WriteFailures > 0 {
			resp.Status = "degraded"
		}
	}
	rc.Respond(resp)
}

type settingsGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcSettingsGet(rc *RequestContext) {
	var p settingsGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		if s.settings.Phase() != store.Ready {
			rc.Fail(store.ErrNotReady)
			return
		}
		rc.Respond(map[string]any{
			"revision": s.settings.Revision(),
			"settings": s.settings.Snapshot().ToRaw(),
		})
		return
	}

	val, err := s.settings.Get(p.Key)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type settingsSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcSettingsSet(rc *RequestContext) {
	var p settingsSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}

	effective, err := s.settings.Apply(p.Key, p.Value)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(map[string]any{
		"key":      p.Key,
		"value":    effective,
		"revision": s.settings.Revision(),
	})
}

// AgentEntry is one row of the agents.list response.
type AgentEntry struct {
	ID         string                       `json:"id"`
	Builtin    bool                         `json:"builtin"`
	Name       string                       `json:"name,omitempty"`
	Command    string                       `json:"command,omitempty"`
	Enabled    bool                         `json:"enabled"`
	IsDefault  bool                         `json:"isDefault"`
	CustomPath string                       `json:"customPath,omitempty"`
	Detection  *settings.AgentDetectionInfo `json:"detection,omitempty"`
}

// ListAgents flattens the agent sections of a snapshot into display order.
func ListAgents(snap settings.Snapshot) []AgentEntry {
	custom := make(map[string]settings.CustomAgent, len(snap.CustomAgents))
	for _, a := range snap.CustomAgents {
		custom[a.ID] = a
	}

	ids := store.AgentIDs(snap)
	out := make([]AgentEntry, 0, len(ids))
	for _, id := range ids {
		cfg := snap.AgentSettings[id]
		e := AgentEntry{
			ID:         id,
			Builtin:    settings.IsBuiltinAgent(id),
			Enabled:    cfg.Enabled,
			IsDefault:  cfg.IsDefault,
			CustomPath: cfg.CustomPath,
		}
		if a, ok := custom[id]; ok {
			e.Name = a.Name
			e.Command = a.Command
		}
		if info, ok := snap.AgentDetectionStatus[id]; ok {
			e.Detection = &info
		}
		out = append(out, e)
	}
	return out
}

func (s *Server) rpcAgentsList(rc *RequestContext) {
	if s.settings.Phase() != store.Ready {
		rc.Fail(store.ErrNotReady)
		return
	}
	snap := s.settings.Snapshot()
	def, _ := store.DefaultAgent(snap)
	rc.Respond(map[string]any{
		"agents":  ListAgents(snap),
		"default": def,
	})
}

type agentIDParams struct {
	ID      string `json:"id"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (s *Server) rpcAgentsSetDefault(rc *RequestContext) {
	var p agentIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ID == "" {
		rc.RespondError(CodeInvalidParams, "id is required")
		return
	}
	if err := s.settings.SetDefaultAgent(p.ID); err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(map[string]any{"default": p.ID})
}

func (s *Server) rpcAgentsSetEnabled(rc *RequestContext) {
	var p agentIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ID == "" || p.Enabled == nil {
		rc.RespondError(CodeInvalidParams, "id and enabled are required")
		return
	}
	if err := s.settings.SetAgentEnabled(p.ID, *p.Enabled); err != nil {
		rc.Fail(err)
		return
	}
	def, _ := store.DefaultAgent(s.settings.Snapshot())
	rc.Respond(map[string]any{"id": p.ID, "enabled": *p.Enabled, "default": def})
}

// rpcAgentsDetect starts a background probe of every agent CLI. Results
// arrive as an agents.detected event; only one probe runs at a time.
func (s *Server) rpcAgentsDetect(rc *RequestContext) {
	if s.settings.Phase() != store.Ready {
		rc.Fail(store.ErrNotReady)
		return
	}
	if !s.detecting.CompareAndSwap(false, true) {
		rc.Respond(map[string]any{"started": false})
		return
	}

	snap := s.settings.Snapshot()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.detecting.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
		defer cancel()

		results := s.detector.Refresh(ctx, snap, s.settings)
		payload := map[string]any{"agents": results}
		if s.hooks != nil {
			s.hooks.Emit(ctx, hooks.EventAgentsDetected, payload)
			return
		}
		s.Broadcast(hooks.EventAgentsDetected, payload)
	}()

	rc.Respond(map[string]any{"started": true})
}
