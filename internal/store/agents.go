package store

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/soyeahso/enso/internal/settings"
)

// SetAgentEnabled enables or disables an agent. Disabling the default
// agent promotes the first enabled agent in built-in order, then custom
// agents by id; enabling an agent when no default exists makes it eligible
// for promotion the same way.
func (s *Store) SetAgentEnabled(id string, enabled bool) error {
	return s.mutate(mutation{domain: "agents", apply: func(n *settings.Snapshot) error {
		if !knownAgent(n, id) {
			return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		cfg := n.AgentSettings[id]
		cfg.Enabled = enabled
		n.AgentSettings[id] = cfg
		normalizeDefaultAgent(n, "")
		return nil
	}})
}

// SetDefaultAgent makes id the single default agent. The agent must be
// enabled.
func (s *Store) SetDefaultAgent(id string) error {
	return s.mutate(mutation{domain: "agents", apply: func(n *settings.Snapshot) error {
		if !knownAgent(n, id) {
			return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		cfg := n.AgentSettings[id]
		if !cfg.Enabled {
			return fmt.Errorf("%w: %s", ErrAgentDisabled, id)
		}
		cfg.IsDefault = true
		n.AgentSettings[id] = cfg
		normalizeDefaultAgent(n, id)
		return nil
	}})
}

// SetAgentCustomization sets the custom executable path and extra
// arguments used to launch an agent.
func (s *Store) SetAgentCustomization(id, path, args string) error {
	return s.mutate(mutation{domain: "agents", apply: func(n *settings.Snapshot) error {
		if !knownAgent(n, id) {
			return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		cfg := n.AgentSettings[id]
		cfg.CustomPath = strings.TrimSpace(path)
		cfg.CustomArgs = strings.TrimSpace(args)
		n.AgentSettings[id] = cfg
		return nil
	}})
}

// AddCustomAgent registers a user-defined agent CLI and enables it.
func (s *Store) AddCustomAgent(a settings.CustomAgent) error {
	a.ID = strings.TrimSpace(a.ID)
	a.Command = strings.TrimSpace(a.Command)
	if a.ID == "" {
		return &ValueError{Field: "customAgents.id", Value: a.ID}
	}
	if a.Command == "" {
		return &ValueError{Field: "customAgents.command", Value: a.Command}
	}
	if strings.TrimSpace(a.Name) == "" {
		a.Name = a.ID
	}

	return s.mutate(mutation{domain: "agents", apply: func(n *settings.Snapshot) error {
		if knownAgent(n, a.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID)
		}
		n.CustomAgents = append(n.CustomAgents, a)
		n.AgentSettings[a.ID] = settings.AgentConfig{Enabled: true}
		normalizeDefaultAgent(n, "")
		return nil
	}})
}

// RemoveCustomAgent deletes a user-defined agent together with its
// settings and detection status.
func (s *Store) RemoveCustomAgent(id string) error {
	if settings.IsBuiltinAgent(id) {
		return fmt.Errorf("%w: %s", ErrBuiltinAgent, id)
	}
	return s.mutate(mutation{domain: "agents", apply: func(n *settings.Snapshot) error {
		idx := slices.IndexFunc(n.CustomAgents, func(a settings.CustomAgent) bool { return a.ID == id })
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		n.CustomAgents = slices.Delete(n.CustomAgents, idx, idx+1)
		delete(n.AgentSettings, id)
		delete(n.AgentDetectionStatus, id)
		normalizeDefaultAgent(n, "")
		return nil
	}})
}

// SetAgentDetectionStatus records the result of probing an agent CLI.
// A zero DetectedAt is stamped with the current time.
func (s *Store) SetAgentDetectionStatus(id string, info settings.AgentDetectionInfo) error {
	if info.DetectedAt == 0 {
		info.DetectedAt = time.Now().UnixMilli()
	}
	return s.mutate(mutation{domain: "agentDetection", apply: func(n *settings.Snapshot) error {
		if !knownAgent(n, id) {
			return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		n.AgentDetectionStatus[id] = info
		return nil
	}})
}

// ClearAgentDetectionStatus forgets the detection result for id, or for
// every agent when id is empty.
func (s *Store) ClearAgentDetectionStatus(id string) error {
	return s.mutate(mutation{domain: "agentDetection", apply: func(n *settings.Snapshot) error {
		if id == "" {
			n.AgentDetectionStatus = map[string]settings.AgentDetectionInfo{}
			return nil
		}
		delete(n.AgentDetectionStatus, id)
		return nil
	}})
}

// AgentIDs returns built-in agent ids in their fixed order followed by
// every other configured agent id in sorted order.
func AgentIDs(s settings.Snapshot) []string {
	return agentOrder(&s)
}

// DefaultAgent returns the id of the enabled default agent, if any.
func DefaultAgent(s settings.Snapshot) (string, bool) {
	for _, id := range agentOrder(&s) {
		if cfg := s.AgentSettings[id]; cfg.Enabled && cfg.IsDefault {
			return id, true
		}
	}
	return "", false
}

func knownAgent(s *settings.Snapshot, id string) bool {
	if id == "" {
		return false
	}
	if settings.IsBuiltinAgent(id) {
		return true
	}
	if _, ok := s.AgentSettings[id]; ok {
		return true
	}
	return slices.ContainsFunc(s.CustomAgents, func(a settings.CustomAgent) bool { return a.ID == id })
}

// registeredAgent reports whether id is a built-in or custom agent, i.e.
// something the host can launch.
func registeredAgent(s *settings.Snapshot, id string) bool {
	return settings.IsBuiltinAgent(id) ||
		slices.ContainsFunc(s.CustomAgents, func(a settings.CustomAgent) bool { return a.ID == id })
}

// checkAgentPath rejects a path patch that would create per-agent entries
// for ids that are not registered agents.
func checkAgentPath(s *settings.Snapshot, segments []string, value any) error {
	if segments[0] != "agentSettings" && segments[0] != "agentDetectionStatus" {
		return nil
	}
	var ids []string
	if len(segments) > 1 {
		ids = segments[1:2]
	} else if m, ok := value.(map[string]any); ok {
		ids = slices.Sorted(maps.Keys(m))
	}
	for _, id := range ids {
		if !registeredAgent(s, id) {
			return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
	}
	return nil
}

func agentOrder(s *settings.Snapshot) []string {
	ids := slices.Clone(settings.BuiltinAgentIDs)
	var extra []string
	seen := make(map[string]bool, len(s.AgentSettings))
	for id := range s.AgentSettings {
		if !settings.IsBuiltinAgent(id) {
			extra = append(extra, id)
			seen[id] = true
		}
	}
	for _, a := range s.CustomAgents {
		if !seen[a.ID] && !settings.IsBuiltinAgent(a.ID) {
			extra = append(extra, a.ID)
			seen[a.ID] = true
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}

// normalizeDefaultAgent leaves exactly one enabled agent marked default
// when any agent is enabled, and none otherwise. preferred wins when it is
// an enabled default; otherwise the first enabled default in agent order
// is kept, and failing that the first enabled agent is promoted.
func normalizeDefaultAgent(s *settings.Snapshot, preferred string) {
	order := agentOrder(s)

	chosen := ""
	if cfg, ok := s.AgentSettings[preferred]; ok && cfg.Enabled && cfg.IsDefault {
		chosen = preferred
	}
	if chosen == "" {
		for _, id := range order {
			if cfg := s.AgentSettings[id]; cfg.Enabled && cfg.IsDefault {
				chosen = id
				break
			}
		}
	}
	if chosen == "" {
		for _, id := range order {
			if s.AgentSettings[id].Enabled {
				chosen = id
				break
			}
		}
	}

	for id, cfg := range s.AgentSettings {
		if want := id == chosen; cfg.IsDefault != want {
			cfg.IsDefault = want
			s.AgentSettings[id] = cfg
		}
	}
}
