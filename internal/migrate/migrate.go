// Package migrate reconciles a persisted settings object of unknown age and
// shape against the current default table. It is pure: nothing here does
// I/O, returns an error or mutates its input.
package migrate

import (
	"slices"
	"sort"

	"github.com/soyeahso/enso/internal/settings"
)

// Raw is untrusted, untyped persisted settings state as decoded from JSON.
// It must pass through Migrate, Decode or Conform before it becomes a
// settings.Snapshot.
type Raw = map[string]any

// Rename records a legacy field whose value was carried to its current name.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ValueChange records an enum value that was rewritten to its replacement.
type ValueChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Report describes what a migration did. LegacyKeys are the top-level keys
// the cleanup pass must drop from the persisted blob.
type Report struct {
	FirstRun         bool          `json:"firstRun"`
	LegacyKeys       []string      `json:"legacyKeys,omitempty"`
	Renamed          []Rename      `json:"renamed,omitempty"`
	ValueChanges     []ValueChange `json:"valueChanges,omitempty"`
	Repairs          []string      `json:"repairs,omitempty"`
	DroppedDetection []string      `json:"droppedDetection,omitempty"`
}

// NeedsCleanup reports whether the persisted blob still carries legacy keys.
func (r Report) NeedsCleanup() bool {
	return len(r.LegacyKeys) > 0
}

// Changed reports whether migration altered anything beyond per-field
// validation.
func (r Report) Changed() bool {
	return len(r.LegacyKeys) > 0 || len(r.ValueChanges) > 0 ||
		len(r.Repairs) > 0 || len(r.DroppedDetection) > 0
}

// Migrate returns the snapshot described by persisted, with every field
// present and within its declared type and bounds. A nil persisted object
// is a first run and yields a copy of defaults.
//
// Steps, in order: legacy renames and enum value migrations on a copy of
// the input, per-field decode over defaults, the declared cross-field
// repairs, then detection-status filtering against enabled agents.
func Migrate(persisted Raw, defaults settings.Snapshot) (settings.Snapshot, Report) {
	if persisted == nil {
		return defaults.Clone(), Report{FirstRun: true}
	}

	var report Report
	raw := applyLegacy(cloneRaw(persisted), &report)
	snap := Decode(raw, defaults)
	report.Repairs = applyRepairs(&snap)
	report.DroppedDetection = filterDetection(&snap)
	return snap, report
}

// StripLegacy returns a copy of persisted without the keys report marked
// for deletion. It is the cleanup pass that follows Migrate.
func StripLegacy(persisted Raw, report Report) Raw {
	out := cloneRaw(persisted)
	for _, key := range report.LegacyKeys {
		delete(out, key)
	}
	return out
}

// filterDetection drops detection entries for agents that are not enabled.
// It returns the dropped ids, sorted.
func filterDetection(s *settings.Snapshot) []string {
	var dropped []string
	for _, id := range sortedKeys(s.AgentDetectionStatus) {
		if cfg, ok := s.AgentSettings[id]; ok && cfg.Enabled {
			continue
		}
		delete(s.AgentDetectionStatus, id)
		dropped = append(dropped, id)
	}
	return dropped
}

func cloneRaw(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneRaw(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	}
	return v
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	list = append(list, s)
	sort.Strings(list)
	return list
}
