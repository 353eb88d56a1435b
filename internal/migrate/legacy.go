package migrate

import (
	"strings"

	"github.com/soyeahso/enso/internal/settings"
)

// renameRule carries a legacy top-level key to its current location. The
// legacy value is only used when the current location is absent, but the
// legacy key is always reported for cleanup.
type renameRule struct {
	From      string
	To        []string
	Transform func(any) (any, bool)
}

// renameRules is the declared list of legacy field renames.
var renameRules = []renameRule{
	{
		// Terminal shortcuts moved under the xterm namespace; per-binding
		// merging over defaults happens in Decode.
		From:      "terminalKeybindings",
		To:        []string{"xtermKeybindings"},
		Transform: keepObject,
	},
	{
		From:      "shellType",
		To:        []string{"shellConfig", "shellType"},
		Transform: keepString,
	},
}

// valueRule rewrites a removed enum value to its replacement.
type valueRule struct {
	Field string
	From  string
	To    string
}

// valueRules covers the canvas renderer, which no longer exists.
var valueRules = []valueRule{
	{Field: "terminalRenderer", From: "canvas", To: "webgl"},
	{Field: "backgroundRenderer", From: "canvas", To: "webgl"},
}

func keepObject(v any) (any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func keepString(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

// applyLegacy runs the rename and value rules against raw, which must be a
// private copy of the persisted object.
func applyLegacy(raw Raw, report *Report) Raw {
	for _, rule := range renameRules {
		legacy, ok := raw[rule.From]
		if !ok {
			continue
		}
		report.LegacyKeys = appendUnique(report.LegacyKeys, rule.From)
		delete(raw, rule.From)

		if _, exists := settings.GetValueAtPath(raw, rule.To); exists {
			continue
		}
		value, ok := rule.Transform(legacy)
		if !ok {
			continue
		}
		settings.SetValueAtPath(raw, rule.To, value)
		report.Renamed = append(report.Renamed, Rename{From: rule.From, To: strings.Join(rule.To, ".")})
	}

	for _, rule := range valueRules {
		if s, ok := raw[rule.Field].(string); ok && s == rule.From {
			raw[rule.Field] = rule.To
			report.ValueChanges = append(report.ValueChanges, ValueChange{Field: rule.Field, From: rule.From, To: rule.To})
		}
	}
	return raw
}
