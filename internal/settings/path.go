package settings

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PathError reports a malformed settings path.
type PathError struct {
	Message string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("settings path: %s", e.Message)
}

// blockedKeys are keys that must never appear in settings paths.
var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParsePath splits a dot-separated settings path into segments.
// Returns an error if any segment is blocked or empty.
func ParsePath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &PathError{Message: "empty path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &PathError{Message: "path contains empty segment"}
		}
		if blockedKeys[p] {
			return nil, &PathError{Message: "path contains blocked key: " + p}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			return false
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}

// ToRaw converts a snapshot into the generic map form it is persisted as.
// Transient fields are omitted.
func (s Snapshot) ToRaw() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		// Snapshot contains only JSON-safe types.
		panic(fmt.Sprintf("settings: marshal snapshot: %v", err))
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		panic(fmt.Sprintf("settings: unmarshal snapshot: %v", err))
	}
	return raw
}
