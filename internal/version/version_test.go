package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	prev := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = prev[0], prev[1], prev[2] })
	Version, Commit, Date = v, commit, date
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name    string
		commit  string
		want    []string
		notWant string
	}{
		{"long commit truncated", "abc1234567890", []string{"enso 1.2.3", "commit: abc1234", "built: 2026-01-15"}, "abc1234567890"},
		{"short commit kept", "abc", []string{"commit: abc,"}, ""},
		{"platform", "", []string{runtime.GOOS + "/" + runtime.GOARCH}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuild(t, "1.2.3", tt.commit, "2026-01-15")
			info := Info()
			for _, s := range tt.want {
				assert.Contains(t, info, s)
			}
			if tt.notWant != "" {
				assert.NotContains(t, info, tt.notWant)
			}
		})
	}
}

func TestBuildDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "unknown", Commit)
	assert.Equal(t, "unknown", Date)
}

func TestFields(t *testing.T) {
	setBuild(t, "0.4.0", "deadbeefcafe", "2026-10-01")
	assert.Equal(t, map[string]string{
		"version": "0.4.0",
		"commit":  "deadbeefcafe",
		"date":    "2026-10-01",
		"go":      runtime.Version(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}, Fields())
}
