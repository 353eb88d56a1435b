package migrate

import (
	"github.com/soyeahso/enso/internal/settings"
)

// repairRule is one implication between fields. When Violated holds, Repair
// demotes the dependent field to a safe value.
type repairRule struct {
	Field    string
	Violated func(*settings.Snapshot) bool
	Repair   func(*settings.Snapshot)
}

// repairRules is the complete list of cross-field repairs. Single default
// agent exclusivity is not among them; the store enforces it on mutation.
var repairRules = []repairRule{
	{
		// Hiding the popup while an agent runs relies on the stop hook to
		// know when it finished.
		Field: "claudeCodeIntegration.enhancedInputAutoPopup",
		Violated: func(s *settings.Snapshot) bool {
			c := s.ClaudeCodeIntegration
			return c.EnhancedInputAutoPopup == "hideWhileRunning" && !c.StopHookEnabled
		},
		Repair: func(s *settings.Snapshot) {
			s.ClaudeCodeIntegration.EnhancedInputAutoPopup = "always"
		},
	},
}

func applyRepairs(s *settings.Snapshot) []string {
	var repaired []string
	for _, rule := range repairRules {
		if rule.Violated(s) {
			rule.Repair(s)
			repaired = append(repaired, rule.Field)
		}
	}
	return repaired
}
