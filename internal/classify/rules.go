// Package classify assigns severity labels to incoming issues by
// combining a rule-based keyword pass with a model-scored pass.
package classify

import (
	"strings"

	"github.com/ni30kp/lula-Task/internal/model"
)

// Rule maps keywords and categories to a severity hint. Rules have high
// precision but partial recall: absence of a match means no hint, not LOW.
type Rule struct {
	Keywords   []string       `json:"keywords,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Severity   model.Severity `json:"severity"`
}

// RuleTable is a versioned severity rule set, loaded as data so rules are
// testable and auditable independent of the model.
type RuleTable struct {
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *RuleTable {
	return &RuleTable{
		Version: "2024-06-01",
		Rules: []Rule{
			{
				Keywords: []string{
					"urgent", "critical", "emergency", "down", "broken",
					"crash", "not working", "cannot access", "cannot login",
					"blocked", "security", "breach", "data loss", "outage",
					"error 401", "error 403", "error 500",
				},
				Categories: []string{"Authentication", "Security", "Outage"},
				Severity:   model.SeverityHigh,
			},
			{
				Keywords: []string{
					"slow", "problem", "trouble", "difficulty", "failing",
					"intermittent", "degraded", "timeout",
				},
				Categories: []string{"Performance"},
				Severity:   model.SeverityNormal,
			},
			{
				Keywords: []string{
					"question", "how do i", "feature request", "feedback",
					"documentation", "typo",
				},
				Severity: model.SeverityLow,
			},
		},
	}
}

// Hint returns the severity hint for the text and category, if any rule
// matches. When multiple rules match, the highest severity wins.
func (t *RuleTable) Hint(text, category string) (model.Severity, bool) {
	lower := strings.ToLower(text)

	var best model.Severity
	found := false
	for _, r := range t.Rules {
		if !r.matches(lower, category) {
			continue
		}
		if !found || r.Severity.Level() > best.Level() {
			best = r.Severity
			found = true
		}
	}
	return best, found
}

func (r *Rule) matches(lowerText, category string) bool {
	for _, c := range r.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	for _, kw := range r.Keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}
