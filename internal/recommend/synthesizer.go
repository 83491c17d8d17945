// Package recommend turns severity, similar issues, and customer context
// into ranked response template drafts.
package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/internal/similarity"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

const (
	// baselineConfidence is the confidence of the generic greeting that
	// keeps the recommendation list non-empty.
	baselineConfidence = 0.35

	// closingConfidence is the confidence of the wrap-up draft offered
	// once a proven resolution exists.
	closingConfidence = 0.3
)

// Outcome weights for reusing a similar issue's resolution: a resolution
// that demonstrably worked is worth more than one still in flight.
var outcomeWeights = map[model.IssueStatus]float64{
	model.StatusResolved:   0.95,
	model.StatusClosed:     0.9,
	model.StatusInProgress: 0.6,
	model.StatusOpen:       0.6,
}

// Config tunes the synthesizer.
type Config struct {
	// ReuseThreshold is the minimum similarity score for proposing a
	// template from a similar issue's resolution.
	ReuseThreshold float64
}

// Input carries everything the synthesizer considers.
type Input struct {
	IssueID  string
	Severity model.SeverityAssessment
	Similar  []model.SimilarIssue
	History  *model.CustomerHistory
}

// Synthesizer builds recommendation drafts. It is a pure function of its
// input and the clock, which keeps ranking deterministic in tests.
type Synthesizer struct {
	cfg Config
}

// New creates a synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.ReuseThreshold <= 0 {
		cfg.ReuseThreshold = 0.55
	}
	return &Synthesizer{cfg: cfg}
}

// Synthesize produces ranked recommendation drafts. The list is never
// empty: a generic greeting with baseline confidence is always included.
func (s *Synthesizer) Synthesize(now time.Time, in Input) []model.Recommendation {
	tone := s.tone(in)
	reasoning := s.reasoning(in)

	drafts := []model.Recommendation{
		s.draft(in.IssueID, model.TemplateGreeting, tone, s.greetingText(in, tone), baselineConfidence, reasoning, now),
	}

	hasProvenFix := false
	for _, sim := range in.Similar {
		if sim.Score < s.cfg.ReuseThreshold || sim.Resolution == "" {
			continue
		}
		weight, ok := outcomeWeights[sim.Status]
		if !ok {
			weight = outcomeWeights[model.StatusOpen]
		}
		if sim.Status == model.StatusResolved || sim.Status == model.StatusClosed {
			hasProvenFix = true
		}

		conf := model.ClampScore(sim.Score * weight)
		text := fmt.Sprintf(
			"A similar issue (%q) was handled as follows: %s Please try this and let me know if it resolves the problem.",
			sim.Title, ensurePeriod(sim.Resolution))
		why := fmt.Sprintf("%s Derived from similar issue %s (score %.2f, %s).",
			reasoning, sim.IssueID, sim.Score, strings.ToLower(string(sim.Status)))

		drafts = append(drafts, s.draft(in.IssueID, model.TemplateSolution, tone, text, conf, why, now))
	}

	if hasProvenFix {
		text := "Once the suggested fix is confirmed, I'll mark this issue as resolved. Is there anything else I can help you with?"
		drafts = append(drafts, s.draft(in.IssueID, model.TemplateClosing, tone, text, closingConfidence, reasoning, now))
	}

	drafts = dedupe(drafts)

	// Ranking invariant: confidence descending, ties most recent first.
	sort.SliceStable(drafts, func(i, j int) bool {
		if drafts[i].ConfidenceScore != drafts[j].ConfidenceScore {
			return drafts[i].ConfidenceScore > drafts[j].ConfidenceScore
		}
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})

	for _, d := range drafts {
		metrics.RecommendationsTotal.WithLabelValues(string(d.Type)).Inc()
	}
	return drafts
}

func (s *Synthesizer) draft(issueID string, t model.TemplateType, tone model.Tone, text string, conf float64, reasoning string, now time.Time) model.Recommendation {
	return model.Recommendation{
		ID:              uuid.Must(uuid.NewV7()).String(),
		IssueID:         issueID,
		Type:            t,
		Tone:            tone,
		Template:        text,
		ConfidenceScore: model.ClampScore(conf),
		Reasoning:       reasoning,
		CreatedAt:       now,
	}
}

// tone biases toward empathetic/priority handling for VIP customers and
// HIGH severity; everyone else gets the professional default.
func (s *Synthesizer) tone(in Input) model.Tone {
	if in.Severity.Severity == model.SeverityHigh {
		return model.ToneEmpathetic
	}
	if in.History != nil && in.History.VIP {
		return model.ToneEmpathetic
	}
	return model.ToneProfessional
}

func (s *Synthesizer) greetingText(in Input, tone model.Tone) string {
	switch tone {
	case model.ToneEmpathetic:
		return "Thank you for reaching out, and I'm sorry for the trouble. I understand this is urgent and I'm looking into it right away."
	case model.ToneProfessional:
		return "Thank you for reaching out to our support team. I'm reviewing your issue and will follow up shortly."
	default:
		return "Thank you for reaching out to our support team. I'm reviewing your issue and will follow up shortly."
	}
}

func (s *Synthesizer) reasoning(in Input) string {
	var parts []string
	if in.History != nil && in.History.VIP {
		parts = append(parts, "VIP customer")
	}
	if in.Severity.Severity == model.SeverityHigh {
		parts = append(parts, "high severity issue")
	}
	if len(in.Similar) > 0 {
		parts = append(parts, fmt.Sprintf("%d similar past issues found", len(in.Similar)))
	}
	if len(parts) == 0 {
		return "Standard support recommendation."
	}
	return strings.Join(parts, "; ") + "."
}

// dedupe drops drafts with the same normalized template text, keeping
// the highest-confidence copy.
func dedupe(drafts []model.Recommendation) []model.Recommendation {
	best := make(map[string]int, len(drafts))
	out := drafts[:0]
	for _, d := range drafts {
		key := similarity.Normalize(d.Template)
		if i, seen := best[key]; seen {
			if d.ConfidenceScore > out[i].ConfidenceScore {
				out[i] = d
			}
			continue
		}
		best[key] = len(out)
		out = append(out, d)
	}
	return out
}

func ensurePeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}
