package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

const (
	// disagreementPenalty is subtracted from the model's top-class
	// probability when the rule hint and the model disagree by more
	// than one severity level.
	disagreementPenalty = 0.15

	// fallbackConfidence is reported when the model is unavailable and
	// only the rule pass ran.
	fallbackConfidence = 0.4
)

// Scorer produces a severity probability distribution for issue text.
// Implementations are model-backed and may fail or time out.
type Scorer interface {
	Score(ctx context.Context, text, category string) (map[model.Severity]float64, error)
}

// Classifier combines the rule table with a model scorer.
type Classifier struct {
	rules  *RuleTable
	scorer Scorer
	logger *logger.Logger
}

// New creates a classifier. A nil scorer means rule-only classification.
func New(rules *RuleTable, scorer Scorer, log *logger.Logger) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules, scorer: scorer, logger: log}
}

// Classify assigns a severity and confidence to the issue text. The
// returned flag is false when the model pass was unavailable and the
// result came from rules alone; the call itself never fails.
func (c *Classifier) Classify(ctx context.Context, text, category string) (model.SeverityAssessment, bool) {
	hint, hasHint := c.rules.Hint(text, category)

	dist, err := c.score(ctx, text, category)
	if err != nil {
		c.logger.Warn("severity model unavailable, using rules only",
			zap.String("rules_version", c.rules.Version), zap.Error(err))
		severity := model.SeverityNormal
		if hasHint {
			severity = hint
		}
		return model.SeverityAssessment{Severity: severity, Confidence: fallbackConfidence}, false
	}

	top, prob := topClass(dist)

	assessment := model.SeverityAssessment{Severity: top, Confidence: prob}
	if hasHint {
		if diff := hint.Level() - top.Level(); diff >= -1 && diff <= 1 {
			assessment.Severity = hint
		} else {
			assessment.Confidence = prob - disagreementPenalty
		}
	}
	assessment.Confidence = model.ClampScore(assessment.Confidence)
	return assessment, true
}

func (c *Classifier) score(ctx context.Context, text, category string) (map[model.Severity]float64, error) {
	if c.scorer == nil {
		return nil, errNoScorer
	}
	return c.scorer.Score(ctx, text, category)
}

// topClass picks the most probable severity. Ties resolve toward the
// more urgent class.
func topClass(dist map[model.Severity]float64) (model.Severity, float64) {
	order := []model.Severity{model.SeverityHigh, model.SeverityNormal, model.SeverityLow}

	best := model.SeverityNormal
	bestProb := -1.0
	for _, s := range order {
		if p := dist[s]; p > bestProb {
			best = s
			bestProb = p
		}
	}
	if bestProb < 0 {
		return model.SeverityNormal, 0
	}
	return best, model.ClampScore(bestProb)
}
