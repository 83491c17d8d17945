package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ni30kp/lula-Task/internal/llm"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

var errNoScorer = errors.New("no severity scorer configured")

const scorerSystemPrompt = `You are a support issue triage classifier.
Given an issue description and category, respond with only a JSON object
mapping severity labels to probabilities that sum to 1, for example:
{"LOW": 0.1, "NORMAL": 0.2, "HIGH": 0.7}`

// LLMScorer scores severity distributions with an LLM.
type LLMScorer struct {
	client llm.Client
}

// NewLLMScorer creates a model-backed severity scorer.
func NewLLMScorer(client llm.Client) *LLMScorer {
	return &LLMScorer{client: client}
}

// Score prompts the model for a severity distribution.
func (s *LLMScorer) Score(ctx context.Context, text, category string) (map[model.Severity]float64, error) {
	start := time.Now()

	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		System: scorerSystemPrompt,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: fmt.Sprintf("Category: %s\nIssue: %s", category, text)},
		},
		MaxTokens: 128,
	})
	if err != nil {
		metrics.RecordModelCall("severity", "error", time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordModelCall("severity", "success", time.Since(start).Seconds())

	return parseDistribution(resp.Content)
}

func parseDistribution(content string) (map[model.Severity]float64, error) {
	// Models sometimes wrap JSON in prose or fences; take the braces.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse distribution: %w", err)
	}

	dist := make(map[model.Severity]float64, 3)
	var total float64
	for k, v := range raw {
		sev := model.Severity(strings.ToUpper(k))
		if !sev.Valid() || v < 0 {
			continue
		}
		dist[sev] = v
		total += v
	}
	if len(dist) == 0 || total == 0 {
		return nil, fmt.Errorf("empty severity distribution")
	}
	for k, v := range dist {
		dist[k] = v / total
	}
	return dist, nil
}
