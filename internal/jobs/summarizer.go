package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/llm"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

const summarizerSystemPrompt = `You summarize closed customer support conversations.
Respond with a single JSON object and nothing else:
{"summary": "<2-3 sentence summary>", "key_points": ["..."], "action_items": ["..."]}
key_points lists the facts established in the conversation.
action_items lists concrete follow-ups for the support team; use [] when there are none.`

const (
	maxTranscriptChars = 12000
	extractiveLimit    = 3
)

// SummaryOutput is the structured result of summarizing a transcript.
type SummaryOutput struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`
	Sentiment   model.SentimentLabel
}

// Summarizer turns a conversation transcript into a structured summary.
// With no model client configured it runs fully extractive; a model
// response that fails to parse also falls back to extractive output, but
// a transport or model error propagates so the job can be retried.
type Summarizer struct {
	client llm.Client
	logger *logger.Logger
}

// NewSummarizer creates a summarizer. client may be nil.
func NewSummarizer(client llm.Client, log *logger.Logger) *Summarizer {
	return &Summarizer{client: client, logger: log}
}

// Summarize produces a summary for the issue's message thread.
func (s *Summarizer) Summarize(ctx context.Context, issueID string, messages []model.ConversationMessage) (*SummaryOutput, error) {
	if len(messages) == 0 {
		return nil, errs.InputInvalid("issue %s has no conversation messages", issueID)
	}

	sentiment := AggregateSentiment(messages)

	if s.client == nil {
		out := extractiveSummary(messages)
		out.Sentiment = sentiment
		return out, nil
	}

	transcript := renderTranscript(messages)
	start := time.Now()
	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		System: summarizerSystemPrompt,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: transcript},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
	})
	if err != nil {
		metrics.RecordModelCall(s.client.Name(), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: summarize issue %s: %v", errs.ErrJobProcessingFailed, issueID, err)
	}
	metrics.RecordModelCall(s.client.Name(), "ok", time.Since(start).Seconds())

	out, err := parseSummary(resp.Content)
	if err != nil {
		// A malformed model response is not worth a retry; the
		// extractive summary is the degraded-but-complete answer.
		s.logger.Warn("unparseable summary response, using extractive fallback",
			zap.String("issue_id", issueID), zap.Error(err))
		out = extractiveSummary(messages)
	}
	out.Sentiment = sentiment
	return out, nil
}

func parseSummary(raw string) (*SummaryOutput, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var out SummaryOutput
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, fmt.Errorf("empty summary field")
	}
	if out.KeyPoints == nil {
		out.KeyPoints = []string{}
	}
	if out.ActionItems == nil {
		out.ActionItems = []string{}
	}
	return &out, nil
}

// extractiveSummary builds a summary without a model: the opening
// customer message states the problem, the last support message states
// the outcome, and the longest exchanges become key points.
func extractiveSummary(messages []model.ConversationMessage) *SummaryOutput {
	var opening, closing string
	for _, msg := range messages {
		if opening == "" && msg.Sender == model.SenderCustomer {
			opening = firstSentence(msg.Body)
		}
		if msg.Sender == model.SenderSupport {
			closing = firstSentence(msg.Body)
		}
	}
	if opening == "" {
		opening = firstSentence(messages[0].Body)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Customer reported: %s", opening))
	if closing != "" {
		parts = append(parts, fmt.Sprintf("Last support response: %s", closing))
	}

	keyPoints := make([]string, 0, extractiveLimit)
	for _, msg := range messages {
		if len(keyPoints) == extractiveLimit {
			break
		}
		sentence := firstSentence(msg.Body)
		if len(sentence) >= 20 {
			keyPoints = append(keyPoints, sentence)
		}
	}

	return &SummaryOutput{
		Summary:     strings.Join(parts, " "),
		KeyPoints:   keyPoints,
		ActionItems: []string{},
	}
}

// AggregateSentiment reduces per-message sentiment scores to a label.
// Scores above 0.2 count as positive, below -0.2 negative, the rest
// neutral; the majority label wins and ties resolve to neutral. Messages
// without a score, or a thread with none at all, are neutral.
func AggregateSentiment(messages []model.ConversationMessage) model.SentimentLabel {
	var pos, neg, neutral int
	for _, msg := range messages {
		if msg.Sentiment == nil {
			neutral++
			continue
		}
		switch {
		case *msg.Sentiment > 0.2:
			pos++
		case *msg.Sentiment < -0.2:
			neg++
		default:
			neutral++
		}
	}

	if pos > neg && pos > neutral {
		return model.SentimentPositive
	}
	if neg > pos && neg > neutral {
		return model.SentimentNegative
	}
	return model.SentimentNeutral
}

func renderTranscript(messages []model.ConversationMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		line := fmt.Sprintf("[%s] %s\n", msg.Sender, strings.TrimSpace(msg.Body))
		if b.Len()+len(line) > maxTranscriptChars {
			b.WriteString("[... transcript truncated ...]\n")
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.Index(text, sep); idx > 0 {
			text = text[:idx+1]
			break
		}
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return strings.TrimSpace(text)
}
