package model

import (
	"time"
)

// TemplateType tags the kind of response template a recommendation carries.
// Synthesis and ranking handle every variant explicitly.
type TemplateType string

const (
	TemplateGreeting TemplateType = "greeting"
	TemplateSolution TemplateType = "solution"
	TemplateClosing  TemplateType = "closing"
)

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	switch t {
	case TemplateGreeting, TemplateSolution, TemplateClosing:
		return true
	}
	return false
}

// Tone is the voice a response template is written in.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneEmpathetic   Tone = "empathetic"
)

// Recommendation is a stored, ranked response template for an issue.
type Recommendation struct {
	ID              string       `json:"id"`
	IssueID         string       `json:"issue_id"`
	Type            TemplateType `json:"type"`
	Tone            Tone         `json:"tone"`
	Template        string       `json:"template"`
	ConfidenceScore float64      `json:"confidence_score"`
	Reasoning       string       `json:"reasoning"`
	UsedCount       int          `json:"used_count"`
	CreatedAt       time.Time    `json:"created_at"`
}
