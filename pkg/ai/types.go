package ai

import "context"

// NarrativeInput contains the aggregated attendance signals a model needs
// to write a short advisory narrative for faculty.
type NarrativeInput struct {
	ClassSize       int
	LateToday       int
	TotalFines      int
	HighRiskCount   int
	MediumRiskCount int
	WorstDay        string
	TopStudents     []string
	AdditionalNotes string
}

// NarrativeResult is the structured advisory returned by the AI model.
type NarrativeResult struct {
	Narrative string                 `json:"narrative"`
	Severity  string                 `json:"severity"`
	Actions   []string               `json:"actions,omitempty"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

// Summarizer describes an AI model capable of writing attendance advisories.
type Summarizer interface {
	Summarize(ctx context.Context, input NarrativeInput) (NarrativeResult, error)
}
