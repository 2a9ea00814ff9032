package llm

import (
	"context"
	"errors"
)

// ErrUpstream marks failures of the summarization endpoint itself.
var ErrUpstream = errors.New("summarization upstream failed")

// SummaryRequest is the extracted text plus the caller's prompt choice.
type SummaryRequest struct {
	Text         string
	PromptType   PromptType
	CustomPrompt string
}

// StructuredSummary is the JSON shape requested from the model.
type StructuredSummary struct {
	Summary         string   `json:"summary"`
	AbnormalValues  []string `json:"abnormal_values,omitempty"`
	Diagnosis       string   `json:"diagnosis,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Summary is the rendered answer. Structured is nil when the model replied in prose.
type Summary struct {
	Text       string
	Structured *StructuredSummary
	Model      string
}

// Summarizer is the interface the HTTP layer depends on.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (Summary, error)
}
