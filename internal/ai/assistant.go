// Package ai turns free text into structured records and scores candidates against jobs
// using an inference provider.
package ai

import (
	"context"
)

const (
	// ExtractionTemperature keeps parsing close to deterministic.
	ExtractionTemperature float32 = 0.1
	// MatchTemperature leaves some room for phrasing in the feedback.
	MatchTemperature float32 = 0.5
)

// Request is a single prompt sent to an inference provider.
type Request struct {
	System      string
	Message     string
	Temperature float32
	// JSON asks the provider to constrain the response to a JSON object.
	JSON bool
}

// Generator is implemented by inference providers.
type Generator interface {
	GenerateContent(ctx context.Context, req Request) (string, error)
	Model() string
}

// MatchAssessment is the result of comparing a resume with a job description.
type MatchAssessment struct {
	Score    int
	RawScore float64
	Clamped  bool
	Feedback string
	Raw      string
}
