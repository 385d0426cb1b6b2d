package audit

import (
	"context"

	"brandguard/internal/domain"
)

// Request carries one candidate image plus the guidelines to audit against.
type Request struct {
	ImageData []byte
	ImageURL  string
	MIME      string

	Guidelines domain.Guidelines
	BrandID    string
	RequestID  string
}

// CategoryEvaluation is the auditor's raw verdict for one category, before
// weighting. Scores are 0-100.
type CategoryEvaluation struct {
	Category   string
	Score      float64
	Violations []string
}

// Report is the auditor's full raw output for one candidate image.
type Report struct {
	Summary    string
	Categories []CategoryEvaluation
}

// Auditor is the compliance-audit capability consumed by the engine.
type Auditor interface {
	Audit(ctx context.Context, req Request) (*Report, error)
}
