package domain

import "time"

// Compliance categories evaluated by the auditor. The set is fixed; brands
// without rules for a category simply have it excluded from scoring.
const (
	CategoryColors     = "colors"
	CategoryTypography = "typography"
	CategoryLayout     = "layout"
	CategoryLogoUsage  = "logo_usage"
)

// CategoryResult holds the audited outcome for one guideline category.
type CategoryResult struct {
	Category   string   `json:"category"`
	Score      float64  `json:"score"`
	Weight     float64  `json:"weight"`
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// AuditResult is the output of one audit step. Instances are appended to a
// job's audit history and never mutated afterwards.
type AuditResult struct {
	OverallScore float64          `json:"overall_score"`
	Approved     bool             `json:"approved"`
	Summary      string           `json:"summary,omitempty"`
	Categories   []CategoryResult `json:"category_details"`
	AuditedAt    time.Time        `json:"audited_at"`
}

// Violations collects every violation description across failed categories,
// in category order.
func (r *AuditResult) Violations() []string {
	var out []string
	for _, c := range r.Categories {
		if c.Passed {
			continue
		}
		out = append(out, c.Violations...)
	}
	return out
}
