package audit

import (
	"context"
	"fmt"

	"brandguard/internal/domain"
	"brandguard/internal/providers/genai"
)

// Categories the auditor asks the model to evaluate, in a fixed order so
// reports and downstream corrections are stable.
var auditCategories = []string{
	domain.CategoryColors,
	domain.CategoryTypography,
	domain.CategoryLayout,
	domain.CategoryLogoUsage,
}

// GeminiAuditor adapts the shared Gemini client to the Auditor contract.
type GeminiAuditor struct {
	client *genai.Client
}

func NewGeminiAuditor(client *genai.Client) *GeminiAuditor {
	return &GeminiAuditor{client: client}
}

func (a *GeminiAuditor) Audit(ctx context.Context, req Request) (*Report, error) {
	rules := make(map[string][]string, len(auditCategories))
	for _, category := range auditCategories {
		if texts := req.Guidelines.RulesFor(category); len(texts) > 0 {
			rules[category] = texts
		}
	}

	verdict, err := a.client.AuditImage(ctx, genai.AuditRequest{
		Image:     genai.InlineImage{MIME: req.MIME, Data: req.ImageData},
		Rules:     rules,
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}

	report := &Report{Summary: verdict.Summary}
	// Preserve the fixed category order regardless of how the model ordered
	// its response.
	byName := make(map[string]CategoryEvaluation, len(verdict.Categories))
	for _, c := range verdict.Categories {
		byName[c.Category] = CategoryEvaluation{
			Category:   c.Category,
			Score:      c.Score,
			Violations: c.Violations,
		}
	}
	for _, category := range auditCategories {
		if eval, ok := byName[category]; ok {
			report.Categories = append(report.Categories, eval)
		}
	}
	return report, nil
}

var _ Auditor = (*GeminiAuditor)(nil)
