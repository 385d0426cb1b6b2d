package engine

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"brandguard/internal/domain"
	"brandguard/internal/providers/audit"
)

// Base category weights. Categories a brand has no rules for are excluded
// and their weight is redistributed proportionally among the rest, so a
// brand without, say, logo rules is not penalized on a dimension it never
// defined: effective_weight(c) = weight(c) / sum(weight of applicable).
var categoryWeights = map[string]float64{
	domain.CategoryColors:     0.30,
	domain.CategoryTypography: 0.25,
	domain.CategoryLayout:     0.25,
	domain.CategoryLogoUsage:  0.20,
}

var titleCaser = cases.Title(language.English)

// DisplayName renders a category identifier for human-facing summaries,
// e.g. "logo_usage" -> "Logo Usage".
func DisplayName(category string) string {
	return titleCaser.String(strings.ReplaceAll(category, "_", " "))
}

// CombineScores folds the auditor's raw category evaluations into a final
// AuditResult under the fixed weight table. threshold is the compliance
// threshold as a fraction (e.g. 0.80); it applies both per category and to
// the weighted overall score. Evaluations for categories the guidelines
// define no rules for are dropped before weighting.
func CombineScores(report *audit.Report, guidelines domain.Guidelines, threshold float64) domain.AuditResult {
	result := domain.AuditResult{AuditedAt: time.Now().UTC()}
	if report == nil {
		return result
	}
	result.Summary = report.Summary

	passMark := threshold * 100

	var applicable []audit.CategoryEvaluation
	var weightSum float64
	for _, eval := range report.Categories {
		base, known := categoryWeights[eval.Category]
		if !known || !guidelines.HasRules(eval.Category) {
			continue
		}
		applicable = append(applicable, eval)
		weightSum += base
	}
	if weightSum == 0 {
		return result
	}

	var overall float64
	for _, eval := range applicable {
		weight := categoryWeights[eval.Category] / weightSum
		overall += eval.Score * weight
		result.Categories = append(result.Categories, domain.CategoryResult{
			Category:   eval.Category,
			Score:      eval.Score,
			Weight:     weight,
			Passed:     eval.Score >= passMark,
			Violations: eval.Violations,
		})
	}

	result.OverallScore = overall
	result.Approved = overall >= passMark
	if result.Summary == "" {
		result.Summary = formatSummary(result)
	}
	return result
}

func formatSummary(r domain.AuditResult) string {
	parts := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		verdict := "passed"
		if !c.Passed {
			verdict = "failed"
		}
		parts = append(parts, fmt.Sprintf("%s %.0f (%s)", DisplayName(c.Category), c.Score, verdict))
	}
	return strings.Join(parts, ", ")
}
