package engine

import (
	"strings"

	"brandguard/internal/domain"
)

const (
	correctionMarker  = ". IMPORTANT CORRECTION: "
	maxViolationHints = 3
)

// SynthesizeCorrection derives a prompt amendment from the latest audit.
// It gathers up to three violation descriptions across failed categories in
// category order. When no violation text exists, the audit's free-text
// summary is used instead, but only when it actually suggests something.
// An empty result means the prompt should be retried unchanged.
func SynthesizeCorrection(audit *domain.AuditResult) string {
	if audit == nil {
		return ""
	}
	var hints []string
	for _, cat := range audit.Categories {
		if cat.Passed {
			continue
		}
		for _, v := range cat.Violations {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			hints = append(hints, v)
			if len(hints) >= maxViolationHints {
				return strings.Join(hints, " ")
			}
		}
	}
	if len(hints) > 0 {
		return strings.Join(hints, " ")
	}
	if strings.Contains(strings.ToLower(audit.Summary), "suggest") {
		return strings.TrimSpace(audit.Summary)
	}
	return ""
}

// ApplyCorrection amends the job's prompt with the synthesized fix. The
// attempt counter is untouched here; incrementing belongs to the generation
// step. It reports whether the prompt actually changed.
func ApplyCorrection(job *domain.Job, fix string) bool {
	if fix == "" {
		return false
	}
	job.Prompt = job.Prompt + correctionMarker + fix
	return true
}
