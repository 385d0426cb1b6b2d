package engine

import (
	"strings"

	"brandguard/internal/domain"
)

// logoKeywords trigger logo inclusion when a tweak instruction mentions
// brand marks explicitly.
var logoKeywords = []string{"logo", "brand mark", "icon", "symbol", "emblem"}

// NeedsLogos decides whether brand logo assets must accompany the next
// generation call.
//
// First attempts always get full brand context. Continuations (a retry
// within the job, or a tweak refining an existing image) inherit the frozen
// OriginalHadLogos anchor, widened by an explicit logo mention in the tweak
// instruction. The anchor itself is captured once by the runner on attempt
// zero and never recomputed, so a later tweak can never silently drop the
// brand's logos.
func NeedsLogos(job *domain.Job) bool {
	continuing := job.AttemptCount > 0 || (job.IsTweak && job.CurrentImageURL != "")
	if !continuing {
		return true
	}
	return job.OriginalHadLogos || logoMentioned(job.TweakInstruction)
}

func logoMentioned(instruction string) bool {
	lowered := strings.ToLower(instruction)
	for _, kw := range logoKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
