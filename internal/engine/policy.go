package engine

import "brandguard/internal/domain"

// Decision is the attempt-budget verdict applied after each audit.
type Decision int

const (
	DecisionRetry Decision = iota
	DecisionFinalize
	DecisionNeedsReview
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionFinalize:
		return "finalize"
	case DecisionNeedsReview:
		return "needs_review"
	}
	return "unknown"
}

// DecideNext maps the job's current audit history and counters to exactly
// one decision. The function is pure and total: finalize iff the latest
// audit approved, needs_review iff the attempt budget is spent without
// approval, retry otherwise.
func DecideNext(job *domain.Job) Decision {
	if latest := job.LatestAudit(); latest != nil && latest.Approved {
		return DecisionFinalize
	}
	if job.AttemptCount >= job.MaxAttempts {
		return DecisionNeedsReview
	}
	return DecisionRetry
}
