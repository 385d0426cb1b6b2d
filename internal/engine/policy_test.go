package engine

import (
	"testing"

	"brandguard/internal/domain"
)

func jobWithAudits(attempts, maxAttempts int, scores []float64, threshold float64) *domain.Job {
	job := &domain.Job{
		ID:           "job-1",
		Status:       domain.JobStatusAuditing,
		AttemptCount: attempts,
		MaxAttempts:  maxAttempts,
	}
	for _, score := range scores {
		job.AuditHistory = append(job.AuditHistory, domain.AuditResult{
			OverallScore: score,
			Approved:     score >= threshold*100,
		})
	}
	return job
}

func TestDecideNext(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		maxAttempts int
		scores      []float64
		want        Decision
	}{
		{
			name:        "approved latest audit finalizes",
			attempts:    1,
			maxAttempts: 3,
			scores:      []float64{92},
			want:        DecisionFinalize,
		},
		{
			name:        "approved on last attempt still finalizes",
			attempts:    3,
			maxAttempts: 3,
			scores:      []float64{60, 70, 90},
			want:        DecisionFinalize,
		},
		{
			name:        "failing audit with budget left retries",
			attempts:    1,
			maxAttempts: 3,
			scores:      []float64{60},
			want:        DecisionRetry,
		},
		{
			name:        "budget spent without approval needs review",
			attempts:    2,
			maxAttempts: 2,
			scores:      []float64{50, 55},
			want:        DecisionNeedsReview,
		},
		{
			name:        "no audit yet with budget left retries",
			attempts:    1,
			maxAttempts: 3,
			scores:      nil,
			want:        DecisionRetry,
		},
		{
			name:        "no audit and budget spent needs review",
			attempts:    2,
			maxAttempts: 2,
			scores:      nil,
			want:        DecisionNeedsReview,
		},
		{
			name:        "only latest audit counts",
			attempts:    2,
			maxAttempts: 3,
			scores:      []float64{95, 40},
			want:        DecisionRetry,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := jobWithAudits(tc.attempts, tc.maxAttempts, tc.scores, 0.80)
			if got := DecideNext(job); got != tc.want {
				t.Fatalf("DecideNext() = %v, want %v", got, tc.want)
			}
		})
	}
}

// Every reachable combination of counters and latest-audit outcome must map
// to exactly one decision.
func TestDecideNextTotality(t *testing.T) {
	for maxAttempts := 1; maxAttempts <= 5; maxAttempts++ {
		for attempts := 0; attempts <= maxAttempts; attempts++ {
			for _, approved := range []bool{true, false} {
				job := &domain.Job{AttemptCount: attempts, MaxAttempts: maxAttempts}
				if attempts > 0 {
					score := 50.0
					if approved {
						score = 95.0
					}
					job.AuditHistory = append(job.AuditHistory, domain.AuditResult{
						OverallScore: score,
						Approved:     approved,
					})
				}
				got := DecideNext(job)
				if got != DecisionRetry && got != DecisionFinalize && got != DecisionNeedsReview {
					t.Fatalf("attempts=%d max=%d approved=%v: unexpected decision %v", attempts, maxAttempts, approved, got)
				}
				if attempts > 0 && approved && got != DecisionFinalize {
					t.Fatalf("approved audits must finalize, got %v", got)
				}
			}
		}
	}
}

func TestDecisionString(t *testing.T) {
	if DecisionRetry.String() != "retry" || DecisionFinalize.String() != "finalize" || DecisionNeedsReview.String() != "needs_review" {
		t.Fatal("unexpected decision labels")
	}
}
