package domain

import "time"

// JobStatus enumerates the lifecycle states of an asset-generation job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusGenerating  JobStatus = "generating"
	JobStatusAuditing    JobStatus = "auditing"
	JobStatusCorrecting  JobStatus = "correcting"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusNeedsReview JobStatus = "needs_review"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusNeedsReview, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is the unit of work for one brand-asset generation request. It is
// exclusively owned by the engine while active; callers only read snapshots.
type Job struct {
	ID      string
	BrandID string
	Status  JobStatus

	// Prompt is the current, possibly corrected, generation instruction.
	// OriginalPrompt never changes after submission.
	Prompt         string
	OriginalPrompt string

	AttemptCount int
	MaxAttempts  int

	// AuditHistory is append-only, at most one entry per generation attempt,
	// in strict attempt order.
	AuditHistory []AuditResult

	// CurrentImageURL holds the latest candidate. Until finalization it may
	// be a transient inline-encoded payload; afterwards a durable URL.
	CurrentImageURL string
	IsApproved      bool

	// OriginalHadLogos anchors logo continuity across tweaks. It is captured
	// on the first attempt and frozen for the rest of the job's lifetime;
	// LogosCaptured guards the write-once rule.
	OriginalHadLogos bool
	LogosCaptured    bool

	IsTweak          bool
	TweakInstruction string
	SessionID        string

	IdempotencyKey string

	WebhookURL      string
	WebhookAttempts int

	// StorageFallback marks a completed job whose durable upload failed and
	// which therefore retains a non-durable image.
	StorageFallback bool

	CancelRequested bool
	ErrorMessage    string
	Locale          string

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// LatestAudit returns the most recent audit result, or nil when no attempt
// has been audited yet.
func (j *Job) LatestAudit() *AuditResult {
	if len(j.AuditHistory) == 0 {
		return nil
	}
	return &j.AuditHistory[len(j.AuditHistory)-1]
}

// CaptureOriginalLogos records the logo-continuity anchor. Only the first
// call has any effect; later calls are ignored so tweaks within the same
// session can never drop the flag.
func (j *Job) CaptureOriginalLogos(hadLogos bool) {
	if j.LogosCaptured {
		return
	}
	j.OriginalHadLogos = hadLogos
	j.LogosCaptured = true
}

// Expired reports whether the job passed its expiry deadline.
func (j *Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}
