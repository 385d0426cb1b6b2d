package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for jobs. Mutations run through the
// engine's state machine; the repository only records state.
type JobRepository interface {
	// Create inserts the job. When the job carries an idempotency key that
	// already maps to another job, ErrDuplicateOperation is returned and the
	// caller should fetch the existing job instead.
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Job, error)
	// GetLatestBySession returns the most recent job in a refinement
	// session, used to seed continuity state for tweak submissions.
	GetLatestBySession(ctx context.Context, sessionID string) (*Job, error)
	// Update persists the job's mutable fields. Jobs in a terminal state are
	// immutable except for webhook accounting.
	Update(ctx context.Context, job *Job) error
	// ClaimNext atomically claims the oldest pending job and moves it to
	// generating, so no two workers ever drive the same job. ErrNotFound is
	// returned when nothing is pending.
	ClaimNext(ctx context.Context) (*Job, error)
	// RequestCancel flags a non-terminal job for cancellation at the next
	// state-machine checkpoint. It reports whether the flag was applied.
	RequestCancel(ctx context.Context, jobID string) (bool, error)
	IncrementWebhookAttempts(ctx context.Context, jobID string) error
	// FailExpired marks non-terminal jobs past their expiry as failed and
	// returns how many were swept. This includes jobs abandoned mid-run by a
	// dead worker, so no row stays in-flight forever.
	FailExpired(ctx context.Context, now time.Time) (int64, error)
}

// BrandRepository supplies brand guidelines and logo assets.
type BrandRepository interface {
	GetByID(ctx context.Context, brandID string) (*Brand, error)
	List(ctx context.Context, limit int) ([]Brand, error)
}

// AssetRepository persists finalized assets.
type AssetRepository interface {
	Save(ctx context.Context, asset *Asset) error
	ListByJobID(ctx context.Context, jobID string) ([]Asset, error)
}
