package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"brandguard/internal/domain"
)

const pgUniqueViolation = "23505"

const jobColumns = `
id, brand_id, status, prompt, original_prompt, attempt_count, max_attempts,
audit_history, current_image_url, is_approved, original_had_logos, logos_captured,
is_tweak, tweak_instruction, session_id, idempotency_key, webhook_url,
webhook_attempts, storage_fallback, cancel_requested, error_message, locale,
created_at, updated_at, expires_at`

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record. A unique-key collision on the idempotency
// key maps to domain.ErrDuplicateOperation so callers can return the
// existing job.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	history, err := json.Marshal(job.AuditHistory)
	if err != nil {
		return fmt.Errorf("encode audit history: %w", err)
	}
	query := `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.BrandID,
		job.Status,
		job.Prompt,
		job.OriginalPrompt,
		job.AttemptCount,
		job.MaxAttempts,
		history,
		job.CurrentImageURL,
		job.IsApproved,
		job.OriginalHadLogos,
		job.LogosCaptured,
		job.IsTweak,
		job.TweakInstruction,
		job.SessionID,
		nullableString(job.IdempotencyKey),
		job.WebhookURL,
		job.WebhookAttempts,
		job.StorageFallback,
		job.CancelRequested,
		job.ErrorMessage,
		job.Locale,
		job.CreatedAt,
		job.UpdatedAt,
		job.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateOperation
		}
		return err
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// GetByIdempotencyKey fetches the job a key was first submitted with.
func (r *JobRepositoryPG) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE idempotency_key = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, key))
}

// GetLatestBySession returns the newest job in a refinement session.
func (r *JobRepositoryPG) GetLatestBySession(ctx context.Context, sessionID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, sessionID))
}

// Update persists the job's mutable fields. Rows already in a terminal state
// are rejected with domain.ErrJobTerminal; only webhook accounting may touch
// them afterwards.
func (r *JobRepositoryPG) Update(ctx context.Context, job *domain.Job) error {
	history, err := json.Marshal(job.AuditHistory)
	if err != nil {
		return fmt.Errorf("encode audit history: %w", err)
	}
	query := `
UPDATE jobs
SET status = $2,
    prompt = $3,
    attempt_count = $4,
    audit_history = $5,
    current_image_url = $6,
    is_approved = $7,
    original_had_logos = $8,
    logos_captured = $9,
    storage_fallback = $10,
    cancel_requested = $11,
    error_message = $12,
    updated_at = $13
WHERE id = $1
  AND status NOT IN ('completed', 'needs_review', 'failed', 'cancelled');
`
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Prompt,
		job.AttemptCount,
		history,
		job.CurrentImageURL,
		job.IsApproved,
		job.OriginalHadLogos,
		job.LogosCaptured,
		job.StorageFallback,
		job.CancelRequested,
		job.ErrorMessage,
		job.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobTerminal
	}
	return nil
}

// ClaimNext atomically claims the oldest unexpired pending job for this
// worker. SKIP LOCKED keeps concurrent workers from ever holding the same
// job.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'generating', updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending' AND expires_at > NOW()
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns + `;`
	return r.scanJob(r.pool.QueryRow(ctx, query))
}

// RequestCancel flags a non-terminal job; the runner applies the transition
// at its next checkpoint.
func (r *JobRepositoryPG) RequestCancel(ctx context.Context, jobID string) (bool, error) {
	query := `
UPDATE jobs
SET cancel_requested = TRUE, updated_at = NOW()
WHERE id = $1
  AND status NOT IN ('completed', 'needs_review', 'failed', 'cancelled');
`
	tag, err := r.pool.Exec(ctx, query, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementWebhookAttempts records one completed delivery cycle. This is the
// only write allowed on terminal jobs.
func (r *JobRepositoryPG) IncrementWebhookAttempts(ctx context.Context, jobID string) error {
	query := `UPDATE jobs SET webhook_attempts = webhook_attempts + 1, updated_at = NOW() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, query, jobID)
	return err
}

// FailExpired sweeps every non-terminal job past its expiry. Covering the
// in-flight statuses too means a row claimed by a worker that crashed or was
// killed mid-run still reaches a terminal state instead of sitting in
// generating forever.
func (r *JobRepositoryPG) FailExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
UPDATE jobs
SET status = 'failed', error_message = 'expired before completion', updated_at = NOW()
WHERE status NOT IN ('completed', 'needs_review', 'failed', 'cancelled')
  AND expires_at <= $1;
`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *JobRepositoryPG) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var history []byte
	var idempotencyKey *string
	if err := row.Scan(
		&job.ID,
		&job.BrandID,
		&job.Status,
		&job.Prompt,
		&job.OriginalPrompt,
		&job.AttemptCount,
		&job.MaxAttempts,
		&history,
		&job.CurrentImageURL,
		&job.IsApproved,
		&job.OriginalHadLogos,
		&job.LogosCaptured,
		&job.IsTweak,
		&job.TweakInstruction,
		&job.SessionID,
		&idempotencyKey,
		&job.WebhookURL,
		&job.WebhookAttempts,
		&job.StorageFallback,
		&job.CancelRequested,
		&job.ErrorMessage,
		&job.Locale,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if idempotencyKey != nil {
		job.IdempotencyKey = *idempotencyKey
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &job.AuditHistory); err != nil {
			return nil, fmt.Errorf("decode audit history: %w", err)
		}
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
