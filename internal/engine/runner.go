package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"brandguard/internal/domain"
	"brandguard/internal/infra"
	"brandguard/internal/providers/audit"
	"brandguard/internal/providers/image"
	"brandguard/internal/webhook"
)

// DurableStore is the storage capability used by finalization.
type DurableStore interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// Notifier delivers terminal job payloads to a caller's webhook URL.
type Notifier interface {
	Deliver(ctx context.Context, url string, payload webhook.Payload) bool
}

// Config tunes the runner. Zero values select the documented defaults.
type Config struct {
	ComplianceThreshold float64
	StepTimeout         time.Duration
}

const (
	DefaultComplianceThreshold = 0.80
	DefaultStepTimeout         = 60 * time.Second

	terminalFlushTimeout = 5 * time.Second
)

// transitions is the fixed state graph. Generation and audit may loop back
// to generating on retriable step failures; cancelled and failed are
// reachable from every non-terminal state.
var transitions = map[domain.JobStatus][]domain.JobStatus{
	domain.JobStatusPending: {
		domain.JobStatusGenerating, domain.JobStatusCancelled, domain.JobStatusFailed,
	},
	domain.JobStatusGenerating: {
		domain.JobStatusAuditing, domain.JobStatusGenerating, domain.JobStatusNeedsReview,
		domain.JobStatusCancelled, domain.JobStatusFailed,
	},
	domain.JobStatusAuditing: {
		domain.JobStatusCompleted, domain.JobStatusCorrecting, domain.JobStatusNeedsReview,
		domain.JobStatusGenerating, domain.JobStatusCancelled, domain.JobStatusFailed,
	},
	domain.JobStatusCorrecting: {
		domain.JobStatusGenerating, domain.JobStatusCancelled, domain.JobStatusFailed,
	},
}

// Runner drives one job at a time through the generation-audit-correction
// loop. Callers must guarantee the single-writer rule: no two runners may
// hold the same job concurrently (the repository's claim query enforces this
// across processes).
type Runner struct {
	jobs      domain.JobRepository
	brands    domain.BrandRepository
	assets    domain.AssetRepository
	generator image.Generator
	auditor   audit.Auditor
	store     DurableStore
	notifier  Notifier
	logger    infra.Logger
	cfg       Config
}

// NewRunner wires the engine's collaborators together.
func NewRunner(
	jobs domain.JobRepository,
	brands domain.BrandRepository,
	assets domain.AssetRepository,
	generator image.Generator,
	auditor audit.Auditor,
	store DurableStore,
	notifier Notifier,
	logger infra.Logger,
	cfg Config,
) *Runner {
	if cfg.ComplianceThreshold <= 0 {
		cfg.ComplianceThreshold = DefaultComplianceThreshold
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	return &Runner{
		jobs:      jobs,
		brands:    brands,
		assets:    assets,
		generator: generator,
		auditor:   auditor,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes the job until it reaches a terminal state, then delivers the
// webhook notification if one was registered. The job must already be
// claimed by this runner.
func (r *Runner) Run(ctx context.Context, job *domain.Job) error {
	brand, err := r.brands.GetByID(ctx, job.BrandID)
	if err != nil {
		r.fail(ctx, job, fmt.Errorf("load brand %s: %w", job.BrandID, err))
		r.notify(ctx, job)
		return err
	}

	var candidate *image.Asset

	for !job.Status.Terminal() {
		if r.cancelledAtCheckpoint(ctx, job) {
			break
		}

		switch job.Status {
		case domain.JobStatusPending:
			if err := r.transition(ctx, job, domain.JobStatusGenerating); err != nil {
				return err
			}
		case domain.JobStatusGenerating:
			candidate = r.stepGenerate(ctx, job, brand)
		case domain.JobStatusAuditing:
			r.stepAudit(ctx, job, brand, candidate)
		case domain.JobStatusCorrecting:
			r.stepCorrect(ctx, job)
		default:
			r.fail(ctx, job, fmt.Errorf("unexpected job status %q", job.Status))
		}
	}

	r.notify(ctx, job)
	return nil
}

// cancelledAtCheckpoint re-reads the cancel flag between steps. An in-flight
// provider call is never preempted; its result is simply discarded once the
// loop reaches the next checkpoint.
func (r *Runner) cancelledAtCheckpoint(ctx context.Context, job *domain.Job) bool {
	fresh, err := r.jobs.GetByID(ctx, job.ID)
	if err == nil && fresh.CancelRequested {
		job.CancelRequested = true
	}
	if !job.CancelRequested {
		return false
	}
	if err := r.transition(ctx, job, domain.JobStatusCancelled); err != nil {
		return true
	}
	r.logger.Info().Str("job_id", job.ID).Msg("engine: job cancelled")
	return true
}

// stepGenerate invokes the image generator with the current prompt and, when
// continuity requires them, the brand's logo assets. The attempt counter is
// incremented exactly once per invocation, success or not.
func (r *Runner) stepGenerate(ctx context.Context, job *domain.Job, brand *domain.Brand) *image.Asset {
	needLogos := NeedsLogos(job)
	if !job.LogosCaptured {
		job.CaptureOriginalLogos(needLogos && brand.HasLogos())
	}

	var refs []image.ReferenceAsset
	if needLogos {
		for _, logo := range brand.Logos {
			refs = append(refs, image.ReferenceAsset{
				Name: logo.ID,
				MIME: logo.MIME,
				URL:  logo.URL,
				Data: logo.Data,
			})
		}
	}

	job.AttemptCount++

	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	asset, err := r.generator.Generate(stepCtx, image.GenerateRequest{
		Prompt:     job.Prompt,
		RequestID:  job.ID,
		Locale:     job.Locale,
		References: refs,
	})
	if err != nil {
		r.handleStepFailure(ctx, job, domain.JobStatusGenerating, fmt.Errorf("generation attempt %d: %w", job.AttemptCount, err))
		return nil
	}

	job.CurrentImageURL = transientImageURL(asset)
	r.logger.Info().
		Str("job_id", job.ID).
		Int("attempt", job.AttemptCount).
		Bool("logos", needLogos).
		Msg("engine: image generated")

	_ = r.transition(ctx, job, domain.JobStatusAuditing)
	return asset
}

// stepAudit scores the candidate against the brand guidelines, appends the
// result to the audit history, and applies the attempt-budget policy.
func (r *Runner) stepAudit(ctx context.Context, job *domain.Job, brand *domain.Brand, candidate *image.Asset) {
	data, mime := candidateBytes(job, candidate)
	if len(data) == 0 {
		r.fail(ctx, job, errors.New("audit: no candidate image available"))
		return
	}

	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	report, err := r.auditor.Audit(stepCtx, audit.Request{
		ImageData:  data,
		MIME:       mime,
		Guidelines: brand.Guidelines,
		BrandID:    brand.ID,
		RequestID:  job.ID,
	})
	if err != nil {
		r.handleStepFailure(ctx, job, domain.JobStatusGenerating, fmt.Errorf("audit attempt %d: %w", job.AttemptCount, err))
		return
	}

	result := CombineScores(report, brand.Guidelines, r.cfg.ComplianceThreshold)
	job.AuditHistory = append(job.AuditHistory, result)

	r.logger.Info().
		Str("job_id", job.ID).
		Int("attempt", job.AttemptCount).
		Float64("score", result.OverallScore).
		Bool("approved", result.Approved).
		Msg("engine: audit complete")

	switch DecideNext(job) {
	case DecisionFinalize:
		job.IsApproved = true
		r.finalize(ctx, job, data, mime)
		_ = r.transition(ctx, job, domain.JobStatusCompleted)
	case DecisionNeedsReview:
		_ = r.transition(ctx, job, domain.JobStatusNeedsReview)
	default:
		_ = r.transition(ctx, job, domain.JobStatusCorrecting)
	}
}

// stepCorrect amends the prompt from the latest audit's violations. When no
// usable fix emerges the prompt is retried unchanged.
func (r *Runner) stepCorrect(ctx context.Context, job *domain.Job) {
	fix := SynthesizeCorrection(job.LatestAudit())
	if ApplyCorrection(job, fix) {
		r.logger.Info().
			Str("job_id", job.ID).
			Str("fix", fix).
			Msg("engine: prompt corrected")
	} else {
		r.logger.Info().Str("job_id", job.ID).Msg("engine: no correction derived, retrying prompt unchanged")
	}
	_ = r.transition(ctx, job, domain.JobStatusGenerating)
}

// finalize uploads the approved image to durable storage. An upload failure
// never discards the compliant result: the job still completes with the
// transient image and a fallback marker.
func (r *Runner) finalize(ctx context.Context, job *domain.Job, data []byte, mime string) {
	key := fmt.Sprintf("jobs/%s/attempt-%d%s", job.ID, job.AttemptCount, extensionForMIME(mime))
	url, err := r.store.Upload(ctx, key, data)
	if err != nil {
		job.StorageFallback = true
		r.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Msg("engine: durable upload failed, retaining transient image")
		return
	}
	job.CurrentImageURL = url

	score := 0.0
	if latest := job.LatestAudit(); latest != nil {
		score = latest.OverallScore
	}
	asset := &domain.Asset{
		JobID:      job.ID,
		BrandID:    job.BrandID,
		StorageKey: key,
		URL:        url,
		MIME:       mime,
		Bytes:      int64(len(data)),
		Attempt:    job.AttemptCount,
		Score:      score,
	}
	if err := r.assets.Save(ctx, asset); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("engine: save asset record failed")
	}
}

// handleStepFailure classifies a step error. Retriable failures consume the
// attempt and feed the budget policy; anything else fails the job.
func (r *Runner) handleStepFailure(ctx context.Context, job *domain.Job, retryState domain.JobStatus, err error) {
	if !retriable(err) {
		r.fail(ctx, job, err)
		return
	}
	r.logger.Warn().Err(err).Str("job_id", job.ID).Int("attempt", job.AttemptCount).Msg("engine: step failed")
	if DecideNext(job) == DecisionNeedsReview {
		_ = r.transition(ctx, job, domain.JobStatusNeedsReview)
		return
	}
	_ = r.transition(ctx, job, retryState)
}

func (r *Runner) fail(ctx context.Context, job *domain.Job, err error) {
	job.ErrorMessage = err.Error()
	r.logger.Error().Err(err).Str("job_id", job.ID).Msg("engine: job failed")
	_ = r.transition(ctx, job, domain.JobStatusFailed)
}

// transition validates the move against the state graph and persists the
// job. Every mutation of a job flows through here, keeping the single-writer
// rule auditable.
//
// Terminal transitions must land in the database even when the worker is
// shutting down: once the run context is cancelled every repository call
// fails, which would otherwise strand the claimed row in generating. The
// write is retried on a short detached context so the outcome survives
// SIGTERM.
func (r *Runner) transition(ctx context.Context, job *domain.Job, next domain.JobStatus) error {
	allowed := false
	for _, s := range transitions[job.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid transition %s -> %s", job.Status, next)
	}
	job.Status = next
	job.UpdatedAt = time.Now().UTC()
	err := r.jobs.Update(ctx, job)
	if err != nil && next.Terminal() && ctx.Err() != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), terminalFlushTimeout)
		defer cancel()
		err = r.jobs.Update(flushCtx, job)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Str("status", string(next)).Msg("engine: persist transition failed")
		return err
	}
	return nil
}

// notify runs one webhook delivery cycle for a terminal job. Delivery
// failure is logged and counted, never reflected in the job's status.
func (r *Runner) notify(ctx context.Context, job *domain.Job) {
	if job.WebhookURL == "" || r.notifier == nil {
		return
	}
	payload := webhook.Payload{
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: time.Now().UTC(),
	}
	if job.Status == domain.JobStatusCompleted {
		result := map[string]any{"image_url": job.CurrentImageURL}
		if latest := job.LatestAudit(); latest != nil {
			result["overall_score"] = latest.OverallScore
		}
		payload.Result = result
	}
	r.notifier.Deliver(ctx, job.WebhookURL, payload)
	if err := r.jobs.IncrementWebhookAttempts(ctx, job.ID); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("engine: record webhook cycle failed")
	}
	job.WebhookAttempts++
}

func retriable(err error) bool {
	return errors.Is(err, domain.ErrProviderFailure) ||
		errors.Is(err, context.DeadlineExceeded)
}

// transientImageURL encodes the candidate as an inline data URI until
// finalization replaces it with a durable URL.
func transientImageURL(asset *image.Asset) string {
	if asset.URL != "" {
		return asset.URL
	}
	mime := asset.Format
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(asset.Data)
}

// candidateBytes recovers the candidate image, decoding the inline data URI
// when the in-memory asset is gone (e.g. after a worker restart).
func candidateBytes(job *domain.Job, asset *image.Asset) ([]byte, string) {
	if asset != nil && len(asset.Data) > 0 {
		mime := asset.Format
		if mime == "" {
			mime = "image/png"
		}
		return asset.Data, mime
	}
	const scheme = "data:"
	url := job.CurrentImageURL
	if !strings.HasPrefix(url, scheme) {
		return nil, ""
	}
	rest := url[len(scheme):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return nil, ""
	}
	mime := rest[:sep]
	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return nil, ""
	}
	return data, mime
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
