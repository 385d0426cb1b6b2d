package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"brandguard/internal/domain"
	"brandguard/internal/middleware"
	"brandguard/pkg/zip"
)

type submitJobRequest struct {
	BrandID              string `json:"brand_id"`
	Prompt               string `json:"prompt"`
	IsTweak              bool   `json:"is_tweak"`
	UserTweakInstruction string `json:"user_tweak_instruction"`
	SessionID            string `json:"session_id"`
	IdempotencyKey       string `json:"idempotency_key"`
	WebhookURL           string `json:"webhook_url"`
	MaxAttempts          int    `json:"max_attempts"`
}

type jobSnapshot struct {
	JobID                string               `json:"job_id"`
	BrandID              string               `json:"brand_id"`
	Status               string               `json:"status"`
	Prompt               string               `json:"prompt"`
	OriginalPrompt       string               `json:"original_prompt"`
	AttemptCount         int                  `json:"attempt_count"`
	MaxAttempts          int                  `json:"max_attempts"`
	AuditHistory         []domain.AuditResult `json:"audit_history,omitempty"`
	CurrentImageURL      string               `json:"current_image_url,omitempty"`
	IsApproved           bool                 `json:"is_approved"`
	OriginalHadLogos     bool                 `json:"original_had_logos"`
	IsTweak              bool                 `json:"is_tweak"`
	UserTweakInstruction string               `json:"user_tweak_instruction,omitempty"`
	SessionID            string               `json:"session_id,omitempty"`
	WebhookAttempts      int                  `json:"webhook_attempts"`
	StorageFallback      bool                 `json:"storage_fallback,omitempty"`
	Error                string               `json:"error,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	ExpiresAt            time.Time            `json:"expires_at"`
}

func snapshot(job *domain.Job) jobSnapshot {
	return jobSnapshot{
		JobID:                job.ID,
		BrandID:              job.BrandID,
		Status:               string(job.Status),
		Prompt:               job.Prompt,
		OriginalPrompt:       job.OriginalPrompt,
		AttemptCount:         job.AttemptCount,
		MaxAttempts:          job.MaxAttempts,
		AuditHistory:         job.AuditHistory,
		CurrentImageURL:      job.CurrentImageURL,
		IsApproved:           job.IsApproved,
		OriginalHadLogos:     job.OriginalHadLogos,
		IsTweak:              job.IsTweak,
		UserTweakInstruction: job.TweakInstruction,
		SessionID:            job.SessionID,
		WebhookAttempts:      job.WebhookAttempts,
		StorageFallback:      job.StorageFallback,
		Error:                job.ErrorMessage,
		CreatedAt:            job.CreatedAt,
		UpdatedAt:            job.UpdatedAt,
		ExpiresAt:            job.ExpiresAt,
	}
}

// SubmitJob validates and enqueues an asset-generation job. Submissions
// carrying an idempotency key that was already used return the existing job
// instead of creating a new one.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.BrandID = strings.TrimSpace(req.BrandID)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.BrandID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "brand_id required")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}
	if req.WebhookURL != "" {
		if u, err := url.Parse(req.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "webhook_url must be absolute")
			return
		}
	}
	if _, err := a.Brands.GetByID(r.Context(), req.BrandID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "brand not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load brand")
		return
	}

	if req.IdempotencyKey != "" {
		if existing, err := a.Jobs.GetByIdempotencyKey(r.Context(), req.IdempotencyKey); err == nil {
			a.json(w, http.StatusOK, snapshot(existing))
			return
		}
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = a.Config.MaxGenerationAttempts
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:               uuid.NewString(),
		BrandID:          req.BrandID,
		Status:           domain.JobStatusPending,
		Prompt:           req.Prompt,
		OriginalPrompt:   req.Prompt,
		MaxAttempts:      maxAttempts,
		IsTweak:          req.IsTweak,
		TweakInstruction: req.UserTweakInstruction,
		SessionID:        req.SessionID,
		IdempotencyKey:   req.IdempotencyKey,
		WebhookURL:       req.WebhookURL,
		Locale:           middleware.LocaleFromContext(r.Context()),
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(a.Config.JobExpiryHours) * time.Hour),
	}

	// A tweak continues a prior refinement session: seed the new job with
	// the session's image and its frozen logo-continuity anchor so later
	// attempts inherit rather than recompute it.
	if req.IsTweak && req.SessionID != "" {
		if prior, err := a.Jobs.GetLatestBySession(r.Context(), req.SessionID); err == nil {
			job.CurrentImageURL = prior.CurrentImageURL
			job.OriginalHadLogos = prior.OriginalHadLogos
			job.LogosCaptured = prior.LogosCaptured
		}
	}

	if err := a.Jobs.Create(r.Context(), job); err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) && req.IdempotencyKey != "" {
			// Two identical submissions raced; hand back whichever won.
			if existing, lookupErr := a.Jobs.GetByIdempotencyKey(r.Context(), req.IdempotencyKey); lookupErr == nil {
				a.json(w, http.StatusOK, snapshot(existing))
				return
			}
		}
		a.Logger.Error().Err(err).Str("brand_id", req.BrandID).Msg("api: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	a.json(w, http.StatusAccepted, snapshot(job))
}

// GetJob returns a read-only snapshot of the job.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, snapshot(job))
}

// CancelJob requests cancellation; the engine applies it at its next
// checkpoint. Cancelling an already terminal job reports cancelled=false.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	cancelled, err := a.Jobs.RequestCancel(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// JobAssets lists the finalized assets of a job.
func (a *App) JobAssets(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	assets, err := a.Assets.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		items = append(items, map[string]any{
			"id":          asset.ID,
			"storage_key": asset.StorageKey,
			"url":         asset.URL,
			"mime":        asset.MIME,
			"bytes":       asset.Bytes,
			"attempt":     asset.Attempt,
			"score":       asset.Score,
			"created_at":  asset.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobAssetsZip streams the job's finalized assets as a zip archive.
func (a *App) JobAssetsZip(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	assets, err := a.Assets.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	var entries []zip.Asset
	for _, asset := range assets {
		data, err := a.Store.Read(r.Context(), asset.StorageKey)
		if err != nil || len(data) == 0 {
			continue
		}
		entries = append(entries, zip.Asset{
			Filename: fmt.Sprintf("%s-attempt-%d", jobID, asset.Attempt),
			MIME:     asset.MIME,
			Data:     data,
		})
	}
	archive := zip.ArchiveAssets(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
