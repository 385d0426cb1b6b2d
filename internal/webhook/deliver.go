package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"brandguard/internal/infra"
)

const (
	defaultMaxAttempts = 5
	callTimeout        = 10 * time.Second
)

// Payload is the JSON body POSTed to a caller's webhook URL on terminal job
// outcomes.
type Payload struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Deliverer notifies external callers of terminal job outcomes with
// exponential backoff. One Deliver call is one delivery cycle; the job's
// webhook counter is incremented once per cycle by the caller, regardless of
// how many retries the cycle needed.
type Deliverer struct {
	client      *http.Client
	maxAttempts int
	logger      infra.Logger

	// sleep is swappable so tests can observe the backoff schedule without
	// waiting it out.
	sleep func(time.Duration)
}

// NewDeliverer constructs a Deliverer. maxAttempts <= 0 selects the default
// of 5 attempts per cycle.
func NewDeliverer(maxAttempts int, logger infra.Logger) *Deliverer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Deliverer{
		client:      &http.Client{Timeout: callTimeout},
		maxAttempts: maxAttempts,
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// backoffDelay returns the wait before attempt n: zero for the first
// attempt, then 2s, 4s, 8s, 16s, doubling each retry.
func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return time.Duration(1<<(attempt-1)) * time.Second
}

// Deliver runs one delivery cycle against url. It returns true once any
// attempt receives a 2xx response. Transport errors and non-2xx statuses are
// both retriable; after the attempt budget is spent the cycle is abandoned
// and logged, never escalated to the job's status.
func (d *Deliverer) Deliver(ctx context.Context, url string, payload Payload) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error().Err(err).Str("job_id", payload.JobID).Msg("webhook: encode payload failed")
		return false
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if wait := backoffDelay(attempt); wait > 0 {
			d.sleep(wait)
		}
		if err := ctx.Err(); err != nil {
			d.logger.Warn().Err(err).Str("job_id", payload.JobID).Msg("webhook: delivery cancelled")
			return false
		}
		if err := d.post(ctx, url, body); err != nil {
			d.logger.Warn().
				Err(err).
				Str("job_id", payload.JobID).
				Int("attempt", attempt).
				Msg("webhook: delivery attempt failed")
			continue
		}
		d.logger.Info().
			Str("job_id", payload.JobID).
			Int("attempt", attempt).
			Msg("webhook: delivered")
		return true
	}

	d.logger.Error().
		Str("job_id", payload.JobID).
		Int("attempts", d.maxAttempts).
		Msg("webhook: delivery abandoned")
	return false
}

func (d *Deliverer) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
