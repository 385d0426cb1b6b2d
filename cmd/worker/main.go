package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"brandguard/internal/adapter/repo"
	"brandguard/internal/domain"
	"brandguard/internal/engine"
	"brandguard/internal/infra"
	auditprovider "brandguard/internal/providers/audit"
	"brandguard/internal/providers/genai"
	imageprovider "brandguard/internal/providers/image"
	"brandguard/internal/storage"
	"brandguard/internal/webhook"
)

const (
	jobPollInterval   = 2 * time.Second
	expiresSweepEvery = 5 * time.Minute
)

type jobWorker struct {
	jobs        domain.JobRepository
	runner      *engine.Runner
	logger      infra.Logger
	concurrency int
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: cfg.StepTimeout}
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Str("model", geminiClient.Model()).Msg("worker: gemini api key missing, using synthetic generation and audits")
	}

	jobs := repo.NewJobRepository(pool)
	runner := engine.NewRunner(
		jobs,
		repo.NewBrandRepository(pool),
		repo.NewAssetRepository(pool),
		imageprovider.NewGeminiGenerator(geminiClient),
		auditprovider.NewGeminiAuditor(geminiClient),
		fileStore,
		webhook.NewDeliverer(cfg.WebhookRetryMax, logger),
		logger,
		engine.Config{
			ComplianceThreshold: cfg.ComplianceThreshold,
			StepTimeout:         cfg.StepTimeout,
		},
	)

	worker := &jobWorker{
		jobs:        jobs,
		runner:      runner,
		logger:      logger,
		concurrency: cfg.WorkerConcurrency,
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run claims pending jobs and drives each through the engine. Claims use the
// repository's SKIP LOCKED query, so any number of worker processes can run
// side by side without sharing a job.
func (w *jobWorker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.concurrency).Msg("worker: started")

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	lastSweep := time.Now()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		if time.Since(lastSweep) >= expiresSweepEvery {
			w.sweepExpired(ctx)
			lastSweep = time.Now()
		}

		job, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
			}
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case <-time.After(jobPollInterval):
			}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			w.handleJob(ctx, job)
		}(job)
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job *domain.Job) {
	w.logger.Info().Str("job_id", job.ID).Str("brand_id", job.BrandID).Msg("worker: picked job")
	if err := w.runner.Run(ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: job run failed")
		return
	}
	w.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("worker: job finished")
}

func (w *jobWorker) sweepExpired(ctx context.Context) {
	swept, err := w.jobs.FailExpired(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error().Err(err).Msg("worker: expiry sweep failed")
		return
	}
	if swept > 0 {
		w.logger.Info().Int64("jobs", swept).Msg("worker: expired jobs failed")
	}
}
