// Package worker runs the background loops: claiming pending submissions
// for the pipeline and retrying due webhook deliveries.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldset/fieldset-api/internal/logging"
	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
	"github.com/fieldset/fieldset-api/internal/service"
)

// Worker processes pending submissions and due webhook deliveries.
type Worker struct {
	submissionRepo repository.SubmissionRepository
	deliveryRepo   repository.WebhookDeliveryRepository
	pipeline       *service.PipelineService
	webhookSvc     *service.WebhookService
	pollInterval   time.Duration
	concurrency    int
	deliveryBatch  int
	stop           chan struct{}
	wg             sync.WaitGroup
	logger         *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval  time.Duration
	Concurrency   int
	DeliveryBatch int
}

// New creates a new worker.
func New(
	repos *repository.Repositories,
	pipeline *service.PipelineService,
	webhookSvc *service.WebhookService,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.DeliveryBatch == 0 {
		cfg.DeliveryBatch = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		submissionRepo: repos.Submission,
		deliveryRepo:   repos.WebhookDelivery,
		pipeline:       pipeline,
		webhookSvc:     webhookSvc,
		pollInterval:   cfg.PollInterval,
		concurrency:    cfg.Concurrency,
		deliveryBatch:  cfg.DeliveryBatch,
		stop:           make(chan struct{}),
		logger:         logger.With("component", "worker"),
	}
}

// Start launches the pipeline workers and the delivery loop.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runPipelineWorker(ctx, i)
	}

	w.wg.Add(1)
	go w.runDeliveryLoop(ctx)
}

// Stop gracefully stops the worker, waiting for in-flight work.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) runPipelineWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNextSubmission(ctx, workerID)
		}
	}
}

func (w *Worker) processNextSubmission(ctx context.Context, workerID int) {
	submission, err := w.submissionRepo.ClaimPending(ctx)
	if err != nil {
		w.logger.Error("failed to claim submission", "worker_id", workerID, "error", err)
		return
	}
	if submission == nil {
		return
	}

	ctx = logging.WithSubmissionID(ctx, submission.ID)
	ctx = logging.WithTenantID(ctx, submission.TenantID)
	logger := logging.FromContext(ctx, w.logger)

	logger.Info("processing submission", "worker_id", workerID, "url", submission.SubmittedURL)

	if err := w.pipeline.Run(ctx, submission); err != nil {
		logger.Error("pipeline run failed", "error", err)
		w.failSubmission(ctx, submission, err.Error())
	}
}

// failSubmission is the last-resort path when the pipeline itself errored
// (storage or database trouble) rather than marking the submission failed.
func (w *Worker) failSubmission(ctx context.Context, submission *models.Submission, reason string) {
	if submission.Status == models.SubmissionStatusFailed {
		return
	}
	submission.Status = models.SubmissionStatusFailed
	submission.FailureReason = reason
	if err := w.submissionRepo.Update(ctx, submission); err != nil {
		w.logger.Error("failed to mark submission failed", "submission_id", submission.ID, "error", err)
	}
}

func (w *Worker) runDeliveryLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processDueDeliveries(ctx)
		}
	}
}

func (w *Worker) processDueDeliveries(ctx context.Context) {
	due, err := w.deliveryRepo.GetDue(ctx, time.Now().UTC(), w.deliveryBatch)
	if err != nil {
		w.logger.Error("failed to query due deliveries", "error", err)
		return
	}

	for _, delivery := range due {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		w.webhookSvc.Deliver(ctx, delivery)
	}
}
