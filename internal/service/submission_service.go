package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
)

// SubmissionService manages the submission lifecycle around the pipeline:
// creation, review edits, confirmation, and retry.
type SubmissionService struct {
	repos   *repository.Repositories
	webhook *WebhookService
	audit   *AuditService
	logger  *slog.Logger
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(repos *repository.Repositories, webhook *WebhookService, audit *AuditService, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		repos:   repos,
		webhook: webhook,
		audit:   audit,
		logger:  logger.With("component", "submission"),
	}
}

// Create records a pending submission against a schema version. Version 0
// means latest. The pipeline worker picks it up asynchronously.
func (s *SubmissionService) Create(ctx context.Context, tenantID, actorID, schemaID string, schemaVersion int, rawURL string) (*models.Submission, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}

	schema, err := s.repos.Schema.GetByID(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	if schema == nil || schema.TenantID != tenantID {
		return nil, ErrNotFound
	}

	var version *models.SchemaVersion
	if schemaVersion > 0 {
		version, err = s.repos.Schema.GetVersion(ctx, schemaID, schemaVersion)
	} else {
		version, err = s.repos.Schema.GetLatestVersion(ctx, schemaID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == nil {
		return nil, fmt.Errorf("schema has no such version")
	}

	submission := &models.Submission{
		TenantID:      tenantID,
		SchemaID:      schemaID,
		SchemaVersion: version.Version,
		SubmittedURL:  rawURL,
		Status:        models.SubmissionStatusPending,
	}
	if err := s.repos.Submission.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditSubmissionCreated, "submission", submission.ID, map[string]any{
		"url": rawURL, "schema_id": schemaID, "schema_version": version.Version,
	})
	s.logger.Info("created submission", "id", submission.ID, "tenant_id", tenantID, "url", rawURL)

	return submission, nil
}

// Get returns a submission scoped to its tenant.
func (s *SubmissionService) Get(ctx context.Context, tenantID, id string) (*models.Submission, error) {
	return s.getOwned(ctx, tenantID, id)
}

// List returns a tenant's submissions, newest first.
func (s *SubmissionService) List(ctx context.Context, tenantID string, limit, offset int) ([]*models.Submission, error) {
	return s.repos.Submission.GetByTenantID(ctx, tenantID, limit, offset)
}

// ListArtifacts returns the crawl artifact metadata for a submission.
func (s *SubmissionService) ListArtifacts(ctx context.Context, tenantID, id string) ([]*models.CrawlArtifact, error) {
	if _, err := s.getOwned(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.repos.CrawlArtifact.GetBySubmissionID(ctx, id)
}

// EditField overrides one extracted value on a draft submission. The edit
// clears extraction provenance: status becomes edited, citations are kept
// for reference but confidence no longer applies.
func (s *SubmissionService) EditField(ctx context.Context, tenantID, actorID, id, fieldKey string, value any) (*models.Submission, error) {
	submission, err := s.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionStatusDraft {
		return nil, ErrInvalidState
	}

	field := submission.FieldByKey(fieldKey)
	if field == nil {
		return nil, fmt.Errorf("submission has no field %q", fieldKey)
	}

	field.Value = value
	field.Status = models.FieldValueStatusEdited
	field.Confidence = 1.0
	field.Reason = ""

	if err := s.repos.Submission.Update(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditSubmissionFieldEdited, "submission", id, map[string]any{
		"field": fieldKey,
	})

	return submission, nil
}

// Confirm finalizes a draft submission and enqueues webhook deliveries.
// Confirmation is terminal; the guarded transition makes double confirms
// fail cleanly.
func (s *SubmissionService) Confirm(ctx context.Context, tenantID, actorID, id string) (*models.Submission, error) {
	submission, err := s.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.repos.Submission.UpdateStatus(ctx, id, models.SubmissionStatusDraft, models.SubmissionStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm submission: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	now := time.Now().UTC()
	submission.Status = models.SubmissionStatusConfirmed
	submission.ConfirmedAt = &now
	submission.ConfirmedBy = actorID
	if err := s.repos.Submission.Update(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to record confirmation: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditSubmissionConfirmed, "submission", id, nil)

	if err := s.webhook.EnqueueForEvent(ctx, models.AuditSubmissionConfirmed, submission); err != nil {
		// The confirmation stands; deliveries that failed to enqueue are a
		// separate operational problem.
		s.logger.Error("failed to enqueue deliveries", "submission_id", id, "error", err)
	}

	s.logger.Info("confirmed submission", "id", id, "tenant_id", tenantID)
	return submission, nil
}

// Retry re-queues a failed submission for another pipeline run.
func (s *SubmissionService) Retry(ctx context.Context, tenantID, actorID, id string) (*models.Submission, error) {
	submission, err := s.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.repos.Submission.UpdateStatus(ctx, id, models.SubmissionStatusFailed, models.SubmissionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to retry submission: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	submission.Status = models.SubmissionStatusPending
	submission.FailureReason = ""
	if err := s.repos.Submission.Update(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to reset submission: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditSubmissionRetried, "submission", id, nil)
	return submission, nil
}

func (s *SubmissionService) getOwned(ctx context.Context, tenantID, id string) (*models.Submission, error) {
	submission, err := s.repos.Submission.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if submission == nil || submission.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return submission, nil
}
