package handlers

import (
	"context"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/service"
)

// SubmissionHandler handles submission endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	webhooks    *service.WebhookService
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(submissions *service.SubmissionService, webhooks *service.WebhookService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, webhooks: webhooks}
}

// CreateSubmissionInput represents the create submission request.
type CreateSubmissionInput struct {
	Body struct {
		SchemaID      string `json:"schema_id" minLength:"1" doc:"Schema to extract against"`
		SchemaVersion int    `json:"schema_version,omitempty" minimum:"0" doc:"Schema version; omit for latest"`
		URL           string `json:"url" minLength:"1" doc:"Website URL to process"`
	}
}

// SubmissionOutput wraps a single submission.
type SubmissionOutput struct {
	Body *models.Submission
}

// CreateSubmission accepts a URL for processing. The pipeline runs
// asynchronously; poll the submission until it reaches draft or failed.
func (h *SubmissionHandler) CreateSubmission(ctx context.Context, input *CreateSubmissionInput) (*SubmissionOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := h.submissions.Create(ctx, id.TenantID, id.ActorID, input.Body.SchemaID, input.Body.SchemaVersion, input.Body.URL)
	if err != nil {
		return nil, serviceError(err, "create submission")
	}

	return &SubmissionOutput{Body: sub}, nil
}

// ListSubmissionsInput represents the list submissions request.
type ListSubmissionsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum results"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Results to skip"`
}

// ListSubmissionsOutput represents the list submissions response.
type ListSubmissionsOutput struct {
	Body struct {
		Submissions []*models.Submission `json:"submissions" doc:"Tenant's submissions, newest first"`
	}
}

// ListSubmissions returns the tenant's submissions.
func (h *SubmissionHandler) ListSubmissions(ctx context.Context, input *ListSubmissionsInput) (*ListSubmissionsOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	subs, err := h.submissions.List(ctx, id.TenantID, input.Limit, input.Offset)
	if err != nil {
		return nil, serviceError(err, "list submissions")
	}

	out := &ListSubmissionsOutput{}
	out.Body.Submissions = subs
	return out, nil
}

// GetSubmissionInput represents the get submission request.
type GetSubmissionInput struct {
	ID string `path:"id" doc:"Submission ID"`
}

// GetSubmission returns one submission with its extracted fields.
func (h *SubmissionHandler) GetSubmission(ctx context.Context, input *GetSubmissionInput) (*SubmissionOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := h.submissions.Get(ctx, id.TenantID, input.ID)
	if err != nil {
		return nil, serviceError(err, "get submission")
	}

	return &SubmissionOutput{Body: sub}, nil
}

// ListArtifactsInput represents the list artifacts request.
type ListArtifactsInput struct {
	ID string `path:"id" doc:"Submission ID"`
}

// ListArtifactsOutput represents the list artifacts response.
type ListArtifactsOutput struct {
	Body struct {
		Artifacts []*models.CrawlArtifact `json:"artifacts" doc:"Crawled pages and their stored evidence"`
	}
}

// ListArtifacts returns the crawl evidence for a submission.
func (h *SubmissionHandler) ListArtifacts(ctx context.Context, input *ListArtifactsInput) (*ListArtifactsOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	artifacts, err := h.submissions.ListArtifacts(ctx, id.TenantID, input.ID)
	if err != nil {
		return nil, serviceError(err, "list artifacts")
	}

	out := &ListArtifactsOutput{}
	out.Body.Artifacts = artifacts
	return out, nil
}

// EditFieldInput represents the field edit request.
type EditFieldInput struct {
	ID   string `path:"id" doc:"Submission ID"`
	Key  string `path:"key" doc:"Field key to edit"`
	Body struct {
		Value any `json:"value" doc:"Replacement value"`
	}
}

// EditField replaces one extracted field value on a draft submission.
func (h *SubmissionHandler) EditField(ctx context.Context, input *EditFieldInput) (*SubmissionOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := h.submissions.EditField(ctx, id.TenantID, id.ActorID, input.ID, input.Key, input.Body.Value)
	if err != nil {
		return nil, serviceError(err, "edit field")
	}

	return &SubmissionOutput{Body: sub}, nil
}

// ConfirmSubmissionInput represents the confirm request.
type ConfirmSubmissionInput struct {
	ID string `path:"id" doc:"Submission ID"`
}

// ConfirmSubmission marks a draft submission confirmed and enqueues
// webhook deliveries for it.
func (h *SubmissionHandler) ConfirmSubmission(ctx context.Context, input *ConfirmSubmissionInput) (*SubmissionOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := h.submissions.Confirm(ctx, id.TenantID, id.ActorID, input.ID)
	if err != nil {
		return nil, serviceError(err, "confirm submission")
	}

	return &SubmissionOutput{Body: sub}, nil
}

// RetrySubmissionInput represents the retry request.
type RetrySubmissionInput struct {
	ID string `path:"id" doc:"Submission ID"`
}

// RetrySubmission requeues a failed submission for another pipeline run.
func (h *SubmissionHandler) RetrySubmission(ctx context.Context, input *RetrySubmissionInput) (*SubmissionOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := h.submissions.Retry(ctx, id.TenantID, id.ActorID, input.ID)
	if err != nil {
		return nil, serviceError(err, "retry submission")
	}

	return &SubmissionOutput{Body: sub}, nil
}

// ListSubmissionDeliveriesInput represents the deliveries-by-submission request.
type ListSubmissionDeliveriesInput struct {
	ID string `path:"id" doc:"Submission ID"`
}

// ListSubmissionDeliveriesOutput represents the deliveries response.
type ListSubmissionDeliveriesOutput struct {
	Body struct {
		Deliveries []*models.WebhookDelivery `json:"deliveries" doc:"Delivery attempts for this submission, newest first"`
	}
}

// ListSubmissionDeliveries returns webhook delivery history for a submission.
func (h *SubmissionHandler) ListSubmissionDeliveries(ctx context.Context, input *ListSubmissionDeliveriesInput) (*ListSubmissionDeliveriesOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := h.submissions.Get(ctx, id.TenantID, input.ID); err != nil {
		return nil, serviceError(err, "get submission")
	}

	deliveries, err := h.webhooks.ListSubmissionDeliveries(ctx, id.TenantID, input.ID)
	if err != nil {
		return nil, serviceError(err, "list deliveries")
	}

	out := &ListSubmissionDeliveriesOutput{}
	out.Body.Deliveries = deliveries
	return out, nil
}
