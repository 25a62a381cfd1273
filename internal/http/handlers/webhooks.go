package handlers

import (
	"context"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/service"
)

// WebhookHandler handles webhook management endpoints.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// RegisterWebhookInput represents the register webhook request.
type RegisterWebhookInput struct {
	Body struct {
		Name   string   `json:"name" minLength:"1" maxLength:"128" doc:"Webhook name"`
		URL    string   `json:"url" minLength:"1" doc:"HTTPS endpoint to deliver to"`
		Events []string `json:"events,omitempty" doc:"Event types to subscribe to; defaults to submission.confirmed"`
	}
}

// RegisterWebhookOutput represents the register webhook response. The
// signing secret appears here and nowhere else.
type RegisterWebhookOutput struct {
	Body struct {
		Webhook *models.Webhook `json:"webhook"`
		Secret  string          `json:"secret" doc:"Signing secret, disclosed only in this response"`
	}
}

// RegisterWebhook registers an HTTPS subscriber endpoint.
func (h *WebhookHandler) RegisterWebhook(ctx context.Context, input *RegisterWebhookInput) (*RegisterWebhookOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	result, err := h.webhooks.Register(ctx, id.TenantID, id.ActorID, input.Body.Name, input.Body.URL, input.Body.Events)
	if err != nil {
		return nil, serviceError(err, "register webhook")
	}

	out := &RegisterWebhookOutput{}
	out.Body.Webhook = result.Webhook
	out.Body.Secret = result.Secret
	return out, nil
}

// ListWebhooksOutput represents the list webhooks response.
type ListWebhooksOutput struct {
	Body struct {
		Webhooks []*models.Webhook `json:"webhooks" doc:"Tenant's webhooks"`
	}
}

// ListWebhooks returns all webhooks for the tenant.
func (h *WebhookHandler) ListWebhooks(ctx context.Context, input *struct{}) (*ListWebhooksOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	webhooks, err := h.webhooks.List(ctx, id.TenantID)
	if err != nil {
		return nil, serviceError(err, "list webhooks")
	}

	out := &ListWebhooksOutput{}
	out.Body.Webhooks = webhooks
	return out, nil
}

// SetWebhookActiveInput represents the activate/deactivate request.
type SetWebhookActiveInput struct {
	ID   string `path:"id" doc:"Webhook ID"`
	Body struct {
		Active bool `json:"active" doc:"Whether the webhook should receive deliveries"`
	}
}

// WebhookOutput wraps a single webhook.
type WebhookOutput struct {
	Body *models.Webhook
}

// SetWebhookActive enables or disables deliveries to a webhook.
func (h *WebhookHandler) SetWebhookActive(ctx context.Context, input *SetWebhookActiveInput) (*WebhookOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	webhook, err := h.webhooks.SetActive(ctx, id.TenantID, input.ID, input.Body.Active)
	if err != nil {
		return nil, serviceError(err, "update webhook")
	}

	return &WebhookOutput{Body: webhook}, nil
}

// DeleteWebhookInput represents the delete webhook request.
type DeleteWebhookInput struct {
	ID string `path:"id" doc:"Webhook ID"`
}

// DeleteWebhookOutput represents the delete webhook response.
type DeleteWebhookOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// DeleteWebhook removes a webhook and its delivery history.
func (h *WebhookHandler) DeleteWebhook(ctx context.Context, input *DeleteWebhookInput) (*DeleteWebhookOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.webhooks.Delete(ctx, id.TenantID, input.ID); err != nil {
		return nil, serviceError(err, "delete webhook")
	}

	out := &DeleteWebhookOutput{}
	out.Body.Success = true
	return out, nil
}

// ListDeliveriesInput represents the delivery history request.
type ListDeliveriesInput struct {
	ID     string `path:"id" doc:"Webhook ID"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Results to skip"`
}

// ListDeliveriesOutput represents the delivery history response.
type ListDeliveriesOutput struct {
	Body struct {
		Deliveries []*models.WebhookDelivery `json:"deliveries" doc:"Delivery attempts, newest first"`
	}
}

// ListDeliveries returns delivery history for a webhook.
func (h *WebhookHandler) ListDeliveries(ctx context.Context, input *ListDeliveriesInput) (*ListDeliveriesOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	deliveries, err := h.webhooks.ListDeliveries(ctx, id.TenantID, input.ID, input.Limit, input.Offset)
	if err != nil {
		return nil, serviceError(err, "list deliveries")
	}

	out := &ListDeliveriesOutput{}
	out.Body.Deliveries = deliveries
	return out, nil
}
