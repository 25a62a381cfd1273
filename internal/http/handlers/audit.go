package handlers

import (
	"context"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/service"
)

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListAuditEventsInput represents the list audit events request.
type ListAuditEventsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum results"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Results to skip"`
}

// ListAuditEventsOutput represents the list audit events response.
type ListAuditEventsOutput struct {
	Body struct {
		Events []*models.AuditEvent `json:"events" doc:"Audit events, newest first"`
	}
}

// ListAuditEvents returns the tenant's audit trail.
func (h *AuditHandler) ListAuditEvents(ctx context.Context, input *ListAuditEventsInput) (*ListAuditEventsOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	events, err := h.audit.List(ctx, id.TenantID, input.Limit, input.Offset)
	if err != nil {
		return nil, serviceError(err, "list audit events")
	}

	out := &ListAuditEventsOutput{}
	out.Body.Events = events
	return out, nil
}
