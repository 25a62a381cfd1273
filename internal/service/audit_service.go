package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
)

// AuditService appends events to the audit log. Audit failures are logged
// but never fail the operation that produced them.
type AuditService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(repos *repository.Repositories, logger *slog.Logger) *AuditService {
	return &AuditService{
		repos:  repos,
		logger: logger.With("component", "audit"),
	}
}

// Record appends one audit event. Details may be nil.
func (s *AuditService) Record(ctx context.Context, tenantID, actorID, eventType, resourceType, resourceID string, details any) {
	event := &models.AuditEvent{
		TenantID:     tenantID,
		ActorID:      actorID,
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("failed to marshal audit details", "event_type", eventType, "error", err)
		} else {
			event.Details = data
		}
	}

	if err := s.repos.Audit.Create(ctx, event); err != nil {
		s.logger.Warn("failed to record audit event",
			"event_type", eventType,
			"resource_id", resourceID,
			"error", err,
		)
	}
}

// List returns audit events for a tenant, newest first.
func (s *AuditService) List(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditEvent, error) {
	return s.repos.Audit.GetByTenantID(ctx, tenantID, limit, offset)
}
