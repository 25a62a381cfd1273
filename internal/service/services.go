// Package service contains the business logic layer.
// Note: user management and authentication are handled upstream; tenant and
// actor IDs arrive as opaque strings on every call.
package service

import (
	"log/slog"

	"github.com/fieldset/fieldset-api/internal/artifact"
	"github.com/fieldset/fieldset-api/internal/config"
	"github.com/fieldset/fieldset-api/internal/crypto"
	"github.com/fieldset/fieldset-api/internal/extract"
	"github.com/fieldset/fieldset-api/internal/repository"
	"github.com/fieldset/fieldset-api/internal/safeurl"
)

// Services holds all service instances.
type Services struct {
	Schema         *SchemaService
	Submission     *SubmissionService
	Pipeline       *PipelineService
	Webhook        *WebhookService
	PublishableKey *PublishableKeyService
	Audit          *AuditService
}

// NewServices creates all services with their dependencies.
func NewServices(cfg *config.Config, repos *repository.Repositories, store artifact.Store, llm extract.LLMClient, logger *slog.Logger) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	validator := safeurl.New()
	audit := NewAuditService(repos, logger)
	webhook := NewWebhookService(cfg, repos, encryptor, validator, audit, logger)

	return &Services{
		Schema:         NewSchemaService(repos, audit, logger),
		Submission:     NewSubmissionService(repos, webhook, audit, logger),
		Pipeline:       NewPipelineService(cfg, repos, store, llm, validator, logger),
		Webhook:        webhook,
		PublishableKey: NewPublishableKeyService(repos, audit, logger),
		Audit:          audit,
	}, nil
}
