// Package repository defines repository interfaces for data access.
// Tenant identity is enforced outside this service; tenant_id values are
// opaque strings supplied by the caller.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SchemaRepository defines methods for schema and schema-version data access.
// Versions are immutable and append-only; the highest version is "latest".
type SchemaRepository interface {
	Create(ctx context.Context, schema *models.Schema) error
	GetByID(ctx context.Context, id string) (*models.Schema, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*models.Schema, error)
	Delete(ctx context.Context, id string) error

	CreateVersion(ctx context.Context, version *models.SchemaVersion) error
	GetVersion(ctx context.Context, schemaID string, version int) (*models.SchemaVersion, error)
	GetLatestVersion(ctx context.Context, schemaID string) (*models.SchemaVersion, error)
	GetVersions(ctx context.Context, schemaID string) ([]*models.SchemaVersion, error)
}

// SubmissionRepository defines methods for submission data access.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	GetByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]*models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error
	// UpdateStatus transitions status only when the row still holds
	// expectedStatus; returns false when another worker won the race.
	UpdateStatus(ctx context.Context, id string, expectedStatus, newStatus models.SubmissionStatus) (bool, error)
	// ClaimPending atomically claims the oldest pending submission and moves
	// it to running. Returns nil when nothing is pending.
	ClaimPending(ctx context.Context) (*models.Submission, error)
}

// CrawlArtifactRepository defines methods for crawl artifact metadata.
type CrawlArtifactRepository interface {
	Create(ctx context.Context, artifact *models.CrawlArtifact) error
	GetBySubmissionID(ctx context.Context, submissionID string) ([]*models.CrawlArtifact, error)
	DeleteBySubmissionID(ctx context.Context, submissionID string) error
}

// WebhookRepository defines methods for webhook data access.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*models.Webhook, error)
	GetActiveByTenantID(ctx context.Context, tenantID string) ([]*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, id string) error
}

// WebhookDeliveryRepository defines methods for webhook delivery tracking.
// Delivery rows are the only cross-run shared mutable state; every status
// transition goes through a conditional update guarded by (id, status).
type WebhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *models.WebhookDelivery) error
	GetByID(ctx context.Context, id string) (*models.WebhookDelivery, error)
	GetBySubmissionID(ctx context.Context, submissionID string) ([]*models.WebhookDelivery, error)
	GetByWebhookID(ctx context.Context, webhookID string, limit, offset int) ([]*models.WebhookDelivery, error)
	// GetDue returns pending deliveries whose next_retry_at is unset or past.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error)
	// UpdateIfStatus applies the delivery's current fields only when the row
	// still holds expectedStatus; returns false when it does not.
	UpdateIfStatus(ctx context.Context, delivery *models.WebhookDelivery, expectedStatus models.WebhookDeliveryStatus) (bool, error)
}

// AuditRepository defines methods for the append-only audit log.
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
	GetByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditEvent, error)
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*models.AuditEvent, error)
}

// PublishableKeyRepository defines methods for publishable key data access.
type PublishableKeyRepository interface {
	Create(ctx context.Context, key *models.PublishableKey) error
	GetByID(ctx context.Context, id string) (*models.PublishableKey, error)
	GetByKeyHash(ctx context.Context, hash string) (*models.PublishableKey, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*models.PublishableKey, error)
	UpdateLastUsed(ctx context.Context, id string, lastUsed time.Time) error
	Revoke(ctx context.Context, id string) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Schema          SchemaRepository
	Submission      SubmissionRepository
	CrawlArtifact   CrawlArtifactRepository
	Webhook         WebhookRepository
	WebhookDelivery WebhookDeliveryRepository
	Audit           AuditRepository
	PublishableKey  PublishableKeyRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Schema:          NewSQLiteSchemaRepository(db),
		Submission:      NewSQLiteSubmissionRepository(db),
		CrawlArtifact:   NewSQLiteCrawlArtifactRepository(db),
		Webhook:         NewSQLiteWebhookRepository(db),
		WebhookDelivery: NewSQLiteWebhookDeliveryRepository(db),
		Audit:           NewSQLiteAuditRepository(db),
		PublishableKey:  NewSQLitePublishableKeyRepository(db),
	}
}
