// Package models contains the domain models shared across repositories,
// services, and the HTTP layer.
package models

import (
	"encoding/json"
	"time"
)

// FieldType enumerates the value types a schema field may declare.
type FieldType string

const (
	FieldTypeString      FieldType = "string"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeEnum        FieldType = "enum"
	FieldTypeStringArray FieldType = "string[]"
)

// ValidFieldType reports whether t is one of the supported field types.
func ValidFieldType(t FieldType) bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeEnum, FieldTypeStringArray:
		return true
	}
	return false
}

// FieldDefinition describes a single field the extraction pipeline should
// populate. Definitions live inside an immutable schema version.
type FieldDefinition struct {
	Key                 string    `json:"key"`
	Label               string    `json:"label"`
	Type                FieldType `json:"type"`
	Required            bool      `json:"required,omitempty"`
	Instructions        string    `json:"instructions,omitempty"`
	Options             []string  `json:"options,omitempty"`
	Regex               string    `json:"regex,omitempty"`
	MinLen              *int      `json:"min_len,omitempty"`
	MaxLen              *int      `json:"max_len,omitempty"`
	SourceHints         []string  `json:"source_hints,omitempty"`
	ConfidenceThreshold *float64  `json:"confidence_threshold,omitempty"`
}

// Schema is a tenant-scoped, named container for versioned field definitions.
type Schema struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SchemaVersion is an immutable snapshot of a schema's field definitions.
// Versions are append-only; the latest version has the highest number.
type SchemaVersion struct {
	ID        string            `json:"id"`
	SchemaID  string            `json:"schema_id"`
	Version   int               `json:"version"`
	Fields    []FieldDefinition `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

// FieldByKey returns the definition for key, or nil.
func (v *SchemaVersion) FieldByKey(key string) *FieldDefinition {
	for i := range v.Fields {
		if v.Fields[i].Key == key {
			return &v.Fields[i]
		}
	}
	return nil
}

// SubmissionStatus tracks a submission through its lifecycle.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusRunning   SubmissionStatus = "running"
	SubmissionStatusDraft     SubmissionStatus = "draft"
	SubmissionStatusFailed    SubmissionStatus = "failed"
	SubmissionStatusConfirmed SubmissionStatus = "confirmed"
)

// FieldValueStatus describes how much trust a synthesized field value carries.
type FieldValueStatus string

const (
	FieldValueStatusAuto        FieldValueStatus = "auto"
	FieldValueStatusNeedsReview FieldValueStatus = "needs_review"
	FieldValueStatusEdited      FieldValueStatus = "edited"
	FieldValueStatusUnknown     FieldValueStatus = "unknown"
)

// Citation points at the exact evidence a field value was derived from. The
// source URL must be one of the submission's crawled pages.
type Citation struct {
	SourceURL   string    `json:"source_url"`
	Snippet     string    `json:"snippet"`
	PageTitle   string    `json:"page_title,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Confidence  float64   `json:"confidence"`
}

// ExtractedFieldValue is one synthesized field on a submission record.
type ExtractedFieldValue struct {
	Key        string           `json:"key"`
	Value      any              `json:"value"`
	Status     FieldValueStatus `json:"status"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason,omitempty"`
	Citations  []Citation       `json:"citations,omitempty"`
}

// Submission is one run of the pipeline against a submitted URL.
type Submission struct {
	ID              string                `json:"id"`
	TenantID        string                `json:"tenant_id"`
	SchemaID        string                `json:"schema_id"`
	SchemaVersion   int                   `json:"schema_version"`
	SubmittedURL    string                `json:"submitted_url"`
	NormalizedURL   string                `json:"normalized_url"`
	Origin          string                `json:"origin"`
	Status          SubmissionStatus      `json:"status"`
	Fields          []ExtractedFieldValue `json:"fields,omitempty"`
	CrawledPages    []string              `json:"crawled_pages,omitempty"`
	SkippedPages    []SkippedPage         `json:"skipped_pages,omitempty"`
	ArtifactKeys    []string              `json:"artifact_keys,omitempty"`
	FailureReason   string                `json:"failure_reason,omitempty"`
	ConfirmedAt     *time.Time            `json:"confirmed_at,omitempty"`
	ConfirmedBy     string                `json:"confirmed_by,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// SkippedPage records a discovered URL the fetcher declined, with the reason.
type SkippedPage struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// FieldByKey returns the extracted value for key, or nil.
func (s *Submission) FieldByKey(key string) *ExtractedFieldValue {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			return &s.Fields[i]
		}
	}
	return nil
}

// CrawlArtifact records one crawled page and where its evidence is stored.
type CrawlArtifact struct {
	ID                  string    `json:"id"`
	SubmissionID        string    `json:"submission_id"`
	URL                 string    `json:"url"`
	StatusCode          int       `json:"status_code"`
	ContentType         string    `json:"content_type"`
	FetchedAt           time.Time `json:"fetched_at"`
	RawHTMLKey          string    `json:"raw_html_key"`
	ExtractedContentKey string    `json:"extracted_content_key"`
	PageType            string    `json:"page_type,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Webhook is a registered HTTPS subscriber endpoint.
type Webhook struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	SecretEncrypted string    `json:"-"`
	Events          []string  `json:"events"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SubscribedTo reports whether the webhook wants the given event.
func (w *Webhook) SubscribedTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookDeliveryStatus tracks a single delivery attempt chain.
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusSuccess WebhookDeliveryStatus = "success"
	WebhookDeliveryStatusFailed  WebhookDeliveryStatus = "failed"
)

// WebhookDelivery is one event payload bound for one webhook, retried with
// backoff until it succeeds or exhausts its attempts.
type WebhookDelivery struct {
	ID           string                `json:"id"`
	WebhookID    string                `json:"webhook_id"`
	TenantID     string                `json:"tenant_id"`
	SubmissionID string                `json:"submission_id"`
	EventType    string                `json:"event_type"`
	Payload      json.RawMessage       `json:"payload"`
	Status       WebhookDeliveryStatus `json:"status"`
	Attempts     int                   `json:"attempts"`
	MaxAttempts  int                   `json:"max_attempts"`
	LastError    string                `json:"last_error,omitempty"`
	LastStatus   int                   `json:"last_status_code,omitempty"`
	NextRetryAt  *time.Time            `json:"next_retry_at,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// PublishableKey is a revocable API key surfaced to tenant integrations.
// Only the SHA-256 hash is stored; the key itself is disclosed once.
type PublishableKey struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Audit event types. The set is closed; repositories reject anything else.
const (
	AuditSchemaCreated            = "schema.created"
	AuditSchemaVersionCreated     = "schema.version_created"
	AuditSchemaDeleted            = "schema.deleted"
	AuditSubmissionCreated        = "submission.created"
	AuditSubmissionConfirmed      = "submission.confirmed"
	AuditSubmissionFieldEdited    = "submission.field_edited"
	AuditSubmissionRetried        = "submission.retried"
	AuditWebhookRegistered        = "webhook.registered"
	AuditWebhookDeliverySucceeded = "webhook.delivery_succeeded"
	AuditWebhookDeliveryFailed    = "webhook.delivery_failed"
	AuditPublishableKeyCreated    = "publishable_key.created"
	AuditPublishableKeyRevoked    = "publishable_key.revoked"
)

// AuditEventTypes lists every event type the audit log accepts.
var AuditEventTypes = map[string]bool{
	AuditSchemaCreated:            true,
	AuditSchemaVersionCreated:     true,
	AuditSchemaDeleted:            true,
	AuditSubmissionCreated:        true,
	AuditSubmissionConfirmed:      true,
	AuditSubmissionFieldEdited:    true,
	AuditSubmissionRetried:        true,
	AuditWebhookRegistered:        true,
	AuditWebhookDeliverySucceeded: true,
	AuditWebhookDeliveryFailed:    true,
	AuditPublishableKeyCreated:    true,
	AuditPublishableKeyRevoked:    true,
}

// AuditEvent is one append-only audit record.
type AuditEvent struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	ActorID      string          `json:"actor_id,omitempty"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
