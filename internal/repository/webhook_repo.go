package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLiteWebhookRepository implements WebhookRepository for SQLite/libsql.
type SQLiteWebhookRepository struct {
	db *sql.DB
}

// NewSQLiteWebhookRepository creates a new SQLite webhook repository.
func NewSQLiteWebhookRepository(db *sql.DB) *SQLiteWebhookRepository {
	return &SQLiteWebhookRepository{db: db}
}

// Create creates a new webhook.
func (r *SQLiteWebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	now := time.Now().UTC()
	if webhook.ID == "" {
		webhook.ID = ulid.Make().String()
	}
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, tenant_id, name, url, secret_encrypted, events, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, webhook.ID, webhook.TenantID, webhook.Name, webhook.URL, webhook.SecretEncrypted,
		string(eventsJSON), webhook.IsActive, now.Format(time.RFC3339), now.Format(time.RFC3339))

	return err
}

// GetByID retrieves a webhook by ID.
func (r *SQLiteWebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, url, secret_encrypted, events, is_active, created_at, updated_at
		FROM webhooks
		WHERE id = ?
	`, id)

	return r.scanWebhook(row)
}

// GetByTenantID retrieves all webhooks for a tenant.
func (r *SQLiteWebhookRepository) GetByTenantID(ctx context.Context, tenantID string) ([]*models.Webhook, error) {
	return r.queryWebhooks(ctx, `
		SELECT id, tenant_id, name, url, secret_encrypted, events, is_active, created_at, updated_at
		FROM webhooks
		WHERE tenant_id = ?
		ORDER BY name
	`, tenantID)
}

// GetActiveByTenantID retrieves all active webhooks for a tenant.
func (r *SQLiteWebhookRepository) GetActiveByTenantID(ctx context.Context, tenantID string) ([]*models.Webhook, error) {
	return r.queryWebhooks(ctx, `
		SELECT id, tenant_id, name, url, secret_encrypted, events, is_active, created_at, updated_at
		FROM webhooks
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY name
	`, tenantID)
}

// Update updates an existing webhook.
func (r *SQLiteWebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	webhook.UpdatedAt = time.Now().UTC()

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE webhooks
		SET name = ?, url = ?, secret_encrypted = ?, events = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, webhook.Name, webhook.URL, webhook.SecretEncrypted, string(eventsJSON),
		webhook.IsActive, webhook.UpdatedAt.Format(time.RFC3339), webhook.ID)

	return err
}

// Delete deletes a webhook by ID.
func (r *SQLiteWebhookRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

func (r *SQLiteWebhookRepository) queryWebhooks(ctx context.Context, query string, args ...any) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var webhooks []*models.Webhook
	for rows.Next() {
		var webhook models.Webhook
		var eventsJSON string
		var createdAt, updatedAt string
		if err := rows.Scan(
			&webhook.ID, &webhook.TenantID, &webhook.Name, &webhook.URL,
			&webhook.SecretEncrypted, &eventsJSON, &webhook.IsActive, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(eventsJSON), &webhook.Events); err != nil {
			return nil, err
		}
		webhook.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		webhook.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		webhooks = append(webhooks, &webhook)
	}
	return webhooks, rows.Err()
}

func (r *SQLiteWebhookRepository) scanWebhook(row *sql.Row) (*models.Webhook, error) {
	var webhook models.Webhook
	var eventsJSON string
	var createdAt, updatedAt string

	err := row.Scan(
		&webhook.ID, &webhook.TenantID, &webhook.Name, &webhook.URL,
		&webhook.SecretEncrypted, &eventsJSON, &webhook.IsActive, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventsJSON), &webhook.Events); err != nil {
		return nil, err
	}
	webhook.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	webhook.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &webhook, nil
}
