package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLiteWebhookDeliveryRepository implements WebhookDeliveryRepository for
// SQLite/libsql.
type SQLiteWebhookDeliveryRepository struct {
	db *sql.DB
}

// NewSQLiteWebhookDeliveryRepository creates a new SQLite webhook delivery repository.
func NewSQLiteWebhookDeliveryRepository(db *sql.DB) *SQLiteWebhookDeliveryRepository {
	return &SQLiteWebhookDeliveryRepository{db: db}
}

const deliveryColumns = `id, webhook_id, tenant_id, submission_id, event_type, payload,
	status, attempts, max_attempts, last_error, last_status_code,
	next_retry_at, completed_at, created_at, updated_at`

// Create creates a new delivery record.
func (r *SQLiteWebhookDeliveryRepository) Create(ctx context.Context, delivery *models.WebhookDelivery) error {
	now := time.Now().UTC()
	if delivery.ID == "" {
		delivery.ID = ulid.Make().String()
	}
	if delivery.Status == "" {
		delivery.Status = models.WebhookDeliveryStatusPending
	}
	delivery.CreatedAt = now
	delivery.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (`+deliveryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		delivery.ID, delivery.WebhookID, delivery.TenantID, delivery.SubmissionID,
		delivery.EventType, string(delivery.Payload), string(delivery.Status),
		delivery.Attempts, delivery.MaxAttempts,
		nullIfEmpty(delivery.LastError), nullIfZero(delivery.LastStatus),
		nullTime(delivery.NextRetryAt), nullTime(delivery.CompletedAt),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	return err
}

// GetByID retrieves a delivery by ID.
func (r *SQLiteWebhookDeliveryRepository) GetByID(ctx context.Context, id string) (*models.WebhookDelivery, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE id = ?
	`, id)

	d, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// GetBySubmissionID retrieves all deliveries for a submission, newest first.
func (r *SQLiteWebhookDeliveryRepository) GetBySubmissionID(ctx context.Context, submissionID string) ([]*models.WebhookDelivery, error) {
	return r.queryDeliveries(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE submission_id = ?
		ORDER BY created_at DESC
	`, submissionID)
}

// GetByWebhookID retrieves deliveries for a webhook, newest first.
func (r *SQLiteWebhookDeliveryRepository) GetByWebhookID(ctx context.Context, webhookID string, limit, offset int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryDeliveries(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE webhook_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, webhookID, limit, offset)
}

// GetDue returns pending deliveries whose retry time is unset or has passed,
// oldest first.
func (r *SQLiteWebhookDeliveryRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryDeliveries(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
	`, now.UTC().Format(time.RFC3339), limit)
}

// UpdateIfStatus applies the delivery's mutable fields only when the row
// still holds expectedStatus.
func (r *SQLiteWebhookDeliveryRepository) UpdateIfStatus(ctx context.Context, delivery *models.WebhookDelivery, expectedStatus models.WebhookDeliveryStatus) (bool, error) {
	delivery.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = ?, attempts = ?, last_error = ?, last_status_code = ?,
			next_retry_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		string(delivery.Status), delivery.Attempts,
		nullIfEmpty(delivery.LastError), nullIfZero(delivery.LastStatus),
		nullTime(delivery.NextRetryAt), nullTime(delivery.CompletedAt),
		delivery.UpdatedAt.Format(time.RFC3339),
		delivery.ID, string(expectedStatus),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteWebhookDeliveryRepository) queryDeliveries(ctx context.Context, query string, args ...any) ([]*models.WebhookDelivery, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(row rowScanner) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var payload, status string
	var lastError, nextRetryAt, completedAt sql.NullString
	var lastStatus sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(
		&d.ID, &d.WebhookID, &d.TenantID, &d.SubmissionID,
		&d.EventType, &payload, &status, &d.Attempts, &d.MaxAttempts,
		&lastError, &lastStatus, &nextRetryAt, &completedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Payload = []byte(payload)
	d.Status = models.WebhookDeliveryStatus(status)
	d.LastError = lastError.String
	d.LastStatus = int(lastStatus.Int64)
	if nextRetryAt.Valid {
		t, _ := time.Parse(time.RFC3339, nextRetryAt.String)
		d.NextRetryAt = &t
	}
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		d.CompletedAt = &t
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &d, nil
}

func nullIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
