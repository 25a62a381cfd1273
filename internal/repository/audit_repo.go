package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLiteAuditRepository implements AuditRepository for SQLite/libsql.
// The audit log is append-only; there are no update or delete methods.
type SQLiteAuditRepository struct {
	db *sql.DB
}

// NewSQLiteAuditRepository creates a new SQLite audit repository.
func NewSQLiteAuditRepository(db *sql.DB) *SQLiteAuditRepository {
	return &SQLiteAuditRepository{db: db}
}

// Create appends an audit event. Event types outside the known set are
// rejected.
func (r *SQLiteAuditRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	if !models.AuditEventTypes[event.EventType] {
		return fmt.Errorf("unknown audit event type: %s", event.EventType)
	}

	now := time.Now().UTC()
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	event.CreatedAt = now

	var details *string
	if len(event.Details) > 0 {
		s := string(event.Details)
		details = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, tenant_id, actor_id, event_type, resource_type,
			resource_id, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.TenantID, nullIfEmpty(event.ActorID), event.EventType,
		event.ResourceType, event.ResourceID, details,
		nullIfEmpty(event.IPAddress), nullIfEmpty(event.UserAgent),
		now.Format(time.RFC3339),
	)
	return err
}

// GetByTenantID retrieves audit events for a tenant, newest first.
func (r *SQLiteAuditRepository) GetByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryEvents(ctx, `
		SELECT id, tenant_id, actor_id, event_type, resource_type, resource_id,
			details, ip_address, user_agent, created_at
		FROM audit_events
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, tenantID, limit, offset)
}

// GetByResource retrieves audit events for a specific resource, newest first.
func (r *SQLiteAuditRepository) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*models.AuditEvent, error) {
	return r.queryEvents(ctx, `
		SELECT id, tenant_id, actor_id, event_type, resource_type, resource_id,
			details, ip_address, user_agent, created_at
		FROM audit_events
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY created_at DESC
	`, resourceType, resourceID)
}

func (r *SQLiteAuditRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*models.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var actorID, details, ipAddress, userAgent sql.NullString
		var createdAt string
		if err := rows.Scan(
			&e.ID, &e.TenantID, &actorID, &e.EventType, &e.ResourceType, &e.ResourceID,
			&details, &ipAddress, &userAgent, &createdAt,
		); err != nil {
			return nil, err
		}
		e.ActorID = actorID.String
		e.IPAddress = ipAddress.String
		e.UserAgent = userAgent.String
		if details.Valid {
			e.Details = []byte(details.String)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}
