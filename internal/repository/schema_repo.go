package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLiteSchemaRepository implements SchemaRepository for SQLite/libsql.
type SQLiteSchemaRepository struct {
	db *sql.DB
}

// NewSQLiteSchemaRepository creates a new SQLite schema repository.
func NewSQLiteSchemaRepository(db *sql.DB) *SQLiteSchemaRepository {
	return &SQLiteSchemaRepository{db: db}
}

// Create creates a new schema.
func (r *SQLiteSchemaRepository) Create(ctx context.Context, schema *models.Schema) error {
	now := time.Now().UTC()
	if schema.ID == "" {
		schema.ID = ulid.Make().String()
	}
	schema.CreatedAt = now
	schema.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schemas (id, tenant_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, schema.ID, schema.TenantID, schema.Name, now.Format(time.RFC3339), now.Format(time.RFC3339))

	return err
}

// GetByID retrieves a schema by ID.
func (r *SQLiteSchemaRepository) GetByID(ctx context.Context, id string) (*models.Schema, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM schemas
		WHERE id = ?
	`, id)

	var schema models.Schema
	var createdAt, updatedAt string
	err := row.Scan(&schema.ID, &schema.TenantID, &schema.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	schema.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	schema.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &schema, nil
}

// GetByTenantID retrieves all schemas for a tenant.
func (r *SQLiteSchemaRepository) GetByTenantID(ctx context.Context, tenantID string) ([]*models.Schema, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM schemas
		WHERE tenant_id = ?
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var schemas []*models.Schema
	for rows.Next() {
		var schema models.Schema
		var createdAt, updatedAt string
		if err := rows.Scan(&schema.ID, &schema.TenantID, &schema.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		schema.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		schema.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		schemas = append(schemas, &schema)
	}
	return schemas, rows.Err()
}

// Delete deletes a schema and, via cascade, its versions.
func (r *SQLiteSchemaRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schemas WHERE id = ?`, id)
	return err
}

// CreateVersion appends a new immutable schema version.
func (r *SQLiteSchemaRepository) CreateVersion(ctx context.Context, version *models.SchemaVersion) error {
	now := time.Now().UTC()
	if version.ID == "" {
		version.ID = ulid.Make().String()
	}
	version.CreatedAt = now

	fieldsJSON, err := json.Marshal(version.Fields)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schema_versions (id, schema_id, version, fields, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, version.ID, version.SchemaID, version.Version, string(fieldsJSON), now.Format(time.RFC3339))

	return err
}

// GetVersion retrieves a specific schema version.
func (r *SQLiteSchemaRepository) GetVersion(ctx context.Context, schemaID string, version int) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, schema_id, version, fields, created_at
		FROM schema_versions
		WHERE schema_id = ? AND version = ?
	`, schemaID, version)

	return r.scanVersion(row)
}

// GetLatestVersion retrieves the highest version of a schema.
func (r *SQLiteSchemaRepository) GetLatestVersion(ctx context.Context, schemaID string) (*models.SchemaVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, schema_id, version, fields, created_at
		FROM schema_versions
		WHERE schema_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, schemaID)

	return r.scanVersion(row)
}

// GetVersions retrieves all versions of a schema, newest first.
func (r *SQLiteSchemaRepository) GetVersions(ctx context.Context, schemaID string) ([]*models.SchemaVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schema_id, version, fields, created_at
		FROM schema_versions
		WHERE schema_id = ?
		ORDER BY version DESC
	`, schemaID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var versions []*models.SchemaVersion
	for rows.Next() {
		var v models.SchemaVersion
		var fieldsJSON, createdAt string
		if err := rows.Scan(&v.ID, &v.SchemaID, &v.Version, &fieldsJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &v.Fields); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

func (r *SQLiteSchemaRepository) scanVersion(row *sql.Row) (*models.SchemaVersion, error) {
	var v models.SchemaVersion
	var fieldsJSON, createdAt string

	err := row.Scan(&v.ID, &v.SchemaID, &v.Version, &fieldsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &v.Fields); err != nil {
		return nil, err
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}
