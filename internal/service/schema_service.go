package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
)

var fieldKeyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

const maxFieldKeyLen = 100

// SchemaService manages tenant schemas and their immutable versions.
type SchemaService struct {
	repos  *repository.Repositories
	audit  *AuditService
	logger *slog.Logger
}

// NewSchemaService creates a new schema service.
func NewSchemaService(repos *repository.Repositories, audit *AuditService, logger *slog.Logger) *SchemaService {
	return &SchemaService{
		repos:  repos,
		audit:  audit,
		logger: logger.With("component", "schema"),
	}
}

// Create creates a schema with its first version.
func (s *SchemaService) Create(ctx context.Context, tenantID, actorID, name string, fields []models.FieldDefinition) (*models.Schema, *models.SchemaVersion, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("schema name is required")
	}
	if err := ValidateFields(fields); err != nil {
		return nil, nil, err
	}

	schema := &models.Schema{TenantID: tenantID, Name: name}
	if err := s.repos.Schema.Create(ctx, schema); err != nil {
		return nil, nil, fmt.Errorf("failed to create schema: %w", err)
	}

	version := &models.SchemaVersion{SchemaID: schema.ID, Version: 1, Fields: fields}
	if err := s.repos.Schema.CreateVersion(ctx, version); err != nil {
		return nil, nil, fmt.Errorf("failed to create schema version: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditSchemaCreated, "schema", schema.ID, map[string]any{
		"name": name, "field_count": len(fields),
	})
	s.logger.Info("created schema", "id", schema.ID, "tenant_id", tenantID, "fields", len(fields))

	return schema, version, nil
}

// CreateVersion appends a new version with the given fields. Existing
// versions are never modified.
func (s *SchemaService) CreateVersion(ctx context.Context, tenantID, actorID, schemaID string, fields []models.FieldDefinition) (*models.SchemaVersion, error) {
	schema, err := s.getOwned(ctx, tenantID, schemaID)
	if err != nil {
		return nil, err
	}
	if err := ValidateFields(fields); err != nil {
		return nil, err
	}

	latest, err := s.repos.Schema.GetLatestVersion(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	next := 1
	if latest != nil {
		next = latest.Version + 1
	}

	version := &models.SchemaVersion{SchemaID: schema.ID, Version: next, Fields: fields}
	if err := s.repos.Schema.CreateVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create schema version: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditSchemaVersionCreated, "schema", schema.ID, map[string]any{
		"version": next,
	})

	return version, nil
}

// Get returns a schema with its latest version.
func (s *SchemaService) Get(ctx context.Context, tenantID, schemaID string) (*models.Schema, *models.SchemaVersion, error) {
	schema, err := s.getOwned(ctx, tenantID, schemaID)
	if err != nil {
		return nil, nil, err
	}
	latest, err := s.repos.Schema.GetLatestVersion(ctx, schemaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return schema, latest, nil
}

// GetVersion returns a specific schema version.
func (s *SchemaService) GetVersion(ctx context.Context, tenantID, schemaID string, version int) (*models.SchemaVersion, error) {
	if _, err := s.getOwned(ctx, tenantID, schemaID); err != nil {
		return nil, err
	}
	v, err := s.repos.Schema.GetVersion(ctx, schemaID, version)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// List returns all schemas for a tenant.
func (s *SchemaService) List(ctx context.Context, tenantID string) ([]*models.Schema, error) {
	return s.repos.Schema.GetByTenantID(ctx, tenantID)
}

// ListVersions returns all versions of a schema, newest first.
func (s *SchemaService) ListVersions(ctx context.Context, tenantID, schemaID string) ([]*models.SchemaVersion, error) {
	if _, err := s.getOwned(ctx, tenantID, schemaID); err != nil {
		return nil, err
	}
	return s.repos.Schema.GetVersions(ctx, schemaID)
}

// Delete removes a schema and all its versions.
func (s *SchemaService) Delete(ctx context.Context, tenantID, actorID, schemaID string) error {
	schema, err := s.getOwned(ctx, tenantID, schemaID)
	if err != nil {
		return err
	}
	if err := s.repos.Schema.Delete(ctx, schemaID); err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}
	s.audit.Record(ctx, tenantID, actorID, models.AuditSchemaDeleted, "schema", schemaID, map[string]any{
		"name": schema.Name,
	})
	return nil
}

func (s *SchemaService) getOwned(ctx context.Context, tenantID, schemaID string) (*models.Schema, error) {
	schema, err := s.repos.Schema.GetByID(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	if schema == nil || schema.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return schema, nil
}

// ValidateFields checks a field definition list for structural problems.
func ValidateFields(fields []models.FieldDefinition) error {
	if len(fields) == 0 {
		return fmt.Errorf("schema must define at least one field")
	}

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Key == "" {
			return fmt.Errorf("field %d: key is required", i)
		}
		if len(f.Key) > maxFieldKeyLen {
			return fmt.Errorf("field %q: key exceeds %d characters", f.Key, maxFieldKeyLen)
		}
		if !fieldKeyRe.MatchString(f.Key) {
			return fmt.Errorf("field %q: key must match [a-z0-9_]+", f.Key)
		}
		if seen[f.Key] {
			return fmt.Errorf("field %q: duplicate key", f.Key)
		}
		seen[f.Key] = true

		if !models.ValidFieldType(f.Type) {
			return fmt.Errorf("field %q: unknown type %q", f.Key, f.Type)
		}
		if f.Type == models.FieldTypeEnum && len(f.Options) == 0 {
			return fmt.Errorf("field %q: enum fields require options", f.Key)
		}
		if f.Regex != "" {
			if _, err := regexp.Compile(f.Regex); err != nil {
				return fmt.Errorf("field %q: invalid regex: %w", f.Key, err)
			}
		}
		if f.MinLen != nil && *f.MinLen < 0 {
			return fmt.Errorf("field %q: minLen must be non-negative", f.Key)
		}
		if f.MinLen != nil && f.MaxLen != nil && *f.MinLen > *f.MaxLen {
			return fmt.Errorf("field %q: minLen exceeds maxLen", f.Key)
		}
		if f.ConfidenceThreshold != nil && (*f.ConfidenceThreshold < 0 || *f.ConfidenceThreshold > 1) {
			return fmt.Errorf("field %q: confidence threshold must be in [0,1]", f.Key)
		}
	}
	return nil
}
