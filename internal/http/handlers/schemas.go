package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/service"
)

// SchemaHandler handles schema endpoints.
type SchemaHandler struct {
	schemas *service.SchemaService
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(schemas *service.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemas: schemas}
}

// SchemaResponse represents a schema with its latest version.
type SchemaResponse struct {
	ID            string                   `json:"id" doc:"Schema ID"`
	Name          string                   `json:"name" doc:"Schema name"`
	LatestVersion int                      `json:"latest_version" doc:"Highest version number"`
	Fields        []models.FieldDefinition `json:"fields,omitempty" doc:"Field definitions of the latest version"`
	CreatedAt     string                   `json:"created_at"`
	UpdatedAt     string                   `json:"updated_at"`
}

// CreateSchemaInput represents the create schema request.
type CreateSchemaInput struct {
	Body struct {
		Name   string                   `json:"name" minLength:"1" maxLength:"128" doc:"Schema name"`
		Fields []models.FieldDefinition `json:"fields" minItems:"1" doc:"Field definitions for version 1"`
	}
}

// CreateSchemaOutput represents the create schema response.
type CreateSchemaOutput struct {
	Body SchemaResponse
}

// CreateSchema creates a schema with its first version.
func (h *SchemaHandler) CreateSchema(ctx context.Context, input *CreateSchemaInput) (*CreateSchemaOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	schema, version, err := h.schemas.Create(ctx, id.TenantID, id.ActorID, input.Body.Name, input.Body.Fields)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	return &CreateSchemaOutput{Body: schemaToResponse(schema, version)}, nil
}

// ListSchemasOutput represents the list schemas response.
type ListSchemasOutput struct {
	Body struct {
		Schemas []SchemaResponse `json:"schemas" doc:"Tenant's schemas"`
	}
}

// ListSchemas returns all schemas for the tenant.
func (h *SchemaHandler) ListSchemas(ctx context.Context, input *struct{}) (*ListSchemasOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	schemas, err := h.schemas.List(ctx, id.TenantID)
	if err != nil {
		return nil, serviceError(err, "list schemas")
	}

	out := &ListSchemasOutput{}
	out.Body.Schemas = make([]SchemaResponse, 0, len(schemas))
	for _, s := range schemas {
		out.Body.Schemas = append(out.Body.Schemas, schemaToResponse(s, nil))
	}
	return out, nil
}

// GetSchemaInput represents the get schema request.
type GetSchemaInput struct {
	ID string `path:"id" doc:"Schema ID"`
}

// GetSchemaOutput represents the get schema response.
type GetSchemaOutput struct {
	Body SchemaResponse
}

// GetSchema returns a schema with its latest version.
func (h *SchemaHandler) GetSchema(ctx context.Context, input *GetSchemaInput) (*GetSchemaOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	schema, latest, err := h.schemas.Get(ctx, id.TenantID, input.ID)
	if err != nil {
		return nil, serviceError(err, "get schema")
	}

	return &GetSchemaOutput{Body: schemaToResponse(schema, latest)}, nil
}

// CreateSchemaVersionInput represents the create version request.
type CreateSchemaVersionInput struct {
	ID   string `path:"id" doc:"Schema ID"`
	Body struct {
		Fields []models.FieldDefinition `json:"fields" minItems:"1" doc:"Field definitions for the new version"`
	}
}

// SchemaVersionResponse represents one schema version.
type SchemaVersionResponse struct {
	Version   int                      `json:"version" doc:"Version number"`
	Fields    []models.FieldDefinition `json:"fields" doc:"Field definitions"`
	CreatedAt string                   `json:"created_at"`
}

// CreateSchemaVersionOutput represents the create version response.
type CreateSchemaVersionOutput struct {
	Body SchemaVersionResponse
}

// CreateSchemaVersion appends a new immutable version.
func (h *SchemaHandler) CreateSchemaVersion(ctx context.Context, input *CreateSchemaVersionInput) (*CreateSchemaVersionOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	version, err := h.schemas.CreateVersion(ctx, id.TenantID, id.ActorID, input.ID, input.Body.Fields)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil, huma.Error404NotFound("not found")
		}
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	return &CreateSchemaVersionOutput{Body: versionToResponse(version)}, nil
}

// ListSchemaVersionsInput represents the list versions request.
type ListSchemaVersionsInput struct {
	ID string `path:"id" doc:"Schema ID"`
}

// ListSchemaVersionsOutput represents the list versions response.
type ListSchemaVersionsOutput struct {
	Body struct {
		Versions []SchemaVersionResponse `json:"versions" doc:"All versions, newest first"`
	}
}

// ListSchemaVersions returns every version of a schema.
func (h *SchemaHandler) ListSchemaVersions(ctx context.Context, input *ListSchemaVersionsInput) (*ListSchemaVersionsOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := h.schemas.ListVersions(ctx, id.TenantID, input.ID)
	if err != nil {
		return nil, serviceError(err, "list schema versions")
	}

	out := &ListSchemaVersionsOutput{}
	out.Body.Versions = make([]SchemaVersionResponse, 0, len(versions))
	for _, v := range versions {
		out.Body.Versions = append(out.Body.Versions, versionToResponse(v))
	}
	return out, nil
}

// DeleteSchemaInput represents the delete schema request.
type DeleteSchemaInput struct {
	ID string `path:"id" doc:"Schema ID"`
}

// DeleteSchemaOutput represents the delete schema response.
type DeleteSchemaOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// DeleteSchema removes a schema and all its versions.
func (h *SchemaHandler) DeleteSchema(ctx context.Context, input *DeleteSchemaInput) (*DeleteSchemaOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.schemas.Delete(ctx, id.TenantID, id.ActorID, input.ID); err != nil {
		return nil, serviceError(err, "delete schema")
	}

	out := &DeleteSchemaOutput{}
	out.Body.Success = true
	return out, nil
}

func schemaToResponse(s *models.Schema, latest *models.SchemaVersion) SchemaResponse {
	resp := SchemaResponse{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format(timeFormat),
		UpdatedAt: s.UpdatedAt.Format(timeFormat),
	}
	if latest != nil {
		resp.LatestVersion = latest.Version
		resp.Fields = latest.Fields
	}
	return resp
}

func versionToResponse(v *models.SchemaVersion) SchemaVersionResponse {
	return SchemaVersionResponse{
		Version:   v.Version,
		Fields:    v.Fields,
		CreatedAt: v.CreatedAt.Format(timeFormat),
	}
}
