// Package handlers implements the HTTP API endpoints. Handlers stay thin:
// identity comes from middleware, behavior lives in the service layer.
package handlers

import (
	"context"
	"database/sql"

	"github.com/fieldset/fieldset-api/internal/version"
)

// timeFormat is the wire format for timestamps in responses.
const timeFormat = "2006-01-02T15:04:05Z07:00"

// HealthOutput represents the health check response.
type HealthOutput struct {
	Body struct {
		Status  string `json:"status" doc:"Service status"`
		Version string `json:"version" doc:"Service version"`
	}
}

// HealthCheck returns service health and version.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	out.Body.Version = version.Get().Version
	return out, nil
}

// ProbeOutput is the minimal probe response.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez reports process liveness.
func Livez(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzHandler checks database readiness.
type ReadyzHandler struct {
	db *sql.DB
}

// NewReadyzHandler creates a readiness probe handler.
func NewReadyzHandler(db *sql.DB) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz reports whether the service can reach its database.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	if err := h.db.PingContext(ctx); err != nil {
		return nil, err
	}
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}
