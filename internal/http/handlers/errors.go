package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fieldset/fieldset-api/internal/http/mw"
	"github.com/fieldset/fieldset-api/internal/service"
)

// requireIdentity returns the request identity or a 401.
func requireIdentity(ctx context.Context) (*mw.Identity, error) {
	id := mw.GetIdentity(ctx)
	if id == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	return id, nil
}

// serviceError maps service-layer errors onto HTTP problem responses.
func serviceError(err error, action string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.Is(err, service.ErrInvalidState):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("failed to " + action + ": " + err.Error())
	}
}
