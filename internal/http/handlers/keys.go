package handlers

import (
	"context"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/service"
)

// KeyHandler handles publishable key endpoints.
type KeyHandler struct {
	keys *service.PublishableKeyService
}

// NewKeyHandler creates a new publishable key handler.
func NewKeyHandler(keys *service.PublishableKeyService) *KeyHandler {
	return &KeyHandler{keys: keys}
}

// CreateKeyInput represents the create key request.
type CreateKeyInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"128" doc:"Key name"`
	}
}

// CreateKeyOutput represents the create key response. The full key appears
// here and nowhere else; only its hash is stored.
type CreateKeyOutput struct {
	Body *service.CreateKeyOutput
}

// CreateKey creates a publishable API key.
func (h *KeyHandler) CreateKey(ctx context.Context, input *CreateKeyInput) (*CreateKeyOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	result, err := h.keys.CreateKey(ctx, id.TenantID, id.ActorID, input.Body.Name)
	if err != nil {
		return nil, serviceError(err, "create key")
	}

	return &CreateKeyOutput{Body: result}, nil
}

// ListKeysOutput represents the list keys response.
type ListKeysOutput struct {
	Body struct {
		Keys []*models.PublishableKey `json:"keys" doc:"Tenant's keys, newest first"`
	}
}

// ListKeys returns all publishable keys for the tenant.
func (h *KeyHandler) ListKeys(ctx context.Context, input *struct{}) (*ListKeysOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := h.keys.ListKeys(ctx, id.TenantID)
	if err != nil {
		return nil, serviceError(err, "list keys")
	}

	out := &ListKeysOutput{}
	out.Body.Keys = keys
	return out, nil
}

// RevokeKeyInput represents the revoke key request.
type RevokeKeyInput struct {
	ID string `path:"id" doc:"Key ID"`
}

// RevokeKeyOutput represents the revoke key response.
type RevokeKeyOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// RevokeKey permanently revokes a publishable key.
func (h *KeyHandler) RevokeKey(ctx context.Context, input *RevokeKeyInput) (*RevokeKeyOutput, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.keys.RevokeKey(ctx, id.TenantID, id.ActorID, input.ID); err != nil {
		return nil, serviceError(err, "revoke key")
	}

	out := &RevokeKeyOutput{}
	out.Body.Success = true
	return out, nil
}
