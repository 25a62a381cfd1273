package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
)

// PublishableKeyService manages the keys tenant integrations embed in
// public clients.
type PublishableKeyService struct {
	repos  *repository.Repositories
	audit  *AuditService
	logger *slog.Logger
}

// NewPublishableKeyService creates a new publishable key service.
func NewPublishableKeyService(repos *repository.Repositories, audit *AuditService, logger *slog.Logger) *PublishableKeyService {
	return &PublishableKeyService{
		repos:  repos,
		audit:  audit,
		logger: logger.With("component", "publishable_key"),
	}
}

// CreateKeyOutput is returned on creation. Key is disclosed here and never
// again; only its hash is stored.
type CreateKeyOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateKey mints a new publishable key for a tenant.
func (s *PublishableKeyService) CreateKey(ctx context.Context, tenantID, actorID, name string) (*CreateKeyOutput, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	key := "fs_" + base64.RawURLEncoding.EncodeToString(keyBytes)
	keyPrefix := key[:11] + "..."

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	record := &models.PublishableKey{
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
	}
	if err := s.repos.PublishableKey.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create publishable key: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditPublishableKeyCreated, "publishable_key", record.ID, map[string]any{
		"name": name, "key_prefix": keyPrefix,
	})

	return &CreateKeyOutput{
		ID:        record.ID,
		Name:      name,
		Key:       key,
		KeyPrefix: keyPrefix,
		CreatedAt: record.CreatedAt,
	}, nil
}

// ListKeys lists a tenant's keys without the key material.
func (s *PublishableKeyService) ListKeys(ctx context.Context, tenantID string) ([]*models.PublishableKey, error) {
	return s.repos.PublishableKey.GetByTenantID(ctx, tenantID)
}

// RevokeKey permanently revokes a key.
func (s *PublishableKeyService) RevokeKey(ctx context.Context, tenantID, actorID, keyID string) error {
	key, err := s.repos.PublishableKey.GetByID(ctx, keyID)
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}
	if key == nil || key.TenantID != tenantID {
		return ErrNotFound
	}

	if err := s.repos.PublishableKey.Revoke(ctx, keyID); err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditPublishableKeyRevoked, "publishable_key", keyID, map[string]any{
		"key_prefix": key.KeyPrefix,
	})
	return nil
}

// VerifyKey resolves a presented key to its tenant. Revoked or unknown keys
// fail identically.
func (s *PublishableKeyService) VerifyKey(ctx context.Context, presented string) (*models.PublishableKey, error) {
	hash := sha256.Sum256([]byte(presented))
	key, err := s.repos.PublishableKey.GetByKeyHash(ctx, hex.EncodeToString(hash[:]))
	if err != nil {
		return nil, fmt.Errorf("failed to look up key: %w", err)
	}
	if key == nil || key.RevokedAt != nil {
		return nil, ErrNotFound
	}

	if err := s.repos.PublishableKey.UpdateLastUsed(ctx, key.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update key last used", "key_id", key.ID, "error", err)
	}
	return key, nil
}
