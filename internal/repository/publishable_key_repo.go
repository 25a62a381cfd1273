package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLitePublishableKeyRepository implements PublishableKeyRepository for
// SQLite/libsql.
type SQLitePublishableKeyRepository struct {
	db *sql.DB
}

// NewSQLitePublishableKeyRepository creates a new SQLite publishable key repository.
func NewSQLitePublishableKeyRepository(db *sql.DB) *SQLitePublishableKeyRepository {
	return &SQLitePublishableKeyRepository{db: db}
}

// Create stores a new publishable key record.
func (r *SQLitePublishableKeyRepository) Create(ctx context.Context, key *models.PublishableKey) error {
	now := time.Now().UTC()
	if key.ID == "" {
		key.ID = ulid.Make().String()
	}
	key.CreatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO publishable_keys (id, tenant_id, name, key_hash, key_prefix,
			revoked_at, last_used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix,
		nullTime(key.RevokedAt), nullTime(key.LastUsedAt), now.Format(time.RFC3339),
	)
	return err
}

// GetByID retrieves a publishable key by ID.
func (r *SQLitePublishableKeyRepository) GetByID(ctx context.Context, id string) (*models.PublishableKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, key_hash, key_prefix, revoked_at, last_used_at, created_at
		FROM publishable_keys
		WHERE id = ?
	`, id)
	return r.scanKey(row)
}

// GetByKeyHash retrieves a publishable key by its SHA-256 hash.
func (r *SQLitePublishableKeyRepository) GetByKeyHash(ctx context.Context, hash string) (*models.PublishableKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, key_hash, key_prefix, revoked_at, last_used_at, created_at
		FROM publishable_keys
		WHERE key_hash = ?
	`, hash)
	return r.scanKey(row)
}

// GetByTenantID retrieves all publishable keys for a tenant, newest first.
func (r *SQLitePublishableKeyRepository) GetByTenantID(ctx context.Context, tenantID string) ([]*models.PublishableKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, key_hash, key_prefix, revoked_at, last_used_at, created_at
		FROM publishable_keys
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []*models.PublishableKey
	for rows.Next() {
		k, err := scanPublishableKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UpdateLastUsed records when the key last authenticated a request.
func (r *SQLitePublishableKeyRepository) UpdateLastUsed(ctx context.Context, id string, lastUsed time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE publishable_keys
		SET last_used_at = ?
		WHERE id = ?
	`, lastUsed.UTC().Format(time.RFC3339), id)
	return err
}

// Revoke marks a key revoked. Revocation is permanent.
func (r *SQLitePublishableKeyRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE publishable_keys
		SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL
	`, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLitePublishableKeyRepository) scanKey(row *sql.Row) (*models.PublishableKey, error) {
	k, err := scanPublishableKey(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return k, err
}

func scanPublishableKey(row rowScanner) (*models.PublishableKey, error) {
	var k models.PublishableKey
	var revokedAt, lastUsedAt sql.NullString
	var createdAt string

	err := row.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix,
		&revokedAt, &lastUsedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		t, _ := time.Parse(time.RFC3339, revokedAt.String)
		k.RevokedAt = &t
	}
	if lastUsedAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastUsedAt.String)
		k.LastUsedAt = &t
	}
	k.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &k, nil
}
