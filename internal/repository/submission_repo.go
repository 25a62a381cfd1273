package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLiteSubmissionRepository implements SubmissionRepository for SQLite/libsql.
type SQLiteSubmissionRepository struct {
	db *sql.DB
}

// NewSQLiteSubmissionRepository creates a new SQLite submission repository.
func NewSQLiteSubmissionRepository(db *sql.DB) *SQLiteSubmissionRepository {
	return &SQLiteSubmissionRepository{db: db}
}

const submissionColumns = `id, tenant_id, schema_id, schema_version, submitted_url, normalized_url, origin,
	status, fields, crawled_pages, skipped_pages, artifact_keys, failure_reason,
	confirmed_at, confirmed_by, created_at, updated_at`

// Create creates a new submission.
func (r *SQLiteSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	now := time.Now().UTC()
	if submission.ID == "" {
		submission.ID = ulid.Make().String()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	submission.CreatedAt = now
	submission.UpdatedAt = now

	fieldsJSON, crawledJSON, skippedJSON, keysJSON, err := marshalSubmissionJSON(submission)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		submission.ID, submission.TenantID, submission.SchemaID, submission.SchemaVersion,
		submission.SubmittedURL, submission.NormalizedURL, submission.Origin,
		string(submission.Status), fieldsJSON, crawledJSON, skippedJSON, keysJSON,
		nullIfEmpty(submission.FailureReason), nullTime(submission.ConfirmedAt),
		nullIfEmpty(submission.ConfirmedBy),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	return err
}

// GetByID retrieves a submission by ID.
func (r *SQLiteSubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE id = ?
	`, id)
	return scanSubmissionRow(row)
}

// GetByTenantID retrieves submissions for a tenant, newest first.
func (r *SQLiteSubmissionRepository) GetByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var submissions []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// Update persists all mutable fields of a submission.
func (r *SQLiteSubmissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	submission.UpdatedAt = time.Now().UTC()

	fieldsJSON, crawledJSON, skippedJSON, keysJSON, err := marshalSubmissionJSON(submission)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE submissions
		SET normalized_url = ?, origin = ?, status = ?, fields = ?, crawled_pages = ?,
			skipped_pages = ?, artifact_keys = ?, failure_reason = ?,
			confirmed_at = ?, confirmed_by = ?, updated_at = ?
		WHERE id = ?
	`,
		submission.NormalizedURL, submission.Origin, string(submission.Status),
		fieldsJSON, crawledJSON, skippedJSON, keysJSON,
		nullIfEmpty(submission.FailureReason), nullTime(submission.ConfirmedAt),
		nullIfEmpty(submission.ConfirmedBy),
		submission.UpdatedAt.Format(time.RFC3339), submission.ID,
	)
	return err
}

// UpdateStatus transitions status only when the row still holds
// expectedStatus.
func (r *SQLiteSubmissionRepository) UpdateStatus(ctx context.Context, id string, expectedStatus, newStatus models.SubmissionStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(newStatus), time.Now().UTC().Format(time.RFC3339), id, string(expectedStatus))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimPending atomically claims the oldest pending submission.
func (r *SQLiteSubmissionRepository) ClaimPending(ctx context.Context) (*models.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id FROM submissions
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
	`)

	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	claimed, err := r.UpdateStatus(ctx, id, models.SubmissionStatusPending, models.SubmissionStatusRunning)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another worker got there first.
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func marshalSubmissionJSON(s *models.Submission) (fields, crawled, skipped, keys *string, err error) {
	marshal := func(v any, empty bool) (*string, error) {
		if empty {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		str := string(data)
		return &str, nil
	}

	if fields, err = marshal(s.Fields, len(s.Fields) == 0); err != nil {
		return
	}
	if crawled, err = marshal(s.CrawledPages, len(s.CrawledPages) == 0); err != nil {
		return
	}
	if skipped, err = marshal(s.SkippedPages, len(s.SkippedPages) == 0); err != nil {
		return
	}
	keys, err = marshal(s.ArtifactKeys, len(s.ArtifactKeys) == 0)
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmissionRow(row *sql.Row) (*models.Submission, error) {
	s, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var s models.Submission
	var status string
	var fieldsJSON, crawledJSON, skippedJSON, keysJSON sql.NullString
	var failureReason, confirmedAt, confirmedBy sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&s.ID, &s.TenantID, &s.SchemaID, &s.SchemaVersion,
		&s.SubmittedURL, &s.NormalizedURL, &s.Origin,
		&status, &fieldsJSON, &crawledJSON, &skippedJSON, &keysJSON,
		&failureReason, &confirmedAt, &confirmedBy,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = models.SubmissionStatus(status)
	s.FailureReason = failureReason.String
	s.ConfirmedBy = confirmedBy.String

	if fieldsJSON.Valid {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &s.Fields); err != nil {
			return nil, err
		}
	}
	if crawledJSON.Valid {
		if err := json.Unmarshal([]byte(crawledJSON.String), &s.CrawledPages); err != nil {
			return nil, err
		}
	}
	if skippedJSON.Valid {
		if err := json.Unmarshal([]byte(skippedJSON.String), &s.SkippedPages); err != nil {
			return nil, err
		}
	}
	if keysJSON.Valid {
		if err := json.Unmarshal([]byte(keysJSON.String), &s.ArtifactKeys); err != nil {
			return nil, err
		}
	}
	if confirmedAt.Valid {
		t, _ := time.Parse(time.RFC3339, confirmedAt.String)
		s.ConfirmedAt = &t
	}

	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
