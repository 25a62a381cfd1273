package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fieldset/fieldset-api/internal/models"
)

// SQLiteCrawlArtifactRepository implements CrawlArtifactRepository for
// SQLite/libsql.
type SQLiteCrawlArtifactRepository struct {
	db *sql.DB
}

// NewSQLiteCrawlArtifactRepository creates a new SQLite crawl artifact repository.
func NewSQLiteCrawlArtifactRepository(db *sql.DB) *SQLiteCrawlArtifactRepository {
	return &SQLiteCrawlArtifactRepository{db: db}
}

// Create records one crawled page.
func (r *SQLiteCrawlArtifactRepository) Create(ctx context.Context, artifact *models.CrawlArtifact) error {
	now := time.Now().UTC()
	if artifact.ID == "" {
		artifact.ID = ulid.Make().String()
	}
	artifact.CreatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crawl_artifacts (id, submission_id, url, status_code, content_type, fetched_at,
			raw_html_key, extracted_content_key, page_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		artifact.ID, artifact.SubmissionID, artifact.URL, artifact.StatusCode, artifact.ContentType,
		artifact.FetchedAt.UTC().Format(time.RFC3339), artifact.RawHTMLKey, artifact.ExtractedContentKey,
		nullIfEmpty(artifact.PageType), now.Format(time.RFC3339),
	)
	return err
}

// GetBySubmissionID returns all artifacts for a submission in creation order.
func (r *SQLiteCrawlArtifactRepository) GetBySubmissionID(ctx context.Context, submissionID string) ([]*models.CrawlArtifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, submission_id, url, status_code, content_type, fetched_at,
			raw_html_key, extracted_content_key, page_type, created_at
		FROM crawl_artifacts
		WHERE submission_id = ?
		ORDER BY id
	`, submissionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var artifacts []*models.CrawlArtifact
	for rows.Next() {
		var a models.CrawlArtifact
		var pageType sql.NullString
		var fetchedAt, createdAt string
		if err := rows.Scan(
			&a.ID, &a.SubmissionID, &a.URL, &a.StatusCode, &a.ContentType, &fetchedAt,
			&a.RawHTMLKey, &a.ExtractedContentKey, &pageType, &createdAt,
		); err != nil {
			return nil, err
		}
		a.PageType = pageType.String
		a.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// DeleteBySubmissionID removes all artifacts for a submission.
func (r *SQLiteCrawlArtifactRepository) DeleteBySubmissionID(ctx context.Context, submissionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM crawl_artifacts WHERE submission_id = ?`, submissionID)
	return err
}
