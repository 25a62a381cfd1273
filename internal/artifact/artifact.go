// Package artifact stores crawl evidence: gzipped raw HTML snapshots and the
// extracted-content JSON derived from them, keyed by run and page hash.
package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Store is the blob interface the pipeline writes evidence through.
type Store interface {
	// Put writes data under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the stored bytes, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited download URL for key.
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// RawHTMLKey is the storage key for a page's gzipped HTML snapshot.
func RawHTMLKey(runID, pageHash string) string {
	return fmt.Sprintf("%s/raw/%s.html.gz", runID, pageHash)
}

// ExtractedContentKey is the storage key for a page's extracted-content JSON.
func ExtractedContentKey(runID, pageHash string) string {
	return fmt.Sprintf("%s/text/%s.json", runID, pageHash)
}

// PutRawHTML gzips html and stores it under the raw key for the page.
func PutRawHTML(ctx context.Context, store Store, runID, pageHash, html string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(html)); err != nil {
		return "", fmt.Errorf("failed to gzip html: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to gzip html: %w", err)
	}

	key := RawHTMLKey(runID, pageHash)
	if err := store.Put(ctx, key, buf.Bytes(), "application/gzip"); err != nil {
		return "", fmt.Errorf("failed to store raw html: %w", err)
	}
	return key, nil
}

// GetRawHTML fetches and gunzips a stored HTML snapshot. Returns "" with a
// nil error when the key is absent.
func GetRawHTML(ctx context.Context, store Store, key string) (string, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("stored html is not gzip: %w", err)
	}
	defer zr.Close()

	html, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("failed to gunzip html: %w", err)
	}
	return string(html), nil
}

// PutExtractedContent stores v as compact JSON under the text key.
func PutExtractedContent(ctx context.Context, store Store, runID, pageHash string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal extracted content: %w", err)
	}

	key := ExtractedContentKey(runID, pageHash)
	if err := store.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("failed to store extracted content: %w", err)
	}
	return key, nil
}
