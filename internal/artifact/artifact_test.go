package artifact

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestKeyScheme(t *testing.T) {
	raw := RawHTMLKey("run01", "abc123")
	if raw != "run01/raw/abc123.html.gz" {
		t.Errorf("RawHTMLKey = %q", raw)
	}
	text := ExtractedContentKey("run01", "abc123")
	if text != "run01/text/abc123.json" {
		t.Errorf("ExtractedContentKey = %q", text)
	}
}

func TestPutGetRawHTMLRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	html := "<html><body>héllo wörld</body></html>"

	key, err := PutRawHTML(ctx, store, "run01", "hash1", html)
	if err != nil {
		t.Fatalf("PutRawHTML error: %v", err)
	}
	if key != "run01/raw/hash1.html.gz" {
		t.Errorf("key = %q", key)
	}

	// Stored bytes should be gzip, not the raw HTML.
	stored, err := store.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(stored), "<html>") {
		t.Error("stored bytes should be compressed")
	}
	if len(stored) < 2 || stored[0] != 0x1f || stored[1] != 0x8b {
		t.Error("stored bytes should carry the gzip magic")
	}

	got, err := GetRawHTML(ctx, store, key)
	if err != nil {
		t.Fatalf("GetRawHTML error: %v", err)
	}
	if got != html {
		t.Errorf("round trip = %q, want %q", got, html)
	}
}

func TestGetRawHTMLAbsentKey(t *testing.T) {
	got, err := GetRawHTML(context.Background(), NewMemoryStore(), "run01/raw/missing.html.gz")
	if err != nil {
		t.Fatalf("absent key should not error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestPutExtractedContent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	type doc struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	key, err := PutExtractedContent(ctx, store, "run01", "hash1", doc{Title: "About", Tags: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("PutExtractedContent error: %v", err)
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "\n") || strings.Contains(string(data), "  ") {
		t.Error("stored JSON should be compact")
	}
	var got doc
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("stored JSON does not parse: %v", err)
	}
	if got.Title != "About" || len(got.Tags) != 2 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestMemoryStoreBasics(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("v"), "text/plain"); err != nil {
		t.Fatal(err)
	}

	ok, err := store.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	url, err := store.SignedURL(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, "k?expires=") {
		t.Errorf("signed URL = %q", url)
	}

	if _, err := store.SignedURL(ctx, "absent", time.Minute); err == nil {
		t.Error("signing an absent key should fail")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("double delete should be fine: %v", err)
	}
	data, err := store.Get(ctx, "k")
	if err != nil || data != nil {
		t.Errorf("Get after delete = %v, %v; want nil, nil", data, err)
	}
}
