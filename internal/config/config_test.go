package config

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.UserAgent != "OnboardingBot/1.0" {
		t.Errorf("UserAgent = %q, want OnboardingBot/1.0", cfg.UserAgent)
	}
	if cfg.MaxPages != 20 {
		t.Errorf("MaxPages = %d, want 20", cfg.MaxPages)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.Concurrency)
	}
	if cfg.RequestDelay != 500*time.Millisecond {
		t.Errorf("RequestDelay = %v, want 500ms", cfg.RequestDelay)
	}
	if len(cfg.HeuristicPaths) != 12 {
		t.Errorf("HeuristicPaths has %d entries, want 12", len(cfg.HeuristicPaths))
	}
	if cfg.DefaultConfidenceThreshold != 0.75 {
		t.Errorf("DefaultConfidenceThreshold = %v, want 0.75", cfg.DefaultConfidenceThreshold)
	}
	if cfg.MaxDeliveryAttempts != 5 {
		t.Errorf("MaxDeliveryAttempts = %d, want 5", cfg.MaxDeliveryAttempts)
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Errorf("EncryptionKey length = %d, want 32", len(cfg.EncryptionKey))
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRAWL_MAX_PAGES", "5")
	t.Setenv("CRAWL_REQUEST_DELAY", "2s")
	t.Setenv("SYNTHESIS_CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("CRAWL_HEURISTIC_PATHS", "/,/about")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MaxPages != 5 {
		t.Errorf("MaxPages = %d, want 5", cfg.MaxPages)
	}
	if cfg.RequestDelay != 2*time.Second {
		t.Errorf("RequestDelay = %v, want 2s", cfg.RequestDelay)
	}
	if cfg.DefaultConfidenceThreshold != 0.9 {
		t.Errorf("DefaultConfidenceThreshold = %v, want 0.9", cfg.DefaultConfidenceThreshold)
	}
	if len(cfg.HeuristicPaths) != 2 {
		t.Errorf("HeuristicPaths = %v, want 2 entries", cfg.HeuristicPaths)
	}
}

func TestLoadExplicitEncryptionKey(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	t.Setenv("ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(key))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(cfg.EncryptionKey) != string(key) {
		t.Error("EncryptionKey does not match provided key")
	}

	t.Setenv("ENCRYPTION_KEY", "not-base64-or-wrong-size")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed ENCRYPTION_KEY")
	}
}

func TestDeriveEncryptionKeyDeterministic(t *testing.T) {
	a := deriveEncryptionKey("secret")
	b := deriveEncryptionKey("secret")
	c := deriveEncryptionKey("other")

	if string(a) != string(b) {
		t.Error("same secret should derive the same key")
	}
	if string(a) == string(c) {
		t.Error("different secrets should derive different keys")
	}
}
