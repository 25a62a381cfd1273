// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// DefaultHeuristicPaths are probed when a site publishes no usable sitemap.
var DefaultHeuristicPaths = []string{
	"/", "/about", "/about-us", "/pricing", "/contact", "/contact-us",
	"/services", "/products", "/team", "/careers", "/faq", "/blog",
}

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Secrets
	AppSecret     string
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption

	// CORS
	CORSOrigins []string

	// Crawling
	UserAgent       string
	MaxPages        int
	Concurrency     int
	RequestDelay    time.Duration
	RequestTimeout  time.Duration
	HeuristicPaths  []string

	// LLM extraction
	AnthropicAPIKey       string
	LLMModel              string
	LLMMaxTokens          int
	ExtractionConcurrency int
	MaxBodyChars          int
	MinWordCount          int

	// Synthesis
	SourceHintBoost            float64
	CorroborationBoost         float64
	DefaultConfidenceThreshold float64

	// Webhook delivery
	WebhookTimeout       time.Duration
	MaxDeliveryAttempts  int
	DeliveryBaseDelay    time.Duration
	DeliveryMaxDelay     time.Duration
	SignatureTolerance   time.Duration

	// Object Storage (S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3 for Tigris/MinIO
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string
	StorageRegion    string

	// Worker
	WorkerPollInterval        time.Duration
	WorkerConcurrency         int
	WorkerShutdownGracePeriod time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:fieldset.db?_journal=WAL&_timeout=5000"),
		AppSecret:   getEnv("APP_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		UserAgent:      getEnv("CRAWL_USER_AGENT", "OnboardingBot/1.0"),
		MaxPages:       getEnvInt("CRAWL_MAX_PAGES", 20),
		Concurrency:    getEnvInt("CRAWL_CONCURRENCY", 3),
		RequestDelay:   getEnvDuration("CRAWL_REQUEST_DELAY", 500*time.Millisecond),
		RequestTimeout: getEnvDuration("CRAWL_REQUEST_TIMEOUT", 10*time.Second),
		HeuristicPaths: getEnvSlice("CRAWL_HEURISTIC_PATHS", DefaultHeuristicPaths),

		AnthropicAPIKey:       getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:              getEnv("LLM_MODEL", "claude-3-5-sonnet-latest"),
		LLMMaxTokens:          getEnvInt("LLM_MAX_TOKENS", 4096),
		ExtractionConcurrency: getEnvInt("EXTRACTION_CONCURRENCY", 5),
		MaxBodyChars:          getEnvInt("EXTRACTION_MAX_BODY_CHARS", 12000),
		MinWordCount:          getEnvInt("EXTRACTION_MIN_WORD_COUNT", 10),

		SourceHintBoost:            getEnvFloat("SYNTHESIS_SOURCE_HINT_BOOST", 0.15),
		CorroborationBoost:         getEnvFloat("SYNTHESIS_CORROBORATION_BOOST", 0.1),
		DefaultConfidenceThreshold: getEnvFloat("SYNTHESIS_CONFIDENCE_THRESHOLD", 0.75),

		WebhookTimeout:      getEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second),
		MaxDeliveryAttempts: getEnvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		DeliveryBaseDelay:   getEnvDuration("WEBHOOK_BASE_DELAY", time.Second),
		DeliveryMaxDelay:    getEnvDuration("WEBHOOK_MAX_DELAY", time.Hour),
		SignatureTolerance:  getEnvDuration("WEBHOOK_SIGNATURE_TOLERANCE", 5*time.Minute),

		// Object Storage (Tigris/S3-compatible) - uses the standard AWS env vars
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		WorkerPollInterval:        getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerConcurrency:         getEnvInt("WORKER_CONCURRENCY", 3),
		WorkerShutdownGracePeriod: getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute),
	}

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.AppSecret == "" {
		cfg.AppSecret = generateRandomSecret(64)
	}

	// Set up encryption key (derive from app secret if not explicitly set)
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.AppSecret)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "fieldset-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string using HKDF.
// HKDF is appropriate for deriving keys from high-entropy secrets; for
// low-entropy passwords use Argon2 instead.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("fieldset-api-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
