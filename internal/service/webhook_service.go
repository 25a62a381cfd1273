package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fieldset/fieldset-api/internal/config"
	"github.com/fieldset/fieldset-api/internal/crypto"
	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
	"github.com/fieldset/fieldset-api/internal/safeurl"
)

// SignatureHeader carries the delivery signature.
const SignatureHeader = "X-Webhook-Signature"

// WebhookService manages webhook registration and delivery.
type WebhookService struct {
	cfg       *config.Config
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	validator *safeurl.Validator
	audit     *AuditService
	client    *http.Client
	logger    *slog.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(cfg *config.Config, repos *repository.Repositories, encryptor *crypto.Encryptor, validator *safeurl.Validator, audit *AuditService, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		cfg:       cfg,
		repos:     repos,
		encryptor: encryptor,
		validator: validator,
		audit:     audit,
		client:    &http.Client{Timeout: cfg.WebhookTimeout},
		logger:    logger.With("component", "webhook"),
	}
}

// RegisterOutput is returned from Register. Secret is disclosed here and
// never again.
type RegisterOutput struct {
	Webhook *models.Webhook `json:"webhook"`
	Secret  string          `json:"secret"`
}

// Register creates a webhook. The endpoint must be HTTPS and must not
// resolve to a private address.
func (s *WebhookService) Register(ctx context.Context, tenantID, actorID, name, rawURL string, events []string) (*RegisterOutput, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use https")
	}
	if _, err := s.validator.Validate(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("webhook URL rejected: %w", err)
	}
	if len(events) == 0 {
		events = []string{models.AuditSubmissionConfirmed}
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	encrypted, err := s.encryptor.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	webhook := &models.Webhook{
		TenantID:        tenantID,
		Name:            name,
		URL:             rawURL,
		SecretEncrypted: encrypted,
		Events:          events,
		IsActive:        true,
	}
	if err := s.repos.Webhook.Create(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	s.audit.Record(ctx, tenantID, actorID, models.AuditWebhookRegistered, "webhook", webhook.ID, map[string]any{
		"url": rawURL, "events": events,
	})
	s.logger.Info("registered webhook", "id", webhook.ID, "tenant_id", tenantID, "url", rawURL)

	return &RegisterOutput{Webhook: webhook, Secret: secret}, nil
}

// List returns all webhooks for a tenant.
func (s *WebhookService) List(ctx context.Context, tenantID string) ([]*models.Webhook, error) {
	return s.repos.Webhook.GetByTenantID(ctx, tenantID)
}

// SetActive enables or disables a webhook.
func (s *WebhookService) SetActive(ctx context.Context, tenantID, webhookID string, active bool) (*models.Webhook, error) {
	webhook, err := s.getOwned(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}
	webhook.IsActive = active
	if err := s.repos.Webhook.Update(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}
	return webhook, nil
}

// Delete removes a webhook and its delivery history.
func (s *WebhookService) Delete(ctx context.Context, tenantID, webhookID string) error {
	if _, err := s.getOwned(ctx, tenantID, webhookID); err != nil {
		return err
	}
	return s.repos.Webhook.Delete(ctx, webhookID)
}

// ListDeliveries returns delivery history for a webhook.
func (s *WebhookService) ListDeliveries(ctx context.Context, tenantID, webhookID string, limit, offset int) ([]*models.WebhookDelivery, error) {
	if _, err := s.getOwned(ctx, tenantID, webhookID); err != nil {
		return nil, err
	}
	return s.repos.WebhookDelivery.GetByWebhookID(ctx, webhookID, limit, offset)
}

// ListSubmissionDeliveries returns delivery history for a submission.
func (s *WebhookService) ListSubmissionDeliveries(ctx context.Context, tenantID, submissionID string) ([]*models.WebhookDelivery, error) {
	all, err := s.repos.WebhookDelivery.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	deliveries := make([]*models.WebhookDelivery, 0, len(all))
	for _, d := range all {
		if d.TenantID == tenantID {
			deliveries = append(deliveries, d)
		}
	}
	return deliveries, nil
}

// eventPayload is the body POSTed to subscribers. The wire keys are the
// published contract; they never track internal model tags.
type eventPayload struct {
	Event        string            `json:"event"`
	SubmissionID string            `json:"submissionId"`
	TenantID     string            `json:"tenantId"`
	Submission   payloadSubmission `json:"submission"`
	Artifacts    payloadArtifacts  `json:"artifacts"`
}

type payloadSubmission struct {
	ID            string                       `json:"id"`
	SchemaID      string                       `json:"schemaId"`
	SchemaVersion int                          `json:"schemaVersion"`
	WebsiteURL    string                       `json:"websiteUrl"`
	Status        models.SubmissionStatus      `json:"status"`
	Fields        []models.ExtractedFieldValue `json:"fields"`
	ConfirmedAt   *time.Time                   `json:"confirmedAt,omitempty"`
	ConfirmedBy   string                       `json:"confirmedBy,omitempty"`
}

type payloadArtifacts struct {
	CrawledPages     []string `json:"crawledPages"`
	HTMLSnapshotKeys []string `json:"htmlSnapshotKeys"`
}

// EnqueueForEvent creates one pending delivery per active webhook subscribed
// to the event. Delivery happens asynchronously in the worker.
func (s *WebhookService) EnqueueForEvent(ctx context.Context, event string, submission *models.Submission) error {
	webhooks, err := s.repos.Webhook.GetActiveByTenantID(ctx, submission.TenantID)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}

	payload, err := json.Marshal(eventPayload{
		Event:        event,
		SubmissionID: submission.ID,
		TenantID:     submission.TenantID,
		Submission: payloadSubmission{
			ID:            submission.ID,
			SchemaID:      submission.SchemaID,
			SchemaVersion: submission.SchemaVersion,
			WebsiteURL:    submission.SubmittedURL,
			Status:        submission.Status,
			Fields:        submission.Fields,
			ConfirmedAt:   submission.ConfirmedAt,
			ConfirmedBy:   submission.ConfirmedBy,
		},
		Artifacts: payloadArtifacts{
			CrawledPages:     submission.CrawledPages,
			HTMLSnapshotKeys: submission.ArtifactKeys,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for _, webhook := range webhooks {
		if !webhook.SubscribedTo(event) {
			continue
		}
		delivery := &models.WebhookDelivery{
			WebhookID:    webhook.ID,
			TenantID:     submission.TenantID,
			SubmissionID: submission.ID,
			EventType:    event,
			Payload:      payload,
			MaxAttempts:  s.cfg.MaxDeliveryAttempts,
		}
		if err := s.repos.WebhookDelivery.Create(ctx, delivery); err != nil {
			return fmt.Errorf("failed to enqueue delivery: %w", err)
		}
		s.logger.Info("enqueued delivery", "delivery_id", delivery.ID, "webhook_id", webhook.ID, "event", event)
	}
	return nil
}

// Deliver makes one delivery attempt and records the outcome. The row
// transition is guarded by the pending status, so a concurrent worker that
// already handled the delivery makes this a no-op.
func (s *WebhookService) Deliver(ctx context.Context, delivery *models.WebhookDelivery) {
	webhook, err := s.repos.Webhook.GetByID(ctx, delivery.WebhookID)
	if err != nil {
		s.logger.Error("failed to load webhook for delivery", "delivery_id", delivery.ID, "error", err)
		return
	}
	if webhook == nil || !webhook.IsActive {
		delivery.Status = models.WebhookDeliveryStatusFailed
		delivery.LastError = "Webhook is inactive"
		s.finish(ctx, delivery)
		return
	}

	delivery.Attempts++

	secret, err := s.encryptor.Decrypt(webhook.SecretEncrypted)
	if err != nil {
		s.logger.Error("failed to decrypt webhook secret", "webhook_id", webhook.ID, "error", err)
		s.recordFailure(ctx, delivery, 0, "secret decryption failed")
		return
	}

	statusCode, err := s.post(ctx, webhook.URL, secret, delivery.Payload)
	if err != nil {
		s.recordFailure(ctx, delivery, statusCode, err.Error())
		return
	}

	now := time.Now().UTC()
	delivery.Status = models.WebhookDeliveryStatusSuccess
	delivery.LastStatus = statusCode
	delivery.LastError = ""
	delivery.NextRetryAt = nil
	delivery.CompletedAt = &now
	s.finish(ctx, delivery)

	s.audit.Record(ctx, delivery.TenantID, "", models.AuditWebhookDeliverySucceeded, "webhook_delivery", delivery.ID, map[string]any{
		"webhook_id": webhook.ID, "attempts": delivery.Attempts,
	})
	s.logger.Info("delivered webhook", "delivery_id", delivery.ID, "status", statusCode, "attempts", delivery.Attempts)
}

func (s *WebhookService) post(ctx context.Context, endpoint, secret string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	t := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set(SignatureHeader, Sign(secret, t, body))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (s *WebhookService) recordFailure(ctx context.Context, delivery *models.WebhookDelivery, statusCode int, reason string) {
	delivery.LastStatus = statusCode
	delivery.LastError = reason

	if delivery.Attempts >= delivery.MaxAttempts {
		now := time.Now().UTC()
		delivery.Status = models.WebhookDeliveryStatusFailed
		delivery.NextRetryAt = nil
		delivery.CompletedAt = &now
		s.finish(ctx, delivery)

		s.audit.Record(ctx, delivery.TenantID, "", models.AuditWebhookDeliveryFailed, "webhook_delivery", delivery.ID, map[string]any{
			"webhook_id": delivery.WebhookID, "attempts": delivery.Attempts, "error": reason,
		})
		s.logger.Warn("delivery failed permanently", "delivery_id", delivery.ID, "attempts", delivery.Attempts, "error", reason)
		return
	}

	retryAt := time.Now().UTC().Add(s.backoff(delivery.Attempts))
	delivery.Status = models.WebhookDeliveryStatusPending
	delivery.NextRetryAt = &retryAt
	s.finish(ctx, delivery)

	s.logger.Warn("delivery attempt failed",
		"delivery_id", delivery.ID,
		"attempt", delivery.Attempts,
		"next_retry_at", retryAt,
		"error", reason,
	)
}

// backoff returns the delay before the next attempt: base×2^(attempts−1),
// capped at the configured maximum.
func (s *WebhookService) backoff(attempts int) time.Duration {
	delay := s.cfg.DeliveryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= s.cfg.DeliveryMaxDelay {
			return s.cfg.DeliveryMaxDelay
		}
	}
	if delay > s.cfg.DeliveryMaxDelay {
		delay = s.cfg.DeliveryMaxDelay
	}
	return delay
}

func (s *WebhookService) finish(ctx context.Context, delivery *models.WebhookDelivery) {
	ok, err := s.repos.WebhookDelivery.UpdateIfStatus(ctx, delivery, models.WebhookDeliveryStatusPending)
	if err != nil {
		s.logger.Error("failed to update delivery", "delivery_id", delivery.ID, "error", err)
		return
	}
	if !ok {
		s.logger.Debug("delivery already handled elsewhere", "delivery_id", delivery.ID)
	}
}

func (s *WebhookService) getOwned(ctx context.Context, tenantID, webhookID string) (*models.Webhook, error) {
	webhook, err := s.repos.Webhook.GetByID(ctx, webhookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	if webhook == nil || webhook.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return webhook, nil
}

// Sign produces the signature header value for a payload:
// t=<unix>,v1=<hex hmac-sha256(secret, "<t>.<body>")>.
func Sign(secret string, t int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(t, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header against the body. Timestamps outside the
// tolerance window are rejected before any comparison.
func Verify(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	var t int64
	var v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp in signature header")
			}
			t = parsed
		case "v1":
			v1 = v
		}
	}
	if t == 0 || v1 == "" {
		return fmt.Errorf("malformed signature header")
	}

	age := now.Unix() - t
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > tolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	expected := Sign(secret, t, body)
	if !hmac.Equal([]byte(expected), []byte(fmt.Sprintf("t=%d,v1=%s", t, v1))) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
