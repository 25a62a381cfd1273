package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fieldset/fieldset-api/internal/models"
)

func newTestDelivery(t *testing.T, repos *Repositories, tenantID string) *models.WebhookDelivery {
	t.Helper()
	ctx := context.Background()

	webhook := newTestWebhook(tenantID, "Delivery target", true)
	if err := repos.Webhook.Create(ctx, webhook); err != nil {
		t.Fatalf("webhook Create() error = %v", err)
	}

	delivery := &models.WebhookDelivery{
		WebhookID:    webhook.ID,
		TenantID:     tenantID,
		SubmissionID: "sub_1",
		EventType:    "submission.confirmed",
		Payload:      json.RawMessage(`{"event":"submission.confirmed"}`),
		MaxAttempts:  5,
	}
	if err := repos.WebhookDelivery.Create(ctx, delivery); err != nil {
		t.Fatalf("delivery Create() error = %v", err)
	}
	return delivery
}

func TestWebhookDeliveryRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	delivery := newTestDelivery(t, repos, "tenant_123")
	if delivery.Status != models.WebhookDeliveryStatusPending {
		t.Errorf("Status = %s, want pending", delivery.Status)
	}

	got, err := repos.WebhookDelivery.GetByID(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.EventType != "submission.confirmed" {
		t.Errorf("EventType = %s", got.EventType)
	}
	if string(got.Payload) != `{"event":"submission.confirmed"}` {
		t.Errorf("Payload = %s", got.Payload)
	}
	if got.NextRetryAt != nil {
		t.Errorf("NextRetryAt = %v, want nil", got.NextRetryAt)
	}
}

func TestWebhookDeliveryRepository_GetDue(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Due immediately: no retry time set.
	immediate := newTestDelivery(t, repos, "tenant_123")

	// Due: retry time in the past.
	past := newTestDelivery(t, repos, "tenant_123")
	pastAt := now.Add(-time.Minute)
	past.NextRetryAt = &pastAt
	past.Attempts = 1
	if ok, err := repos.WebhookDelivery.UpdateIfStatus(ctx, past, models.WebhookDeliveryStatusPending); err != nil || !ok {
		t.Fatalf("UpdateIfStatus() = %v, %v", ok, err)
	}

	// Not due: retry time in the future.
	future := newTestDelivery(t, repos, "tenant_123")
	futureAt := now.Add(time.Hour)
	future.NextRetryAt = &futureAt
	if ok, err := repos.WebhookDelivery.UpdateIfStatus(ctx, future, models.WebhookDeliveryStatusPending); err != nil || !ok {
		t.Fatalf("UpdateIfStatus() = %v, %v", ok, err)
	}

	// Not due: already succeeded.
	done := newTestDelivery(t, repos, "tenant_123")
	completedAt := now
	done.Status = models.WebhookDeliveryStatusSuccess
	done.CompletedAt = &completedAt
	if ok, err := repos.WebhookDelivery.UpdateIfStatus(ctx, done, models.WebhookDeliveryStatusPending); err != nil || !ok {
		t.Fatalf("UpdateIfStatus() = %v, %v", ok, err)
	}

	due, err := repos.WebhookDelivery.GetDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("GetDue() error = %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("len(due) = %d, want 2", len(due))
	}
	ids := map[string]bool{due[0].ID: true, due[1].ID: true}
	if !ids[immediate.ID] || !ids[past.ID] {
		t.Errorf("due IDs = %v, want immediate and past", ids)
	}
}

func TestWebhookDeliveryRepository_UpdateIfStatus_Stale(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	delivery := newTestDelivery(t, repos, "tenant_123")

	now := time.Now().UTC()
	delivery.Status = models.WebhookDeliveryStatusSuccess
	delivery.Attempts = 1
	delivery.LastStatus = 200
	delivery.CompletedAt = &now
	ok, err := repos.WebhookDelivery.UpdateIfStatus(ctx, delivery, models.WebhookDeliveryStatusPending)
	if err != nil {
		t.Fatalf("UpdateIfStatus() error = %v", err)
	}
	if !ok {
		t.Fatal("expected pending -> success to apply")
	}

	// The row is no longer pending; a stale writer must lose.
	delivery.Status = models.WebhookDeliveryStatusFailed
	ok, err = repos.WebhookDelivery.UpdateIfStatus(ctx, delivery, models.WebhookDeliveryStatusPending)
	if err != nil {
		t.Fatalf("UpdateIfStatus() error = %v", err)
	}
	if ok {
		t.Error("expected stale update to be rejected")
	}

	got, _ := repos.WebhookDelivery.GetByID(ctx, delivery.ID)
	if got.Status != models.WebhookDeliveryStatusSuccess {
		t.Errorf("Status = %s, want success", got.Status)
	}
	if got.LastStatus != 200 {
		t.Errorf("LastStatus = %d, want 200", got.LastStatus)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}
}

func TestWebhookDeliveryRepository_GetBySubmissionID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	d1 := newTestDelivery(t, repos, "tenant_123")
	_ = newTestDelivery(t, repos, "tenant_123")

	other := &models.WebhookDelivery{
		WebhookID:    d1.WebhookID,
		TenantID:     "tenant_123",
		SubmissionID: "sub_other",
		EventType:    "submission.confirmed",
		Payload:      json.RawMessage(`{}`),
		MaxAttempts:  5,
	}
	if err := repos.WebhookDelivery.Create(ctx, other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repos.WebhookDelivery.GetBySubmissionID(ctx, "sub_1")
	if err != nil {
		t.Fatalf("GetBySubmissionID() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(got) = %d, want 2", len(got))
	}
	for _, d := range got {
		if d.SubmissionID != "sub_1" {
			t.Errorf("SubmissionID = %s, want sub_1", d.SubmissionID)
		}
	}
}

func TestWebhookDeliveryRepository_DeleteWebhookCascades(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	delivery := newTestDelivery(t, repos, "tenant_123")
	if err := repos.Webhook.Delete(ctx, delivery.WebhookID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := repos.WebhookDelivery.GetByID(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("expected delivery removed after webhook delete")
	}
}
