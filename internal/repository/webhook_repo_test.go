package repository

import (
	"context"
	"testing"

	"github.com/fieldset/fieldset-api/internal/models"
)

func newTestWebhook(tenantID, name string, active bool) *models.Webhook {
	return &models.Webhook{
		TenantID:        tenantID,
		Name:            name,
		URL:             "https://hooks.example.com/fieldset",
		SecretEncrypted: "encrypted-secret",
		Events:          []string{"submission.confirmed"},
		IsActive:        active,
	}
}

func TestWebhookRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	webhook := newTestWebhook("tenant_123", "CRM sync", true)
	if err := repos.Webhook.Create(ctx, webhook); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repos.Webhook.GetByID(ctx, webhook.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.Name != "CRM sync" {
		t.Errorf("Name = %s", got.Name)
	}
	if len(got.Events) != 1 || got.Events[0] != "submission.confirmed" {
		t.Errorf("Events = %v", got.Events)
	}
	if got.SecretEncrypted != "encrypted-secret" {
		t.Errorf("SecretEncrypted = %s", got.SecretEncrypted)
	}
}

func TestWebhookRepository_GetActiveByTenantID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	active := newTestWebhook("tenant_a", "Active", true)
	inactive := newTestWebhook("tenant_a", "Inactive", false)
	other := newTestWebhook("tenant_b", "Other", true)
	for _, w := range []*models.Webhook{active, inactive, other} {
		if err := repos.Webhook.Create(ctx, w); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repos.Webhook.GetActiveByTenantID(ctx, "tenant_a")
	if err != nil {
		t.Fatalf("GetActiveByTenantID() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("got %d webhooks, want only the active one for tenant_a", len(got))
	}

	all, err := repos.Webhook.GetByTenantID(ctx, "tenant_a")
	if err != nil {
		t.Fatalf("GetByTenantID() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
}

func TestWebhookRepository_Update(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	webhook := newTestWebhook("tenant_123", "Before", true)
	if err := repos.Webhook.Create(ctx, webhook); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	webhook.Name = "After"
	webhook.IsActive = false
	webhook.Events = []string{"submission.confirmed", "submission.failed"}
	if err := repos.Webhook.Update(ctx, webhook); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repos.Webhook.GetByID(ctx, webhook.ID)
	if got.Name != "After" || got.IsActive {
		t.Errorf("got = %+v", got)
	}
	if len(got.Events) != 2 {
		t.Errorf("Events = %v", got.Events)
	}
}

func TestWebhookRepository_Delete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	webhook := newTestWebhook("tenant_123", "Doomed", true)
	if err := repos.Webhook.Create(ctx, webhook); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repos.Webhook.Delete(ctx, webhook.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := repos.Webhook.GetByID(ctx, webhook.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
