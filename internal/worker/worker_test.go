package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldset/fieldset-api/internal/models"
	"github.com/fieldset/fieldset-api/internal/repository"
)

// stubSubmissionRepo counts claim attempts and never has work.
type stubSubmissionRepo struct {
	repository.SubmissionRepository
	claims atomic.Int64
}

func (s *stubSubmissionRepo) ClaimPending(ctx context.Context) (*models.Submission, error) {
	s.claims.Add(1)
	return nil, nil
}

// stubDeliveryRepo never has due deliveries.
type stubDeliveryRepo struct {
	repository.WebhookDeliveryRepository
}

func (s *stubDeliveryRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error) {
	return nil, nil
}

func testRepos(sub *stubSubmissionRepo) *repository.Repositories {
	return &repository.Repositories{
		Submission:      sub,
		WebhookDelivery: &stubDeliveryRepo{},
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(testRepos(&stubSubmissionRepo{}), nil, nil, Config{}, nil)

	if w.pollInterval != 5*time.Second {
		t.Errorf("pollInterval = %v, want 5s (default)", w.pollInterval)
	}
	if w.concurrency != 3 {
		t.Errorf("concurrency = %d, want 3 (default)", w.concurrency)
	}
	if w.deliveryBatch != 20 {
		t.Errorf("deliveryBatch = %d, want 20 (default)", w.deliveryBatch)
	}
	if w.logger == nil {
		t.Error("logger should be set to default")
	}
	if w.stop == nil {
		t.Error("stop channel should be initialized")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	cfg := Config{
		PollInterval:  10 * time.Second,
		Concurrency:   8,
		DeliveryBatch: 5,
	}

	w := New(testRepos(&stubSubmissionRepo{}), nil, nil, cfg, slog.Default())

	if w.pollInterval != 10*time.Second {
		t.Errorf("pollInterval = %v, want 10s", w.pollInterval)
	}
	if w.concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", w.concurrency)
	}
	if w.deliveryBatch != 5 {
		t.Errorf("deliveryBatch = %d, want 5", w.deliveryBatch)
	}
}

func TestNew_PartialDefaults(t *testing.T) {
	cfg := Config{PollInterval: 15 * time.Second}

	w := New(testRepos(&stubSubmissionRepo{}), nil, nil, cfg, nil)

	if w.pollInterval != 15*time.Second {
		t.Errorf("pollInterval = %v, want 15s", w.pollInterval)
	}
	if w.concurrency != 3 {
		t.Errorf("concurrency = %d, want 3 (default)", w.concurrency)
	}
}

func TestWorker_StartStop(t *testing.T) {
	cfg := Config{
		PollInterval: 50 * time.Millisecond,
		Concurrency:  2,
	}

	w := New(testRepos(&stubSubmissionRepo{}), nil, nil, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)

	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("Stop() timed out")
	}
}

func TestWorker_StopViaContext(t *testing.T) {
	cfg := Config{
		PollInterval: 50 * time.Millisecond,
		Concurrency:  1,
	}

	w := New(testRepos(&stubSubmissionRepo{}), nil, nil, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())

	w.Start(ctx)
	cancel()

	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Stop() timed out after context cancellation")
	}
}

func TestWorker_PollsForWork(t *testing.T) {
	sub := &stubSubmissionRepo{}
	cfg := Config{
		PollInterval: 10 * time.Millisecond,
		Concurrency:  1,
	}

	w := New(testRepos(sub), nil, nil, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	if sub.claims.Load() == 0 {
		t.Error("expected at least one claim attempt")
	}
}
