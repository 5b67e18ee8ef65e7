package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/internal/infrastructure/outbox"
)

type fakeNotificationRepo struct {
	created []*domain.Notification
	failFor map[string]bool
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	if f.failFor[n.UserID] {
		return errors.New("insert refused")
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationRepo) ListForUser(_ context.Context, _ string, _ bool, _ int) ([]domain.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, _ string) error { return nil }

func newTestOutbox(t *testing.T) *outbox.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "orgdesk-notifier-*")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := outbox.Open(filepath.Join(dir, "outbox.db"), "outbox")
	if err != nil {
		t.Fatalf("outbox.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNotifier_DispatchAndDrain(t *testing.T) {
	store := newTestOutbox(t)
	repo := &fakeNotificationRepo{failFor: map[string]bool{}}
	notifier := NewNotifier(store, repo, nil, NotifierConfig{MaxRetries: 3})

	ctx := context.Background()
	for _, user := range []string{"u1", "u2"} {
		err := notifier.Dispatch(ctx, &domain.Notification{
			UserID: user,
			Kind:   domain.NotifyTaskAssigned,
			Title:  "New task",
		})
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	if len(repo.created) != 0 {
		t.Fatal("dispatch must not write directly when an outbox is configured")
	}

	if err := notifier.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(repo.created) != 2 {
		t.Errorf("delivered %d notifications, want 2", len(repo.created))
	}
	size, _ := store.Size()
	if size != 0 {
		t.Errorf("outbox size after drain = %d, want 0", size)
	}
}

func TestNotifier_FailedDeliveryRetriesThenDrops(t *testing.T) {
	store := newTestOutbox(t)
	repo := &fakeNotificationRepo{failFor: map[string]bool{"bad": true}}
	notifier := NewNotifier(store, repo, nil, NotifierConfig{MaxRetries: 2})

	ctx := context.Background()
	if err := notifier.Dispatch(ctx, &domain.Notification{UserID: "bad", Kind: domain.NotifyTaskAssigned}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := notifier.Dispatch(ctx, &domain.Notification{UserID: "good", Kind: domain.NotifyTaskAssigned}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// First drain: "bad" is requeued with one attempt, "good" delivers.
	if err := notifier.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0].UserID != "good" {
		t.Fatalf("created = %v, want only the good delivery", repo.created)
	}
	size, _ := store.Size()
	if size != 1 {
		t.Fatalf("outbox size = %d, want the bad entry requeued", size)
	}

	// Second drain exhausts the retry budget and drops the poison entry.
	if err := notifier.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	size, _ = store.Size()
	if size != 0 {
		t.Errorf("outbox size = %d, want poison entry dropped", size)
	}
}

func TestNotifier_DirectWriteWithoutOutbox(t *testing.T) {
	repo := &fakeNotificationRepo{failFor: map[string]bool{}}
	notifier := NewNotifier(nil, repo, nil, NotifierConfig{})

	err := notifier.Dispatch(context.Background(), &domain.Notification{
		UserID: "u1",
		Kind:   domain.NotifyTaskVerified,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(repo.created) != 1 {
		t.Errorf("created %d notifications, want 1", len(repo.created))
	}
}

func TestNotifier_StopIsBounded(t *testing.T) {
	repo := &fakeNotificationRepo{failFor: map[string]bool{}}
	notifier := NewNotifier(nil, repo, nil, NotifierConfig{Interval: time.Second})

	notifier.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	notifier.Stop(ctx)
}
