package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
)

type fakeLister struct {
	mu    sync.Mutex
	tasks []domain.Task
}

func (f *fakeLister) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Task
	for _, t := range f.tasks {
		if filter.AssigneeID != "" && t.AssigneeID() != filter.AssigneeID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeLister) set(tasks []domain.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

func waitSnapshot(t *testing.T, ch <-chan []domain.Task) []domain.Task {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestWatchHub_DeliversOnSubscribeAndNudge(t *testing.T) {
	lister := &fakeLister{}
	lister.set([]domain.Task{{ID: "t1", Status: domain.StatusPending}})

	hub := NewWatchHub(lister, time.Hour, nil)
	hub.Start()
	defer hub.Stop()

	ch := make(chan []domain.Task, 4)
	unsubscribe := hub.Subscribe(repository.TaskFilter{}, func(tasks []domain.Task) {
		ch <- tasks
	})
	defer unsubscribe()

	first := waitSnapshot(t, ch)
	if len(first) != 1 || first[0].ID != "t1" {
		t.Fatalf("initial snapshot = %v, want [t1]", first)
	}

	lister.set([]domain.Task{
		{ID: "t1", Status: domain.StatusPending},
		{ID: "t2", Status: domain.StatusReview},
	})
	hub.Nudge()

	second := waitSnapshot(t, ch)
	if len(second) != 2 {
		t.Fatalf("snapshot after nudge has %d tasks, want 2", len(second))
	}
}

func TestWatchHub_SuppressesUnchangedSnapshots(t *testing.T) {
	lister := &fakeLister{}
	lister.set([]domain.Task{{ID: "t1"}})

	hub := NewWatchHub(lister, time.Hour, nil)
	hub.Start()
	defer hub.Stop()

	ch := make(chan []domain.Task, 4)
	unsubscribe := hub.Subscribe(repository.TaskFilter{}, func(tasks []domain.Task) {
		ch <- tasks
	})
	defer unsubscribe()

	waitSnapshot(t, ch)

	hub.Nudge()
	select {
	case <-ch:
		t.Error("unchanged snapshot should not be redelivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchHub_FilterAndUnsubscribe(t *testing.T) {
	lister := &fakeLister{}
	lister.set([]domain.Task{
		{ID: "t1", Assignee: &domain.UserRef{ID: "u1"}},
		{ID: "t2", Assignee: &domain.UserRef{ID: "u2"}},
	})

	hub := NewWatchHub(lister, time.Hour, nil)
	hub.Start()
	defer hub.Stop()

	ch := make(chan []domain.Task, 4)
	unsubscribe := hub.Subscribe(repository.TaskFilter{AssigneeID: "u1"}, func(tasks []domain.Task) {
		ch <- tasks
	})

	snap := waitSnapshot(t, ch)
	if len(snap) != 1 || snap[0].ID != "t1" {
		t.Fatalf("filtered snapshot = %v, want [t1]", snap)
	}

	unsubscribe()
	lister.set([]domain.Task{{ID: "t3", Assignee: &domain.UserRef{ID: "u1"}}})
	hub.Nudge()

	select {
	case <-ch:
		t.Error("unsubscribed consumer must not receive snapshots")
	case <-time.After(200 * time.Millisecond):
	}
}
