package services

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
	"github.com/orgdesk/backend/usecase/tasks"
)

// TaskLister is the read side the hub re-queries on every refresh.
type TaskLister interface {
	List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error)
}

type watchSub struct {
	id     int
	filter repository.TaskFilter
	fn     tasks.SnapshotFunc
	// last delivered snapshot, serialized, to suppress no-op redeliveries
	last []byte
}

// WatchHub implements the live-subscription primitive: each subscriber gets
// the full matching task set immediately and again after every change.
// Local writes call Nudge; a polling ticker picks up writes from other
// instances. Refreshes run on a single goroutine, so delivery callbacks are
// serialized per hub.
type WatchHub struct {
	lister   TaskLister
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	subs   map[int]*watchSub
	nextID int

	nudgeCh chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
}

func NewWatchHub(lister TaskLister, interval time.Duration, logger *zap.Logger) *WatchHub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchHub{
		lister:   lister,
		interval: interval,
		logger:   logger,
		subs:     make(map[int]*watchSub),
		nudgeCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (h *WatchHub) Start() {
	go h.loop()
}

// Stop tears the refresh loop down. Subscribers receive nothing afterwards.
func (h *WatchHub) Stop() {
	close(h.stopCh)
	<-h.done
}

// Subscribe registers a snapshot consumer and delivers the current matches
// before returning. The returned function unsubscribes; callers that forget
// to invoke it keep receiving snapshots until the hub stops.
func (h *WatchHub) Subscribe(filter repository.TaskFilter, fn tasks.SnapshotFunc) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	sub := &watchSub{id: id, filter: filter, fn: fn}
	h.subs[id] = sub
	h.mu.Unlock()

	h.deliver(sub)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Nudge wakes the refresh loop after a local write. Non-blocking: a refresh
// already pending absorbs the signal.
func (h *WatchHub) Nudge() {
	select {
	case h.nudgeCh <- struct{}{}:
	default:
	}
}

var _ tasks.Feed = (*WatchHub)(nil)

func (h *WatchHub) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.refresh()
		case <-h.nudgeCh:
			h.refresh()
		case <-h.stopCh:
			return
		}
	}
}

func (h *WatchHub) refresh() {
	h.mu.Lock()
	subs := make([]*watchSub, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.deliver(sub)
	}
}

// deliver re-queries the store for one subscriber and hands over the snapshot
// when it differs from the last delivery.
func (h *WatchHub) deliver(sub *watchSub) {
	ctx, cancel := context.WithTimeout(context.Background(), h.interval)
	defer cancel()

	snapshot, err := h.lister.List(ctx, sub.filter)
	if err != nil {
		h.logger.Warn("watch refresh query failed", zap.Int("subscriber", sub.id), zap.Error(err))
		return
	}
	if snapshot == nil {
		snapshot = []domain.Task{}
	}

	serialized, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Warn("watch snapshot marshal failed", zap.Int("subscriber", sub.id), zap.Error(err))
		return
	}

	h.mu.Lock()
	if _, alive := h.subs[sub.id]; !alive {
		h.mu.Unlock()
		return
	}
	if sub.last != nil && bytes.Equal(sub.last, serialized) {
		h.mu.Unlock()
		return
	}
	sub.last = serialized
	h.mu.Unlock()

	sub.fn(snapshot)
}
