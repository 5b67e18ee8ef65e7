package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/internal/infrastructure/outbox"
	"github.com/orgdesk/backend/repository"
	"github.com/orgdesk/backend/usecase"
)

// NotifierConfig controls how frequently the outbox is drained.
type NotifierConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// Notifier is the notification dispatcher. Dispatch enqueues into a durable
// outbox and returns immediately; a cron-driven drain delivers entries into
// the notifications table. Delivery failures never reach the code that
// triggered the notification.
type Notifier struct {
	store  *outbox.Store
	repo   repository.NotificationRepository
	logger *zap.Logger
	cron   *cron.Cron
	cfg    NotifierConfig
}

func NewNotifier(store *outbox.Store, repo repository.NotificationRepository, logger *zap.Logger, cfg NotifierConfig) *Notifier {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Notifier{
		store:  store,
		repo:   repo,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = n.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := n.Drain(ctx); err != nil {
			n.logger.Error("outbox drain failed", zap.Error(err))
		}
	})

	return n
}

// Dispatch queues one notification for delivery. With no outbox configured it
// falls through to a direct write.
func (n *Notifier) Dispatch(ctx context.Context, notification *domain.Notification) error {
	if notification == nil || notification.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if n.store == nil {
		return n.repo.Create(ctx, notification)
	}
	return n.store.Enqueue(outbox.FromNotification(notification))
}

// Drain delivers queued entries. An entry that keeps failing past the retry
// budget is dropped with a warning rather than wedging the queue.
func (n *Notifier) Drain(ctx context.Context) error {
	if n.store == nil {
		return nil
	}

	entries, err := n.store.Batch(n.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.repo.Create(ctx, entry.Notification()); err != nil {
			if entry.Attempts+1 >= n.cfg.MaxRetries {
				n.logger.Warn("dropping undeliverable notification",
					zap.String("id", entry.ID),
					zap.String("user_id", entry.UserID),
					zap.Int("attempts", entry.Attempts+1),
					zap.Error(err))
				if removeErr := n.store.Remove(entry); removeErr != nil {
					n.logger.Error("outbox remove failed", zap.String("id", entry.ID), zap.Error(removeErr))
				}
				continue
			}
			if requeueErr := n.store.Requeue(entry); requeueErr != nil {
				n.logger.Error("outbox requeue failed", zap.String("id", entry.ID), zap.Error(requeueErr))
			}
			continue
		}
		if err := n.store.Remove(entry); err != nil {
			n.logger.Error("outbox remove failed", zap.String("id", entry.ID), zap.Error(err))
		}
	}

	return n.store.Cleanup(time.Now().Add(-n.cfg.Retention))
}

// Start launches the cron scheduler.
func (n *Notifier) Start() {
	if n == nil || n.cron == nil {
		return
	}
	n.cron.Start()
	n.logger.Info("notification dispatcher started")
}

// Stop gracefully stops the scheduler.
func (n *Notifier) Stop(ctx context.Context) {
	if n == nil || n.cron == nil {
		return
	}
	stopCtx := n.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	n.logger.Info("notification dispatcher stopped")
}

var _ usecase.NotificationDispatcher = (*Notifier)(nil)
