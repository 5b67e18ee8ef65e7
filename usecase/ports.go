package usecase

import (
	"context"

	"github.com/orgdesk/backend/domain"
)

// NotificationDispatcher abstracts notification delivery so use cases stay
// transport-agnostic. Dispatch is fire-and-forget from the caller's point of
// view: the implementation may buffer and deliver later.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) error
}
