package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/orgdesk/backend/domain"
)

// Entry is one notification waiting for delivery into the notifications table.
type Entry struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Kind      domain.NotificationKind `json:"kind"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Link      string                  `json:"link,omitempty"`
	Attempts  int                     `json:"attempts"`
	Timestamp time.Time               `json:"timestamp"`

	bucketKey []byte
}

// FromNotification wraps a notification for queueing, assigning an id when the
// caller left it empty so redelivery stays idempotent downstream.
func FromNotification(n *domain.Notification) Entry {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return Entry{
		ID:      n.ID,
		UserID:  n.UserID,
		Kind:    n.Kind,
		Title:   n.Title,
		Message: n.Message,
		Link:    n.Link,
	}
}

// Notification converts the entry back to its domain form for delivery.
func (e *Entry) Notification() *domain.Notification {
	return &domain.Notification{
		ID:      e.ID,
		UserID:  e.UserID,
		Kind:    e.Kind,
		Title:   e.Title,
		Message: e.Message,
		Link:    e.Link,
	}
}

func (e *Entry) normalize() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}
