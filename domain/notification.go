package domain

import "time"

// NotificationKind classifies what a notification announces.
type NotificationKind string

const (
	NotifyTaskAssigned NotificationKind = "task_assigned"
	NotifyTaskVerified NotificationKind = "task_verified"
)

// Notification is a per-user announcement record. Delivery is fire-and-forget
// from the point of view of the operation that triggered it.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
