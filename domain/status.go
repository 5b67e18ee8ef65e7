package domain

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReview, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the status graph allows moving from one state
// to the other. Pending may start (in_progress) or submit straight to review;
// in_progress may submit; review may complete through verification. Completed
// is terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusReview
	case StatusInProgress:
		return to == StatusReview
	case StatusReview:
		return to == StatusCompleted
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions leave the state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}
