package repository

import (
	"context"

	"github.com/orgdesk/backend/domain"
)

// TaskFilter narrows task queries. Zero values mean "any".
type TaskFilter struct {
	AssigneeID string
	GroupID    string
	// GroupIDs widens GroupID for inherited views: tasks routed to any of the
	// listed groups match. Used together with AssigneeID by the user feed.
	GroupIDs   []string
	AssignedBy string
	Status     domain.Status
	Limit      int
	Offset     int
}

// TaskPatch carries the partially updated fields of a task. Nil pointers leave
// the stored value untouched; AssignedBy and Mode are immutable and absent here.
type TaskPatch struct {
	Title          *string
	Description    *string
	Assignee       *domain.UserRef
	Group          *domain.GroupRef
	Priority       *domain.Priority
	Difficulty     *domain.Difficulty
	EstimatedHours *float64
	Deadline       *string
	Tags           []string
	Subtasks       []domain.Subtask
	Blockers       []string
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// Patch merges the provided fields into the stored row and refreshes
	// updated_at.
	Patch(ctx context.Context, id string, patch TaskPatch) (*domain.Task, error)
	// SetStatus writes the status and any lifecycle timestamps that go with it
	// (submitted_at for review, verifier fields for completed).
	SetStatus(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
}
