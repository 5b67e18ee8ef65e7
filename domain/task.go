package domain

import "time"

// AssignmentMode determines whether a task is routed to a single member or a group.
type AssignmentMode string

const (
	AssignIndividual AssignmentMode = "individual"
	AssignGroup      AssignmentMode = "group"
)

// Priority of a task for display and sorting.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Difficulty is an optional effort estimate.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// UserRef pairs a user identifier with its denormalized display name.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// GroupRef pairs a group identifier with its denormalized display name.
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Subtask is a purely informational checklist entry. Completion of subtasks
// does not gate the parent task's status transitions.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task is the unit of assignable work.
//
// Exactly one of Assignee/Group is the authoritative routing target, selected
// by Mode; an individual task may still carry a Group purely as context for
// display and workload aggregation.
type Task struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Mode           AssignmentMode `json:"assignment_mode"`
	Assignee       *UserRef       `json:"assignee,omitempty"`
	Group          *GroupRef      `json:"group,omitempty"`
	AssignedBy     string         `json:"assigned_by"`
	Priority       Priority       `json:"priority"`
	Difficulty     Difficulty     `json:"difficulty,omitempty"`
	EstimatedHours float64        `json:"estimated_hours,omitempty"`
	Deadline       time.Time      `json:"deadline"`
	Tags           []string       `json:"tags,omitempty"`
	Subtasks       []Subtask      `json:"subtasks"`
	Blockers       []string       `json:"blockers"`
	Status         Status         `json:"status"`
	SubmittedAt    *time.Time     `json:"submitted_at,omitempty"`
	VerifiedBy     string         `json:"verified_by,omitempty"`
	VerifiedByName string         `json:"verified_by_name,omitempty"`
	VerifiedAt     *time.Time     `json:"verified_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AssigneeID returns the direct assignee id, or "" when the task has none.
func (t *Task) AssigneeID() string {
	if t == nil || t.Assignee == nil {
		return ""
	}
	return t.Assignee.ID
}

// GroupID returns the attached group id, or "" when the task has none.
func (t *Task) GroupID() string {
	if t == nil || t.Group == nil {
		return ""
	}
	return t.Group.ID
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

// RoutedToGroup reports whether members of groupID inherit this task: either
// the task is group-mode, or it carries the group and no direct assignee.
func (t *Task) RoutedToGroup(groupID string) bool {
	if t == nil || groupID == "" || t.GroupID() != groupID {
		return false
	}
	return t.Mode == AssignGroup || t.Assignee == nil
}
