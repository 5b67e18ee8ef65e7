package transport

// SubtaskRequest is one checklist entry on a task payload.
type SubtaskRequest struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// CreateTaskRequest carries a new task. The authenticated caller becomes the
// assigner; assignee and group are referenced by id and resolved server-side.
type CreateTaskRequest struct {
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Mode           string           `json:"assignment_mode"`
	AssigneeID     string           `json:"assignee_id"`
	GroupID        string           `json:"group_id"`
	Priority       string           `json:"priority"`
	Difficulty     string           `json:"difficulty"`
	EstimatedHours float64          `json:"estimated_hours"`
	Deadline       string           `json:"deadline"`
	Tags           []string         `json:"tags"`
	Subtasks       []SubtaskRequest `json:"subtasks"`
	Blockers       []string         `json:"blockers"`
}

// UpdateTaskRequest carries a partial task update. Absent fields are left
// untouched; assignment mode and assigner are immutable after creation.
type UpdateTaskRequest struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	AssigneeID     *string          `json:"assignee_id"`
	GroupID        *string          `json:"group_id"`
	Priority       *string          `json:"priority"`
	Difficulty     *string          `json:"difficulty"`
	EstimatedHours *float64         `json:"estimated_hours"`
	Deadline       *string          `json:"deadline"`
	Tags           []string         `json:"tags"`
	Subtasks       []SubtaskRequest `json:"subtasks"`
	Blockers       []string         `json:"blockers"`
}

type CreateGroupRequest struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type MembershipRequest struct {
	UserID string `json:"user_id"`
	Lead   bool   `json:"lead"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}
