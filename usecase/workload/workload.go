// Package workload derives per-member dashboard views from a task snapshot.
//
// Everything here is a pure projection: the same snapshot and roster always
// produce the same result, so callers can safely recompute on every change
// feed delivery.
package workload

import (
	"github.com/orgdesk/backend/domain"
)

// MemberView identifies one member and the groups whose tasks they inherit.
type MemberView struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	GroupIDs    []string `json:"group_ids,omitempty"`
}

// Buckets partitions a member's tasks by lifecycle state.
type Buckets struct {
	Unactive  []domain.Task `json:"unactive"`
	Active    []domain.Task `json:"active"`
	Submitted []domain.Task `json:"submitted"`
	Completed []domain.Task `json:"completed"`
}

// Counts summarizes bucket sizes for compact dashboard payloads.
type Counts struct {
	Unactive  int `json:"unactive"`
	Active    int `json:"active"`
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// MemberWorkload is one member's bucketed view of the task snapshot.
type MemberWorkload struct {
	UserID         string  `json:"user_id"`
	DisplayName    string  `json:"display_name"`
	Buckets        Buckets `json:"buckets"`
	Counts         Counts  `json:"counts"`
	CompletionRate float64 `json:"completion_rate"`
}

// Compute buckets each member's visible tasks by status. A member sees a task
// when it is assigned to them directly, or when it is routed to a group they
// belong to (group-mode, or group context with no direct assignee).
func Compute(tasks []domain.Task, members []MemberView) []MemberWorkload {
	out := make([]MemberWorkload, 0, len(members))
	for _, member := range members {
		w := MemberWorkload{UserID: member.UserID, DisplayName: member.DisplayName}
		for i := range tasks {
			task := &tasks[i]
			if !visibleTo(task, member) {
				continue
			}
			switch task.Status {
			case domain.StatusInProgress:
				w.Buckets.Active = append(w.Buckets.Active, *task)
			case domain.StatusReview:
				w.Buckets.Submitted = append(w.Buckets.Submitted, *task)
			case domain.StatusCompleted:
				w.Buckets.Completed = append(w.Buckets.Completed, *task)
			default:
				w.Buckets.Unactive = append(w.Buckets.Unactive, *task)
			}
		}
		w.Counts = Counts{
			Unactive:  len(w.Buckets.Unactive),
			Active:    len(w.Buckets.Active),
			Submitted: len(w.Buckets.Submitted),
			Completed: len(w.Buckets.Completed),
		}
		w.Counts.Total = w.Counts.Unactive + w.Counts.Active + w.Counts.Submitted + w.Counts.Completed
		if w.Counts.Total > 0 {
			w.CompletionRate = float64(w.Counts.Completed) / float64(w.Counts.Total)
		}
		out = append(out, w)
	}
	return out
}

// VerificationQueueFor filters the snapshot to review-state tasks the viewer
// is authorized to verify: tasks they created, or tasks routed to a group
// they lead. Every dashboard surface shares this one predicate.
func VerificationQueueFor(viewerID string, leadOf []string, tasks []domain.Task) []domain.Task {
	leads := make(map[string]bool, len(leadOf))
	for _, id := range leadOf {
		leads[id] = true
	}

	var queue []domain.Task
	for _, task := range tasks {
		if task.Status != domain.StatusReview {
			continue
		}
		if task.AssignedBy == viewerID || (task.GroupID() != "" && leads[task.GroupID()]) {
			queue = append(queue, task)
		}
	}
	return queue
}

func visibleTo(task *domain.Task, member MemberView) bool {
	if task.AssigneeID() == member.UserID {
		return true
	}
	for _, groupID := range member.GroupIDs {
		if task.RoutedToGroup(groupID) {
			return true
		}
	}
	return false
}
