package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
	"github.com/orgdesk/backend/usecase"
)

// SnapshotFunc receives the full matching task set on every delivery.
type SnapshotFunc func([]domain.Task)

// Feed is the live-subscription boundary. Subscribe delivers the current
// matches immediately and again after every change; the returned function
// tears the subscription down. Nudge wakes the feed after a local write.
type Feed interface {
	Subscribe(filter repository.TaskFilter, fn SnapshotFunc) (unsubscribe func())
	Nudge()
}

// AuthorizeVerifier decides whether verifierID may verify the task. Supplied
// by the roster layer so the engine stays decoupled from group internals.
type AuthorizeVerifier func(ctx context.Context, verifierID string, task *domain.Task) (bool, error)

// Engine owns the task entity, its status state machine, the assignment model
// and the verification handshake.
type Engine struct {
	tasks     repository.TaskRepository
	groups    repository.GroupRepository
	users     repository.UserRepository
	notifier  usecase.NotificationDispatcher
	authorize AuthorizeVerifier
	feed      Feed
	logger    *zap.Logger
	now       func() time.Time
}

func New(
	tasks repository.TaskRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	notifier usecase.NotificationDispatcher,
	authorize AuthorizeVerifier,
	feed Feed,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tasks:     tasks,
		groups:    groups,
		users:     users,
		notifier:  notifier,
		authorize: authorize,
		feed:      feed,
		logger:    logger,
		now:       time.Now,
	}
}

// NewRosterAuthorizer builds the default verification authority check: the
// verifier must be the task's creator or an active lead of the task's group.
func NewRosterAuthorizer(groups repository.GroupRepository) AuthorizeVerifier {
	return func(ctx context.Context, verifierID string, task *domain.Task) (bool, error) {
		if verifierID == "" || task == nil {
			return false, nil
		}
		if verifierID == task.AssignedBy {
			return true, nil
		}
		groupID := task.GroupID()
		if groupID == "" {
			return false, nil
		}
		member, err := groups.GetMember(ctx, groupID, verifierID)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				return false, nil
			}
			return false, err
		}
		return member.Lead, nil
	}
}

// CreateInput carries the caller-supplied fields for a new task.
type CreateInput struct {
	Title          string
	Description    string
	Mode           domain.AssignmentMode
	Assignee       *domain.UserRef
	Group          *domain.GroupRef
	AssignedBy     string
	Priority       domain.Priority
	Difficulty     domain.Difficulty
	EstimatedHours float64
	Deadline       time.Time
	Tags           []string
	Subtasks       []domain.Subtask
	Blockers       []string
}

// Create validates the input, persists a new pending task and fans out
// assignment notifications. Fan-out is best-effort: a delivery failure is
// logged and never surfaced as a failure of the create.
func (e *Engine) Create(ctx context.Context, input CreateInput) (*domain.Task, error) {
	task, err := e.buildTask(ctx, input)
	if err != nil {
		return nil, err
	}

	created, err := e.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	e.fanOutAssignment(ctx, created)
	e.nudge()
	return created, nil
}

func (e *Engine) buildTask(ctx context.Context, input CreateInput) (*domain.Task, error) {
	if input.Title == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title is required")
	}
	if input.Description == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "description is required")
	}
	if input.AssignedBy == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "assigned_by is required")
	}
	if input.Deadline.IsZero() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "deadline is required")
	}
	if input.EstimatedHours < 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "estimated_hours must be positive")
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	switch priority {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
	default:
		return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown priority %q", input.Priority))
	}

	switch input.Mode {
	case domain.AssignIndividual:
		if input.Assignee == nil || input.Assignee.ID == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "individual task requires an assignee")
		}
		user, err := e.users.GetByID(ctx, input.Assignee.ID)
		if err != nil {
			return nil, err
		}
		if input.Assignee.Name == "" {
			input.Assignee.Name = user.DisplayName
		}
	case domain.AssignGroup:
		if input.Group == nil || input.Group.ID == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "group task requires a group")
		}
		group, err := e.groups.GetByID(ctx, input.Group.ID)
		if err != nil {
			return nil, err
		}
		if !group.IsActive() {
			return nil, domain.ErrGroupInactive
		}
		if input.Group.Name == "" {
			input.Group.Name = group.Name
		}
	default:
		return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown assignment mode %q", input.Mode))
	}

	subtasks := input.Subtasks
	if subtasks == nil {
		subtasks = []domain.Subtask{}
	}
	blockers := input.Blockers
	if blockers == nil {
		blockers = []string{}
	}

	return &domain.Task{
		Title:          input.Title,
		Description:    input.Description,
		Mode:           input.Mode,
		Assignee:       input.Assignee,
		Group:          input.Group,
		AssignedBy:     input.AssignedBy,
		Priority:       priority,
		Difficulty:     input.Difficulty,
		EstimatedHours: input.EstimatedHours,
		Deadline:       input.Deadline,
		Tags:           input.Tags,
		Subtasks:       subtasks,
		Blockers:       blockers,
		Status:         domain.StatusPending,
	}, nil
}

// ChangeStatus moves a task along the lifecycle graph. Moving to review stamps
// submitted_at; no other transition touches the submission or verification
// fields. Completion only happens through Verify.
func (e *Engine) ChangeStatus(ctx context.Context, taskID string, newStatus domain.Status) (*domain.Task, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown status %q", newStatus))
	}
	if newStatus == domain.StatusCompleted {
		return nil, domain.NewError(domain.ErrCodeInvalid, "tasks are completed through verification")
	}

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(task.Status, newStatus) {
		return nil, domain.NewTransitionError(task.Status, newStatus)
	}

	task.Status = newStatus
	if newStatus == domain.StatusReview {
		submitted := e.now()
		task.SubmittedAt = &submitted
	}

	if err := e.tasks.SetStatus(ctx, task); err != nil {
		return nil, err
	}

	e.nudge()
	return task, nil
}

// Verify accepts a review-state task as done, stamping the verifier identity
// and moving the task to its terminal state. The injected authorization
// predicate gates the call.
func (e *Engine) Verify(ctx context.Context, taskID, verifierID, verifierName string) (*domain.Task, error) {
	if verifierID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "verifier id is required")
	}

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.StatusReview {
		return nil, domain.NewTransitionError(task.Status, domain.StatusCompleted)
	}

	if e.authorize != nil {
		allowed, err := e.authorize(ctx, verifierID, task)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, domain.ErrPermissionDenied
		}
	}

	verified := e.now()
	task.Status = domain.StatusCompleted
	task.VerifiedBy = verifierID
	task.VerifiedByName = verifierName
	task.VerifiedAt = &verified

	if err := e.tasks.SetStatus(ctx, task); err != nil {
		return nil, err
	}

	e.fanOutVerification(ctx, task)
	e.nudge()
	return task, nil
}

// Update applies a partial field patch. Assignment mode and creator are
// immutable and not present in the patch type.
func (e *Engine) Update(ctx context.Context, taskID string, patch repository.TaskPatch) (*domain.Task, error) {
	updated, err := e.tasks.Patch(ctx, taskID, patch)
	if err != nil {
		return nil, err
	}
	e.nudge()
	return updated, nil
}

// Delete removes a task permanently. There is no cascade: notifications stay,
// and blocker references to the deleted id go dangling (blockers are advisory).
func (e *Engine) Delete(ctx context.Context, taskID string) error {
	if err := e.tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	e.nudge()
	return nil
}

func (e *Engine) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	return e.tasks.GetByID(ctx, taskID)
}

func (e *Engine) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return e.tasks.List(ctx, filter)
}

// BlockersSatisfied reports whether every blocker of the task is completed.
// No operation consults it today: blockers are advisory, shown to humans. The
// hook exists so enforcement can be added without an API break.
func (e *Engine) BlockersSatisfied(ctx context.Context, task *domain.Task) (bool, error) {
	if task == nil {
		return true, nil
	}
	for _, id := range task.Blockers {
		blocker, err := e.tasks.GetByID(ctx, id)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				// Dangling reference from a deleted task; never blocks.
				continue
			}
			return false, err
		}
		if !blocker.IsCompleted() {
			return false, nil
		}
	}
	return true, nil
}

// SubscribeAllTasks delivers the full task set now and after every change.
func (e *Engine) SubscribeAllTasks(fn SnapshotFunc) (unsubscribe func()) {
	if e.feed == nil {
		return func() {}
	}
	return e.feed.Subscribe(repository.TaskFilter{}, fn)
}

// SubscribeUserTasks delivers the tasks a member sees: direct assignments plus
// tasks inherited from the listed groups.
func (e *Engine) SubscribeUserTasks(userID string, groupIDs []string, fn SnapshotFunc) (unsubscribe func()) {
	if e.feed == nil {
		return func() {}
	}
	return e.feed.Subscribe(repository.TaskFilter{AssigneeID: userID, GroupIDs: groupIDs}, fn)
}

func (e *Engine) fanOutAssignment(ctx context.Context, task *domain.Task) {
	if e.notifier == nil {
		return
	}

	switch task.Mode {
	case domain.AssignIndividual:
		if task.AssigneeID() == "" || task.AssigneeID() == task.AssignedBy {
			return
		}
		e.dispatch(ctx, task.AssigneeID(), domain.NotifyTaskAssigned,
			"New task assigned", fmt.Sprintf("You were assigned %q", task.Title), task.ID)
	case domain.AssignGroup:
		members, err := e.groups.ListActiveMembers(ctx, task.GroupID())
		if err != nil {
			e.logger.Error("roster lookup for fan-out failed",
				zap.String("task_id", task.ID), zap.String("group_id", task.GroupID()), zap.Error(err))
			return
		}
		for _, m := range members {
			if m.UserID == task.AssignedBy {
				continue
			}
			e.dispatch(ctx, m.UserID, domain.NotifyTaskAssigned,
				"New group task", fmt.Sprintf("%s received %q", task.Group.Name, task.Title), task.ID)
		}
	}
}

func (e *Engine) fanOutVerification(ctx context.Context, task *domain.Task) {
	if e.notifier == nil {
		return
	}
	if task.AssigneeID() != "" && task.AssigneeID() != task.VerifiedBy {
		e.dispatch(ctx, task.AssigneeID(), domain.NotifyTaskVerified,
			"Task verified", fmt.Sprintf("%q was verified by %s", task.Title, task.VerifiedByName), task.ID)
	}
}

// dispatch is fire-and-forget: one recipient failing never stops the rest.
func (e *Engine) dispatch(ctx context.Context, userID string, kind domain.NotificationKind, title, message, taskID string) {
	n := &domain.Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Link:    "/tasks/" + taskID,
	}
	if err := e.notifier.Dispatch(ctx, n); err != nil {
		e.logger.Warn("notification dispatch failed",
			zap.String("user_id", userID), zap.String("task_id", taskID), zap.Error(err))
	}
}

func (e *Engine) nudge() {
	if e.feed != nil {
		e.feed.Nudge()
	}
}
