package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
)

const taskColumns = `
	id, title, description, assignment_mode,
	assignee_id, assignee_name, group_id, group_name, assigned_by,
	priority, difficulty, estimated_hours, deadline,
	tags, subtasks, blockers,
	status, submitted_at, verified_by, verified_by_name, verified_at,
	created_at, updated_at
`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	// The user-feed filter mirrors the inheritance rule: a member sees tasks
	// assigned directly to them, plus tasks routed to a group they belong to
	// with no direct assignee (or explicitly group-mode).
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR assigned_by = $1)
	  AND ($2::text = '' OR status = $2)
	  AND ($3 = '' OR group_id = $3)
	  AND (
		($4 = '' AND cardinality($5::text[]) = 0)
		OR assignee_id = $4
		OR (group_id = ANY($5::text[]) AND (assignee_id IS NULL OR assignment_mode = 'group'))
	  )
	ORDER BY created_at DESC
	LIMIT $6 OFFSET $7
	`
	groupIDs := filter.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	rows, err := r.pool.Query(ctx, query,
		filter.AssignedBy,
		string(filter.Status),
		filter.GroupID,
		filter.AssigneeID,
		groupIDs,
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (
		id, title, description, assignment_mode,
		assignee_id, assignee_name, group_id, group_name, assigned_by,
		priority, difficulty, estimated_hours, deadline,
		tags, subtasks, blockers, status
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING created_at, updated_at
	`

	var assigneeID, assigneeName, groupID, groupName string
	if task.Assignee != nil {
		assigneeID, assigneeName = task.Assignee.ID, task.Assignee.Name
	}
	if task.Group != nil {
		groupID, groupName = task.Group.ID, task.Group.Name
	}

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Mode),
		nullString(assigneeID),
		nullString(assigneeName),
		nullString(groupID),
		nullString(groupName),
		task.AssignedBy,
		string(task.Priority),
		nullString(string(task.Difficulty)),
		task.EstimatedHours,
		task.Deadline,
		marshalJSON(task.Tags),
		marshalJSON(task.Subtasks),
		marshalJSON(task.Blockers),
		string(task.Status),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) Patch(ctx context.Context, id string, patch repository.TaskPatch) (*domain.Task, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyPatch(current, patch)

	const query = `
	UPDATE tasks
	SET title = $2,
		description = $3,
		assignee_id = $4,
		assignee_name = $5,
		group_id = $6,
		group_name = $7,
		priority = $8,
		difficulty = $9,
		estimated_hours = $10,
		deadline = $11,
		tags = $12,
		subtasks = $13,
		blockers = $14,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	var assigneeID, assigneeName, groupID, groupName string
	if current.Assignee != nil {
		assigneeID, assigneeName = current.Assignee.ID, current.Assignee.Name
	}
	if current.Group != nil {
		groupID, groupName = current.Group.ID, current.Group.Name
	}

	if err := r.pool.QueryRow(ctx, query,
		id,
		current.Title,
		current.Description,
		nullString(assigneeID),
		nullString(assigneeName),
		nullString(groupID),
		nullString(groupName),
		string(current.Priority),
		nullString(string(current.Difficulty)),
		current.EstimatedHours,
		current.Deadline,
		marshalJSON(current.Tags),
		marshalJSON(current.Subtasks),
		marshalJSON(current.Blockers),
	).Scan(&current.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	return current, nil
}

func (r *taskRepository) SetStatus(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET status = $2,
		submitted_at = $3,
		verified_by = $4,
		verified_by_name = $5,
		verified_at = $6,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		string(task.Status),
		nullTime(task.SubmittedAt),
		nullString(task.VerifiedBy),
		nullString(task.VerifiedByName),
		nullTime(task.VerifiedAt),
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func applyPatch(task *domain.Task, patch repository.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Assignee != nil {
		task.Assignee = patch.Assignee
	}
	if patch.Group != nil {
		task.Group = patch.Group
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Difficulty != nil {
		task.Difficulty = *patch.Difficulty
	}
	if patch.EstimatedHours != nil {
		task.EstimatedHours = *patch.EstimatedHours
	}
	if patch.Deadline != nil {
		if parsed, err := time.Parse(time.RFC3339, *patch.Deadline); err == nil {
			task.Deadline = parsed
		}
	}
	if patch.Tags != nil {
		task.Tags = patch.Tags
	}
	if patch.Subtasks != nil {
		task.Subtasks = patch.Subtasks
	}
	if patch.Blockers != nil {
		task.Blockers = patch.Blockers
	}
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var (
		task         domain.Task
		assigneeID   *string
		assigneeName *string
		groupID      *string
		groupName    *string
		difficulty   *string
		verifiedBy   *string
		verifiedName *string
		tags         []byte
		subtasks     []byte
		blockers     []byte
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Mode,
		&assigneeID,
		&assigneeName,
		&groupID,
		&groupName,
		&task.AssignedBy,
		&task.Priority,
		&difficulty,
		&task.EstimatedHours,
		&task.Deadline,
		&tags,
		&subtasks,
		&blockers,
		&task.Status,
		&task.SubmittedAt,
		&verifiedBy,
		&verifiedName,
		&task.VerifiedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	if assigneeID != nil {
		task.Assignee = &domain.UserRef{ID: *assigneeID}
		if assigneeName != nil {
			task.Assignee.Name = *assigneeName
		}
	}
	if groupID != nil {
		task.Group = &domain.GroupRef{ID: *groupID}
		if groupName != nil {
			task.Group.Name = *groupName
		}
	}
	if difficulty != nil {
		task.Difficulty = domain.Difficulty(*difficulty)
	}
	if verifiedBy != nil {
		task.VerifiedBy = *verifiedBy
	}
	if verifiedName != nil {
		task.VerifiedByName = *verifiedName
	}
	unmarshalJSON(tags, &task.Tags)
	unmarshalJSON(subtasks, &task.Subtasks)
	unmarshalJSON(blockers, &task.Blockers)
	if task.Subtasks == nil {
		task.Subtasks = []domain.Subtask{}
	}
	if task.Blockers == nil {
		task.Blockers = []string{}
	}

	return &task, nil
}
