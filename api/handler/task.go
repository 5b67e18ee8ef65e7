package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/orgdesk/backend/api/transport"
	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/pkg/httpcontext"
	"github.com/orgdesk/backend/repository"
	"github.com/orgdesk/backend/usecase/tasks"
)

type TaskHandler struct {
	baseHandler
	engine *tasks.Engine
	users  repository.UserRepository
}

func NewTaskHandler(engine *tasks.Engine, users repository.UserRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		engine:      engine,
		users:       users,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) ListTasks(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}

	filter := repository.TaskFilter{
		AssigneeID: string(ctx.QueryArgs().Peek("assignee_id")),
		GroupID:    string(ctx.QueryArgs().Peek("group_id")),
		AssignedBy: string(ctx.QueryArgs().Peek("assigned_by")),
		Status:     domain.Status(ctx.QueryArgs().Peek("status")),
		Limit:      parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
		Offset:     parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	list, err := h.engine.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	meta := transport.ListMeta{Count: len(list), Limit: filter.Limit, Offset: filter.Offset}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(list, meta))
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	id := h.taskID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.engine.Get(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.CreateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	input := tasks.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Mode:           domain.AssignmentMode(req.Mode),
		AssignedBy:     userID,
		Priority:       domain.Priority(req.Priority),
		Difficulty:     domain.Difficulty(req.Difficulty),
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
		Subtasks:       subtasksFromRequest(req.Subtasks),
		Blockers:       req.Blockers,
	}
	if req.AssigneeID != "" {
		input.Assignee = &domain.UserRef{ID: req.AssigneeID}
	}
	if req.GroupID != "" {
		input.Group = &domain.GroupRef{ID: req.GroupID}
	}
	if req.Deadline != "" {
		parsed, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			h.respondInvalid(ctx, "deadline must be RFC3339")
			return
		}
		input.Deadline = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.engine.Create(stdCtx, input)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task
// @Tags tasks
// @Router /api/v1/tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	id := h.taskID(ctx)
	if id == "" {
		return
	}

	var req transport.UpdateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	patch := repository.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Deadline:       req.Deadline,
		Tags:           req.Tags,
		Subtasks:       subtasksFromRequest(req.Subtasks),
		Blockers:       req.Blockers,
	}
	if req.AssigneeID != nil {
		patch.Assignee = &domain.UserRef{ID: *req.AssigneeID}
	}
	if req.GroupID != nil {
		patch.Group = &domain.GroupRef{ID: *req.GroupID}
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		patch.Priority = &p
	}
	if req.Difficulty != nil {
		d := domain.Difficulty(*req.Difficulty)
		patch.Difficulty = &d
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.engine.Update(stdCtx, id, patch)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	id := h.taskID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.engine.Delete(stdCtx, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Start a pending task
// @Tags tasks
// @Router /api/v1/tasks/{id}/start [post]
func (h *TaskHandler) StartTask(ctx *fasthttp.RequestCtx) {
	h.changeStatus(ctx, domain.StatusInProgress)
}

// @Summary Submit a task for review
// @Tags tasks
// @Router /api/v1/tasks/{id}/submit [post]
func (h *TaskHandler) SubmitTask(ctx *fasthttp.RequestCtx) {
	h.changeStatus(ctx, domain.StatusReview)
}

// @Summary Verify a submitted task
// @Tags tasks
// @Router /api/v1/tasks/{id}/verify [post]
func (h *TaskHandler) VerifyTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id := h.taskID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	verified, err := h.engine.Verify(stdCtx, id, userID, h.displayName(stdCtx, userID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, verified)
}

func (h *TaskHandler) changeStatus(ctx *fasthttp.RequestCtx, status domain.Status) {
	if h.userID(ctx) == "" {
		return
	}
	id := h.taskID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.engine.ChangeStatus(stdCtx, id, status)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing task id", nil))
	}
	return id
}

// displayName is best-effort: verification still succeeds when the roster
// lookup fails, the stored name is just empty.
func (h *TaskHandler) displayName(ctx context.Context, userID string) string {
	if h.users == nil {
		return ""
	}
	user, err := h.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.DisplayName
}

func subtasksFromRequest(in []transport.SubtaskRequest) []domain.Subtask {
	if in == nil {
		return nil
	}
	out := make([]domain.Subtask, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Subtask{ID: s.ID, Title: s.Title, Completed: s.Completed})
	}
	return out
}
