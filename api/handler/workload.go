package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/pkg/httpcontext"
	"github.com/orgdesk/backend/repository"
	"github.com/orgdesk/backend/usecase/groups"
	"github.com/orgdesk/backend/usecase/tasks"
	"github.com/orgdesk/backend/usecase/workload"
)

// snapshotLimit bounds the task snapshot a single dashboard request pulls.
const snapshotLimit = 1000

type WorkloadHandler struct {
	baseHandler
	engine *tasks.Engine
	roster *groups.Service
}

func NewWorkloadHandler(engine *tasks.Engine, roster *groups.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *WorkloadHandler {
	return &WorkloadHandler{
		baseHandler: newBaseHandler(adapter, logger),
		engine:      engine,
		roster:      roster,
	}
}

// @Summary Per-member workload for a group
// @Tags workload
// @Router /api/v1/workload [get]
func (h *WorkloadHandler) GetWorkload(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	groupID := string(ctx.QueryArgs().Peek("group_id"))
	if groupID == "" {
		h.respondInvalid(ctx, "missing group_id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	members, err := h.roster.ListActiveMembers(stdCtx, groupID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	views := make([]workload.MemberView, 0, len(members))
	for _, m := range members {
		memberGroups, err := h.roster.GroupsOf(stdCtx, m.UserID)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		views = append(views, workload.MemberView{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			GroupIDs:    memberGroups,
		})
	}

	snapshot, err := h.engine.List(stdCtx, repository.TaskFilter{Limit: snapshotLimit})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	h.respondSuccess(ctx, http.StatusOK, workload.Compute(snapshot, views))
}

// @Summary Review-state tasks the caller may verify
// @Tags workload
// @Router /api/v1/verification-queue [get]
func (h *WorkloadHandler) GetVerificationQueue(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	leadOf, err := h.roster.LeadOf(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	submitted, err := h.engine.List(stdCtx, repository.TaskFilter{
		Status: domain.StatusReview,
		Limit:  snapshotLimit,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	h.respondSuccess(ctx, http.StatusOK, workload.VerificationQueueFor(userID, leadOf, submitted))
}
