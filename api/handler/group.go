package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/orgdesk/backend/api/transport"
	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/pkg/httpcontext"
	"github.com/orgdesk/backend/usecase/groups"
)

type GroupHandler struct {
	baseHandler
	roster *groups.Service
}

func NewGroupHandler(roster *groups.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		baseHandler: newBaseHandler(adapter, logger),
		roster:      roster,
	}
}

// @Summary List groups
// @Tags groups
// @Router /api/v1/groups [get]
func (h *GroupHandler) ListGroups(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	activeOnly := string(ctx.QueryArgs().Peek("active")) == "true"

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	list, err := h.roster.List(stdCtx, activeOnly)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(list, transport.ListMeta{Count: len(list)}))
}

// @Summary Create group
// @Tags groups
// @Router /api/v1/groups [post]
func (h *GroupHandler) CreateGroup(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}

	var req transport.CreateGroupRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Name == "" {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	group := &domain.Group{Name: req.Name, Active: true}
	if req.Active != nil {
		group.Active = *req.Active
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.roster.Create(stdCtx, group)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary List active members of a group
// @Tags groups
// @Router /api/v1/groups/{id}/members [get]
func (h *GroupHandler) ListMembers(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	groupID := h.groupID(ctx)
	if groupID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	members, err := h.roster.ListActiveMembers(stdCtx, groupID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(members, transport.ListMeta{Count: len(members)}))
}

// @Summary Add a member to a group
// @Tags groups
// @Router /api/v1/groups/{id}/members [post]
func (h *GroupHandler) AddMember(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	groupID := h.groupID(ctx)
	if groupID == "" {
		return
	}

	var req transport.MembershipRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.UserID == "" {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.roster.AddMember(stdCtx, groupID, req.UserID, req.Lead); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, nil)
}

// @Summary Remove a member from a group
// @Tags groups
// @Router /api/v1/groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	groupID := h.groupID(ctx)
	if groupID == "" {
		return
	}
	memberID, _ := ctx.UserValue("userId").(string)
	if memberID == "" {
		h.respondInvalid(ctx, "missing member id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.roster.RemoveMember(stdCtx, groupID, memberID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Promote or demote a member's lead flag
// @Tags groups
// @Router /api/v1/groups/{id}/members/{userId}/lead [put]
func (h *GroupHandler) SetLead(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	groupID := h.groupID(ctx)
	if groupID == "" {
		return
	}
	memberID, _ := ctx.UserValue("userId").(string)
	if memberID == "" {
		h.respondInvalid(ctx, "missing member id")
		return
	}

	var req transport.MembershipRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.roster.SetLead(stdCtx, groupID, memberID, req.Lead); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

func (h *GroupHandler) groupID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondInvalid(ctx, "missing group id")
	}
	return id
}
