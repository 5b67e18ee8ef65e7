package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/orgdesk/backend/api/transport"
	"github.com/orgdesk/backend/pkg/httpcontext"
	"github.com/orgdesk/backend/repository"
)

type NotificationHandler struct {
	baseHandler
	notifications repository.NotificationRepository
}

func NewNotificationHandler(notifications repository.NotificationRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler:   newBaseHandler(adapter, logger),
		notifications: notifications,
	}
}

// @Summary List the caller's notifications
// @Tags notifications
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) ListNotifications(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	unreadOnly := string(ctx.QueryArgs().Peek("unread")) == "true"
	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 50)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	list, err := h.notifications.ListForUser(stdCtx, userID, unreadOnly, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(list, transport.ListMeta{Count: len(list), Limit: limit}))
}

// @Summary Mark a notification as read
// @Tags notifications
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondInvalid(ctx, "missing notification id")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.notifications.MarkRead(stdCtx, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}
