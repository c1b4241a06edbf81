package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type NotificationHandler struct {
	responder
	notifications Notifications
}

func NewNotificationHandler(notifications Notifications, opts Options) *NotificationHandler {
	return &NotificationHandler{responder: newResponder(opts), notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	unread, _ := strconv.ParseBool(c.Query("unread"))
	filter := models.NotificationFilter{
		UnreadOnly: unread,
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 20),
	}

	items, page, err := h.notifications.List(c.Request.Context(), req.ID, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, items, page)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "", gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), id, req.ID); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "All notifications marked as read", gin.H{"updated": updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), id, req.ID); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Notification deleted", nil)
}
