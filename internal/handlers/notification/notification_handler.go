// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"

	"collectsync-service/internal/domain/notification"
	"collectsync-service/internal/middleware"
	"collectsync-service/internal/notify"
	"collectsync-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	fanout *notify.Fanout
}

func NewNotificationHandler(fanout *notify.Fanout) *NotificationHandler {
	return &NotificationHandler{fanout: fanout}
}

func (h *NotificationHandler) List(c *gin.Context) {
	staffID, _ := middleware.GetStaffID(c)
	recs := h.fanout.List(staffID)
	response.Success(c, http.StatusOK, "notifications", gin.H{
		"notifications": recs,
		"unread":        h.fanout.UnreadCount(staffID),
	})
}

type broadcastRequest struct {
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
	Audience string `json:"audience"`
}

// Broadcast lets the admin push a system alert to everyone or one account.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "title and body are required", err)
		return
	}

	rec, err := h.fanout.Add(c.Request.Context(), notification.Record{
		Title:    req.Title,
		Body:     req.Body,
		Audience: req.Audience,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to add notification", err)
		return
	}
	response.Success(c, http.StatusCreated, "notification sent", rec)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.fanout.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to mark as read", err)
		return
	}
	response.Success(c, http.StatusOK, "marked as read", nil)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	staffID, _ := middleware.GetStaffID(c)
	if err := h.fanout.MarkAllRead(c.Request.Context(), staffID); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to mark all as read", err)
		return
	}
	response.Success(c, http.StatusOK, "all marked as read", nil)
}
