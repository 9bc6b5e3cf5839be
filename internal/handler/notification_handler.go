package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"peopleflow/internal/repository"
	"peopleflow/internal/service/router"
)

type NotificationHandler struct {
	router        *router.Router
	notifications *repository.NotificationRepository
}

func NewNotificationHandler(r *router.Router, notifications *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{router: r, notifications: notifications}
}

// List handles GET /api/notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	unreadOnly := c.Query("unread") == "true"
	notifications, err := h.notifications.ListByUser(c.Request.Context(), userID.(int), unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.router.MarkAsRead(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// MarkActed handles POST /api/notifications/:id/acted
func (h *NotificationHandler) MarkActed(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.router.MarkAsActed(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark as acted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acted"})
}

// MarkAllRead handles POST /api/notifications/read_all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	updated, err := h.router.MarkAllAsRead(c.Request.Context(), userID.(int))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark all as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
