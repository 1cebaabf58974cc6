package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

type NotificationHandler struct {
	Notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Notifications: notifications}
}

// Create queues a notice for members and push delivery
// POST /dashboard/execom/notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	var req db.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	userID, _, _ := authz.PrincipalFromContext(c)
	n, err := h.Notifications.Create(c.Request.Context(), req, userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, n)
}

// Mine lists notices visible to the signed-in member's role
// GET /api/notifications
func (h *NotificationHandler) Mine(c *gin.Context) {
	role := c.GetString(authz.ContextKeyUserRole)
	parsed, ok := authz.ParseRole(role)
	if !ok {
		parsed = authz.RolePublic
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	items, err := h.Notifications.ListForRole(parsed, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// ListAll shows every notice with delivery status
// GET /dashboard/admin/notifications
func (h *NotificationHandler) ListAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Notifications.ListAll(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// RegisterDevice stores an FCM token for the signed-in member
// POST /api/devices
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req struct {
		FCMToken string `json:"fcm_token" binding:"required"`
		Platform string `json:"platform,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	userID, _, ok := authz.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	if err := h.Notifications.RegisterDevice(userID, req.FCMToken, req.Platform); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device registered"})
}
