package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

type ContactHandler struct {
	Contact *services.ContactService
}

func NewContactHandler(contact *services.ContactService) *ContactHandler {
	return &ContactHandler{Contact: contact}
}

// Create accepts a public contact form submission
// POST /contact
func (h *ContactHandler) Create(c *gin.Context) {
	var req db.CreateContactMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if _, err := h.Contact.Create(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message received"})
}

// List shows the inbox
// GET /dashboard/execom/messages
func (h *ContactHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unread := c.Query("unread") == "true"

	msgs, err := h.Contact.List(unread, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

// MarkRead marks an inbox message handled
// PUT /dashboard/execom/messages/:id/read
func (h *ContactHandler) MarkRead(c *gin.Context) {
	if err := h.Contact.MarkRead(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked read"})
}

// Delete removes an inbox message
// DELETE /dashboard/execom/messages/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	if err := h.Contact.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}
