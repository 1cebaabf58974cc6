package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

type EventHandler struct {
	Events  *services.EventService
	Storage *services.StorageService
	Bucket  string // poster uploads share the gallery bucket
}

func NewEventHandler(events *services.EventService, storage *services.StorageService, bucket string) *EventHandler {
	return &EventHandler{Events: events, Storage: storage, Bucket: bucket}
}

// ListPublic returns published events for the public site
// GET /events
func (h *EventHandler) ListPublic(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.Events.ListEvents(true, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// ListAll includes unpublished drafts for dashboards
// GET /dashboard/execom/events
func (h *EventHandler) ListAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.Events.ListEvents(false, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Get returns one event
// GET /events/:id
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.Events.GetEvent(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	c.JSON(http.StatusOK, event)
}

// Create adds a draft event
// POST /dashboard/execom/events
func (h *EventHandler) Create(c *gin.Context) {
	var req db.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	userID, _, _ := authz.PrincipalFromContext(c)
	event, err := h.Events.CreateEvent(req, userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// Update edits event fields, including publish state
// PATCH /dashboard/execom/events/:id
func (h *EventHandler) Update(c *gin.Context) {
	var req db.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	event, err := h.Events.UpdateEvent(c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, event)
}

// UploadPoster attaches a poster image to an event
// POST /dashboard/execom/events/:id/poster
func (h *EventHandler) UploadPoster(c *gin.Context) {
	eventID := c.Param("id")
	if _, err := h.Events.GetEvent(eventID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	fileHeader, err := c.FormFile("poster")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "poster file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	objectPath := "posters/" + eventID
	url, err := h.Storage.Upload(c.Request.Context(), h.Bucket, objectPath, file,
		fileHeader.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to store poster"})
		return
	}

	if err := h.Events.SetPosterURL(eventID, url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save poster"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"poster_url": url})
}

// Delete removes an event
// DELETE /dashboard/admin/events/:id
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.Events.DeleteEvent(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted"})
}
