package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

type RegistrationHandler struct {
	Registrations *services.RegistrationService
}

func NewRegistrationHandler(registrations *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{Registrations: registrations}
}

// Create accepts a public registration or membership application as a
// multipart form so a payment proof can ride along
// POST /events/:id/register, POST /join
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req db.CreateRegistrationRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form: " + err.Error()})
		return
	}
	if id := c.Param("id"); id != "" {
		req.EventID = id
	}

	var proof *services.FileUpload
	if fileHeader, err := c.FormFile("payment_proof"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payment proof"})
			return
		}
		defer file.Close()
		proof = &services.FileUpload{
			Reader:      file,
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
		}
	}

	// Anonymous submissions are allowed; a signed-in member's ID is linked
	// when present so the registration shows up on their dashboard.
	userID, _, _ := authz.PrincipalFromContext(c)

	reg, err := h.Registrations.Create(c.Request.Context(), req, userID, proof)
	switch {
	case errors.Is(err, services.ErrRegistrationClosed),
		errors.Is(err, services.ErrEventFull),
		errors.Is(err, services.ErrProofRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit registration"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      reg.ID,
		"status":  reg.Status,
		"message": "Registration received and pending review",
	})
}

// List returns registrations for review
// GET /dashboard/execom/registrations
func (h *RegistrationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	membership := c.Query("membership") == "true"

	regs, err := h.Registrations.List(c.Query("event_id"), c.Query("status"), membership, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list registrations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}

// Get returns one registration with its payment proof link
// GET /dashboard/execom/registrations/:id
func (h *RegistrationHandler) Get(c *gin.Context) {
	reg, err := h.Registrations.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Registration not found"})
		return
	}
	c.JSON(http.StatusOK, reg)
}

// Review approves or rejects a pending registration
// PUT /dashboard/treasurer/registrations/:id/review
func (h *RegistrationHandler) Review(c *gin.Context) {
	var req db.ReviewRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	reviewerID, _, ok := authz.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	reg, err := h.Registrations.Review(c.Param("id"), req, reviewerID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reg)
}

// Mine lists the signed-in member's own registrations
// GET /api/registrations
func (h *RegistrationHandler) Mine(c *gin.Context) {
	userID, _, ok := authz.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	regs, err := h.Registrations.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list registrations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}
