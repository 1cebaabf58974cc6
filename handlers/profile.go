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

type ProfileHandler struct {
	Profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{Profiles: profiles}
}

// Me returns the signed-in member's profile
// GET /api/me
func (h *ProfileHandler) Me(c *gin.Context) {
	userID, _, ok := authz.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	profile, err := h.Profiles.GetProfile(c.Request.Context(), userID)
	if errors.Is(err, services.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe edits the signed-in member's own profile fields
// PATCH /api/me
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, _, ok := authz.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req db.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	profile, err := h.Profiles.UpdateProfile(c.Request.Context(), userID, req)
	if errors.Is(err, services.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// List returns member profiles, optionally filtered by role
// GET /dashboard/admin/profiles
func (h *ProfileHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	profiles, err := h.Profiles.ListProfiles(c.Request.Context(), c.Query("role"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list profiles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles, "count": len(profiles)})
}

// SetRole assigns a member's role
// PUT /dashboard/admin/profiles/:id/role
func (h *ProfileHandler) SetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	adminID, _, _ := authz.PrincipalFromContext(c)
	targetID := c.Param("id")
	if targetID == adminID && req.Role != string(authz.RoleAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Admins cannot demote themselves"})
		return
	}

	err := h.Profiles.SetRole(c.Request.Context(), targetID, req.Role)
	if errors.Is(err, services.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

// Deactivate disables a member account
// DELETE /dashboard/admin/profiles/:id
func (h *ProfileHandler) Deactivate(c *gin.Context) {
	adminID, _, _ := authz.PrincipalFromContext(c)
	targetID := c.Param("id")
	if targetID == adminID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Admins cannot deactivate themselves"})
		return
	}

	err := h.Profiles.Deactivate(c.Request.Context(), targetID)
	if errors.Is(err, services.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile deactivated"})
}

// Stats returns active member counts per role
// GET /dashboard/admin/stats
func (h *ProfileHandler) Stats(c *gin.Context) {
	stats, err := h.Profiles.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
