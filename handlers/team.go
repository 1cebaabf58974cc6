package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

type TeamHandler struct {
	Team *services.TeamService
}

func NewTeamHandler(team *services.TeamService) *TeamHandler {
	return &TeamHandler{Team: team}
}

// List returns the public roster, latest year unless ?year= is given
// GET /team
func (h *TeamHandler) List(c *gin.Context) {
	year, _ := strconv.Atoi(c.DefaultQuery("year", "0"))
	members, err := h.Team.ListActive(year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list team"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": members, "count": len(members)})
}

// ListAll includes inactive entries for management
// GET /dashboard/admin/team
func (h *TeamHandler) ListAll(c *gin.Context) {
	members, err := h.Team.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list team"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": members, "count": len(members)})
}

// Create adds a roster entry
// POST /dashboard/admin/team
func (h *TeamHandler) Create(c *gin.Context) {
	var req db.UpsertTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	member, err := h.Team.Create(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create team member"})
		return
	}
	c.JSON(http.StatusCreated, member)
}

// Update replaces a roster entry's fields
// PUT /dashboard/admin/team/:id
func (h *TeamHandler) Update(c *gin.Context) {
	var req db.UpsertTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.Team.Update(c.Param("id"), req); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Team member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team member updated"})
}

// Delete removes a roster entry
// DELETE /dashboard/admin/team/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	if err := h.Team.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Team member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team member removed"})
}
