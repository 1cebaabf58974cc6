package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/services"
)

type GalleryHandler struct {
	Gallery *services.GalleryService
}

func NewGalleryHandler(gallery *services.GalleryService) *GalleryHandler {
	return &GalleryHandler{Gallery: gallery}
}

// List returns gallery items for the public site
// GET /gallery
func (h *GalleryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "60"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Gallery.List(c.Query("album"), c.Query("event_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list gallery"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Albums lists distinct album names
// GET /gallery/albums
func (h *GalleryHandler) Albums(c *gin.Context) {
	albums, err := h.Gallery.Albums()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list albums"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"albums": albums})
}

// Upload stores a new photo or video
// POST /dashboard/execom/gallery
func (h *GalleryHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	userID, _, _ := authz.PrincipalFromContext(c)
	item, err := h.Gallery.Add(c.Request.Context(), services.GalleryUpload{
		File: &services.FileUpload{
			Reader:      file,
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
		},
		EventID: c.PostForm("event_id"),
		Album:   c.PostForm("album"),
		Caption: c.PostForm("caption"),
	}, userID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Delete removes a gallery item and its stored object
// DELETE /dashboard/execom/gallery/:id
func (h *GalleryHandler) Delete(c *gin.Context) {
	if err := h.Gallery.Remove(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Gallery item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Gallery item removed"})
}
