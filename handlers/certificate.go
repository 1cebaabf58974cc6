package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/db"
	"github.com/iste-sc/portal/services"
)

type CertificateHandler struct {
	Certificates *services.CertificateService
	AccessKeys   *services.AccessKeyService
}

func NewCertificateHandler(certificates *services.CertificateService, accessKeys *services.AccessKeyService) *CertificateHandler {
	return &CertificateHandler{Certificates: certificates, AccessKeys: accessKeys}
}

// Verify is the public certificate lookup. Kiosks may present an access
// key in X-Access-Key for audited bulk verification; plain visitors hit
// it without one.
// GET /certificates/verify/:code
func (h *CertificateHandler) Verify(c *gin.Context) {
	if key := c.GetHeader("X-Access-Key"); key != "" {
		if _, err := h.AccessKeys.Verify(key); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid access key"})
			return
		}
	}

	cert, err := h.Certificates.Verify(c.Param("code"))
	switch {
	case errors.Is(err, services.ErrCertificateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"valid": false, "error": "Certificate not found"})
		return
	case errors.Is(err, services.ErrCertificateRevoked):
		c.JSON(http.StatusOK, gin.H{
			"valid":   false,
			"revoked": true,
			"event":   cert.EventTitle,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"recipient": cert.RecipientName,
		"event":     cert.EventTitle,
		"issued_at": cert.IssuedAt,
		"file_url":  cert.FileURL,
	})
}

// Issue creates a certificate for an approved registration
// POST /dashboard/admin/certificates
func (h *CertificateHandler) Issue(c *gin.Context) {
	var req db.IssueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	issuerID, _, _ := authz.PrincipalFromContext(c)
	cert, err := h.Certificates.Issue(req, issuerID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cert)
}

// ListByEvent returns issued certificates for one event
// GET /dashboard/admin/events/:id/certificates
func (h *CertificateHandler) ListByEvent(c *gin.Context) {
	certs, err := h.Certificates.ListByEvent(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list certificates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs, "count": len(certs)})
}

// Mine lists the signed-in member's certificates
// GET /api/certificates
func (h *CertificateHandler) Mine(c *gin.Context) {
	_, email, ok := authz.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	certs, err := h.Certificates.ListForEmail(email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list certificates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs, "count": len(certs)})
}

// Revoke marks a certificate invalid
// PUT /dashboard/admin/certificates/:id/revoke
func (h *CertificateHandler) Revoke(c *gin.Context) {
	if err := h.Certificates.SetRevoked(c.Param("id"), true); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certificate not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Certificate revoked"})
}

// CreateAccessKey mints a kiosk key, returning the plaintext once
// POST /dashboard/admin/access-keys
func (h *CertificateHandler) CreateAccessKey(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	adminID, _, _ := authz.PrincipalFromContext(c)
	key, plaintext, err := h.AccessKeys.Create(req.Name, adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create access key"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":   key.ID,
		"name": key.Name,
		"key":  plaintext, // shown once, never retrievable again
	})
}

// ListAccessKeys returns key metadata (never secrets)
// GET /dashboard/admin/access-keys
func (h *CertificateHandler) ListAccessKeys(c *gin.Context) {
	keys, err := h.AccessKeys.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list access keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_keys": keys, "count": len(keys)})
}

// RevokeAccessKey disables a kiosk key
// DELETE /dashboard/admin/access-keys/:id
func (h *CertificateHandler) RevokeAccessKey(c *gin.Context) {
	if err := h.AccessKeys.Revoke(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Access key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Access key revoked"})
}
