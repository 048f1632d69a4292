package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"invoice-vault-go/internal/credentials"
	"invoice-vault-go/internal/models"
)

// GetAuthURL returns the Google consent URL for the first authorization.
func (h *Handlers) GetAuthURL(c *gin.Context) {
	url := h.oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"auth_url": url})
}

// AuthCallback exchanges the authorization code and stores the resulting
// credential, creating the single credential record.
func (h *Handlers) AuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "missing_code",
			Message: "Authorization code is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	token, err := h.oauthConfig.Exchange(c.Request.Context(), code)
	if err != nil {
		logrus.Errorf("Authorization code exchange failed: %v", err)
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "exchange_failed",
			Message: "Failed to exchange authorization code",
			Code:    http.StatusBadGateway,
		})
		return
	}

	cred := credentials.FromToken(token, strings.Join(h.oauthConfig.Scopes, " "))
	if err := h.credentials.Authorize(c.Request.Context(), cred); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to store credential",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	logrus.Info("Credential stored after successful authorization")
	c.JSON(http.StatusOK, gin.H{"message": "Authorization complete"})
}

// RevokeCredential clears the stored credential.
func (h *Handlers) RevokeCredential(c *gin.Context) {
	if err := h.credentials.Revoke(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to clear credential",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.Status(http.StatusNoContent)
}
