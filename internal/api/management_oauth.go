package api

import (
	"io"
	"net/http"

	"github.com/atotto/clipboard"
	"github.com/gin-gonic/gin"

	"github.com/cliproxy-gateway/gateway/internal/browser"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

type startOAuthRequest struct {
	Provider string `json:"provider" binding:"required"`
}

func (s *Server) registerManagementOAuth(r gin.IRoutes) {
	r.POST("/oauth/start", func(c *gin.Context) {
		var req startOAuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		authURL, state, err := s.AuthManager.StartOAuth(c.Request.Context(), store.Provider(req.Provider))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		// Best-effort: the management API and the operator's browser are
		// typically the same machine for the interactive-login case.
		browser.Open(authURL)
		c.JSON(http.StatusOK, gin.H{"auth_url": authURL, "state": state})
	})

	r.GET("/oauth/status", func(c *gin.Context) {
		state := c.Query("state")
		pending, expired, err := s.AuthManager.GetOAuthStatus(state)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pending": pending, "expired": expired})
	})

	r.POST("/oauth/device-start", func(c *gin.Context) {
		var req startOAuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		init, state, err := s.AuthManager.StartDeviceFlow(c.Request.Context(), store.Provider(req.Provider))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		_ = clipboard.WriteAll(init.UserCode)
		c.JSON(http.StatusOK, gin.H{
			"state": state, "device_code": init.DeviceCode, "user_code": init.UserCode,
			"verification_uri": init.VerificationURI, "interval": init.Interval, "expires_in": init.ExpiresIn,
		})
	})

	r.POST("/oauth/device-poll", func(c *gin.Context) {
		var req struct {
			Provider   string `json:"provider" binding:"required"`
			DeviceCode string `json:"device_code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		result, err := s.AuthManager.PollDeviceCode(c.Request.Context(), store.Provider(req.Provider), req.DeviceCode)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		resp := gin.H{"status": result.Status}
		if result.Credential != nil {
			resp["auth_file"] = redactCredential(result.Credential)
		}
		if result.Err != nil {
			resp["error"] = result.Err.Error()
		}
		c.JSON(http.StatusOK, resp)
	})

	r.POST("/oauth/import-service-account", func(c *gin.Context) {
		provider := c.Query("provider")
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": "failed to read body"}})
			return
		}
		cred, err := s.AuthManager.ImportServiceAccount(c.Request.Context(), store.Provider(provider), body)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"auth_file": redactCredential(cred)})
	})

	r.POST("/oauth/refresh/:provider", func(c *gin.Context) {
		creds, err := s.Credentials.GetByProvider(store.Provider(c.Param("provider")))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		out := make([]gin.H, 0, len(creds))
		for _, cr := range creds {
			refreshed, rerr := s.AuthManager.RefreshIfNeeded(c.Request.Context(), cr)
			if rerr != nil {
				out = append(out, gin.H{"id": cr.ID, "error": rerr.Error()})
				continue
			}
			out = append(out, redactCredential(refreshed))
		}
		c.JSON(http.StatusOK, gin.H{"results": out})
	})
}
