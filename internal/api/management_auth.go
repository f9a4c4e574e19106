package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cliproxy-gateway/gateway/internal/store"
)

// redactCredential strips fields that must never be returned by a management
// read endpoint (spec §3): raw tokens, the Vertex service-account payload and
// the retained GitHub token backing Copilot refreshes.
func redactCredential(c *store.Credential) gin.H {
	return gin.H{
		"id":              c.ID,
		"provider":        c.Provider,
		"email":           c.Email,
		"name":            c.Name,
		"project_id":      c.ProjectID,
		"region":          c.Region,
		"tier":            c.Tier,
		"status":          c.Status,
		"status_message":  c.StatusMessage,
		"disabled":        c.Disabled,
		"cooldown_until":  c.CooldownUntil,
		"cooldown_reason": c.CooldownReason,
		"quota_used":      c.QuotaUsed,
		"quota_limit":     c.QuotaLimit,
		"usage_count":     c.UsageCount,
		"created_at":      c.CreatedAt,
		"updated_at":      c.UpdatedAt,
		"expires_at":      c.ExpiresAt,
	}
}

func (s *Server) registerManagementAuth(r gin.IRoutes) {
	r.GET("/auth", func(c *gin.Context) {
		creds, err := s.Credentials.List()
		if err != nil {
			writeAPIError(c, err)
			return
		}
		out := make([]gin.H, 0, len(creds))
		for _, cr := range creds {
			out = append(out, redactCredential(cr))
		}
		c.JSON(http.StatusOK, gin.H{"auth_files": out})
	})

	r.GET("/auth/:provider", func(c *gin.Context) {
		creds, err := s.Credentials.GetByProvider(store.Provider(c.Param("provider")))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		out := make([]gin.H, 0, len(creds))
		for _, cr := range creds {
			out = append(out, redactCredential(cr))
		}
		c.JSON(http.StatusOK, gin.H{"auth_files": out})
	})

	r.DELETE("/auth/:id", func(c *gin.Context) {
		if err := s.AuthManager.DeleteAuthFile(c.Param("id")); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.DELETE("/auth/provider/:provider", func(c *gin.Context) {
		n, err := s.AuthManager.DeleteByProvider(store.Provider(c.Param("provider")))
		if err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	})
}
