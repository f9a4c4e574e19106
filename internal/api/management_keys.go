package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerManagementKeys(r gin.IRoutes) {
	r.GET("/api/keys", func(c *gin.Context) {
		masked := make([]string, len(s.Config.APIKeys))
		for i, k := range s.Config.APIKeys {
			masked[i] = maskKey(k)
		}
		c.JSON(http.StatusOK, gin.H{"keys": masked})
	})

	r.POST("/api/keys", func(c *gin.Context) {
		var req struct {
			Key string `json:"key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		for _, existing := range s.Config.APIKeys {
			if existing == req.Key {
				c.JSON(http.StatusOK, gin.H{"added": false})
				return
			}
		}
		s.Config.APIKeys = append(s.Config.APIKeys, req.Key)
		c.JSON(http.StatusOK, gin.H{"added": true})
	})

	r.DELETE("/api/keys/:key", func(c *gin.Context) {
		target := c.Param("key")
		kept := s.Config.APIKeys[:0]
		removed := false
		for _, k := range s.Config.APIKeys {
			if k == target {
				removed = true
				continue
			}
			kept = append(kept, k)
		}
		s.Config.APIKeys = kept
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"type": "not_found", "message": "key not found"}})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return "****"
	}
	return k[:4] + "..." + k[len(k)-4:]
}
