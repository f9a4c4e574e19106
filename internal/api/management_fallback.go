package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cliproxy-gateway/gateway/internal/fallback"
)

func (s *Server) registerManagementFallback(r gin.IRoutes) {
	r.GET("/api/fallback", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": s.Fallback.List()})
	})

	r.POST("/api/fallback/enabled", func(c *gin.Context) {
		var req struct {
			Name    string `json:"name" binding:"required"`
			Enabled bool   `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		m, ok := s.Fallback.Get(req.Name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"type": "not_found", "message": "virtual model not found"}})
			return
		}
		m.IsEnabled = req.Enabled
		if err := s.Fallback.Upsert(m); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})

	r.GET("/api/fallback/models", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": s.Fallback.List()})
	})

	r.POST("/api/fallback/models", func(c *gin.Context) {
		var m fallback.VirtualModel
		if err := c.ShouldBindJSON(&m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		if err := s.Fallback.Upsert(&m); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})

	r.DELETE("/api/fallback/models/:name", func(c *gin.Context) {
		if err := s.Fallback.Delete(c.Param("name")); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/api/fallback/models/:name/entries", func(c *gin.Context) {
		m, ok := s.Fallback.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"type": "not_found", "message": "virtual model not found"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": m.Entries})
	})

	r.POST("/api/fallback/models/:name/entries", func(c *gin.Context) {
		m, ok := s.Fallback.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"type": "not_found", "message": "virtual model not found"}})
			return
		}
		var entry fallback.Entry
		if err := c.ShouldBindJSON(&entry); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		m.Entries = append(m.Entries, entry)
		if err := s.Fallback.Upsert(m); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})

	r.DELETE("/api/fallback/models/:name/entries/:index", func(c *gin.Context) {
		m, ok := s.Fallback.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"type": "not_found", "message": "virtual model not found"}})
			return
		}
		idx := parseIntOrDefault(c.Param("index"), -1)
		if idx < 0 || idx >= len(m.Entries) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": "entry index out of range"}})
			return
		}
		m.Entries = append(m.Entries[:idx], m.Entries[idx+1:]...)
		if err := s.Fallback.Upsert(m); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})

	r.GET("/api/fallback/export", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": s.Fallback.Export()})
	})

	r.POST("/api/fallback/import", func(c *gin.Context) {
		var req struct {
			Models []*fallback.VirtualModel `json:"models"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		if err := s.Fallback.Import(req.Models); err != nil {
			writeAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"imported": len(req.Models)})
	})
}

func parseIntOrDefault(s string, def int) int {
	n := 0
	if s == "" {
		return def
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}
