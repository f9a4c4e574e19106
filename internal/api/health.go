package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerHealth(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": time.Since(s.startedAt).String()})
	})
	engine.GET("/ready", func(c *gin.Context) {
		if _, err := s.Credentials.List(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not-ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
}
