package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// configFields exposes the subset of *config.Config the management surface
// may read or write per key, mirroring the flattened view the teacher's
// config handlers return rather than the nested YAML shape.
func (s *Server) configFields() gin.H {
	cfg := s.Config
	return gin.H{
		"host":                cfg.Host,
		"port":                cfg.Port,
		"debug":               cfg.Debug,
		"logging-to-file":     cfg.LoggingToFile,
		"routing":             cfg.Routing,
		"request-retry":       cfg.RequestRetry,
		"max-retry-interval":  cfg.MaxRetryInterval,
		"quota-exceeded":      cfg.QuotaExceeded,
		"remote-management":   cfg.RemoteManagement,
		"passthrough":         cfg.Passthrough,
		"storage":             cfg.Storage,
		"session-store":       cfg.SessionStore,
		"proxy-url":           cfg.ProxyURL,
		"api-keys-configured": len(cfg.APIKeys),
	}
}

func (s *Server) registerManagementConfig(r gin.IRoutes) {
	r.GET("/api/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.configFields())
	})

	r.GET("/api/config/:key", func(c *gin.Context) {
		fields := s.configFields()
		v, ok := fields[c.Param("key")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"type": "not_found", "message": "unknown config key"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{c.Param("key"): v})
	})

	r.PUT("/api/config/:key", func(c *gin.Context) {
		var body struct {
			Value any `json:"value"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		if err := s.applyConfigField(c.Param("key"), body.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		c.JSON(http.StatusOK, gin.H{c.Param("key"): body.Value})
	})

	r.DELETE("/api/config/:key", func(c *gin.Context) {
		if err := s.applyConfigField(c.Param("key"), nil); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": err.Error()}})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// applyConfigField writes one of the few management-owned scalar fields back
// onto the live config, matching the teacher's convention of a narrow
// writable surface rather than a fully generic field setter.
func (s *Server) applyConfigField(key string, value any) error {
	switch key {
	case "debug":
		b, _ := value.(bool)
		s.Config.Debug = b
	case "proxy-url":
		str, _ := value.(string)
		s.Config.ProxyURL = str
	case "request-retry":
		if f, ok := value.(float64); ok {
			s.Config.RequestRetry = int(f)
		}
	default:
		return errUnwritableConfigKey(key)
	}
	return nil
}

type errUnwritableConfigKey string

func (e errUnwritableConfigKey) Error() string { return "config key is not writable: " + string(e) }
