// Package api assembles the gin-based HTTP surface described in spec §5/§6:
// the inference paths (OpenAI/Anthropic/Gemini protocol entry points), the
// management surface (auth, oauth, fallback, stats, config, keys) and the
// OAuth callback landing pages, wired against the Router, Fallback Engine,
// Translator Matrix and Executor.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/cliproxy-gateway/gateway/internal/auth"
	"github.com/cliproxy-gateway/gateway/internal/config"
	"github.com/cliproxy-gateway/gateway/internal/executor"
	"github.com/cliproxy-gateway/gateway/internal/fallback"
	"github.com/cliproxy-gateway/gateway/internal/router"
	"github.com/cliproxy-gateway/gateway/internal/store"
	"github.com/cliproxy-gateway/gateway/internal/usage"
)

// Server bundles every dependency the HTTP surface needs to serve inference
// and management requests.
type Server struct {
	Config       *config.Config
	Credentials  store.CredentialStore
	Sessions     store.SessionStore
	AuthManager  *auth.Manager
	Fallback     *fallback.Engine
	Executor     *executor.Executor
	Stats        *usage.Stats
	UsageManager *usage.Manager
	QuotaGroups  router.QuotaGroups

	startedAt time.Time
}

// NewServer wires the HTTP surface struct. Route registration happens in
// NewRouter so tests can construct a Server without a live gin.Engine.
func NewServer(cfg *config.Config, creds store.CredentialStore, sessions store.SessionStore, authMgr *auth.Manager, fb *fallback.Engine, exec *executor.Executor, stats *usage.Stats, usageMgr *usage.Manager, quotaGroups router.QuotaGroups) *Server {
	return &Server{
		Config: cfg, Credentials: creds, Sessions: sessions, AuthManager: authMgr,
		Fallback: fb, Executor: exec, Stats: stats, UsageManager: usageMgr,
		QuotaGroups: quotaGroups, startedAt: time.Now(),
	}
}

// NewRouter builds the gin.Engine with every route group registered, per
// spec §5/§6's full path list.
func (s *Server) NewRouter() *gin.Engine {
	if !s.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	s.registerHealth(engine)

	inference := engine.Group("")
	inference.Use(s.apiKeyAuth())
	s.registerInference(inference)

	mgmt := engine.Group("")
	mgmt.Use(s.managementAuth())
	s.registerManagementAuth(mgmt)
	s.registerManagementOAuth(mgmt)
	s.registerManagementFallback(mgmt)
	s.registerManagementStats(mgmt)
	s.registerManagementConfig(mgmt)
	s.registerManagementKeys(mgmt)

	s.registerOAuthCallbacks(engine)

	return engine
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, x-goog-api-key, x-api-key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// apiKeyAuth protects the inference surface with the gateway's configured
// API keys (spec §6), accepting the key via Authorization: Bearer, x-api-key
// or x-goog-api-key (Gemini SDKs use the latter).
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.Config.APIKeys) == 0 {
			c.Next()
			return
		}
		key := extractKey(c)
		for _, want := range s.Config.APIKeys {
			if key != "" && key == want {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"type": "invalid_api_key", "message": "missing or invalid API key"}})
	}
}

func extractKey(c *gin.Context) string {
	if v := c.GetHeader("x-api-key"); v != "" {
		return v
	}
	if v := c.GetHeader("x-goog-api-key"); v != "" {
		return v
	}
	if v := c.Query("key"); v != "" {
		return v
	}
	authz := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(authz) > len(prefix) && authz[:len(prefix)] == prefix {
		return authz[len(prefix):]
	}
	return ""
}

// managementAuth protects the management surface with the configured
// remote-management secret key (spec §6). When remote access is disabled,
// only loopback requests are permitted regardless of key.
func (s *Server) managementAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Config.RemoteManagement.AllowRemote && !isLoopback(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"type": "forbidden", "message": "remote management access disabled"}})
			return
		}
		if s.Config.RemoteManagement.SecretKey != "" {
			key := extractKey(c)
			if key != s.Config.RemoteManagement.SecretKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"type": "invalid_management_key", "message": "missing or invalid management key"}})
				return
			}
		}
		c.Next()
	}
}

func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}
