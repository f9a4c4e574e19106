package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerManagementStats(r gin.IRoutes) {
	r.GET("/api/stats", func(c *gin.Context) {
		snap := s.Stats.Snapshot()
		buckets := make([]gin.H, 0, len(snap.Totals))
		for k, v := range snap.Totals {
			buckets = append(buckets, gin.H{
				"provider": k.Provider, "model": k.Model,
				"request_count": v.RequestCount, "failure_count": v.FailureCount,
				"input_tokens": v.InputTokens, "output_tokens": v.OutputTokens,
				"cached_tokens": v.CachedTokens, "total_tokens": v.TotalTokens,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"buckets": buckets,
			"total": gin.H{
				"request_count": snap.GrandTotal.RequestCount, "failure_count": snap.GrandTotal.FailureCount,
				"total_tokens": snap.GrandTotal.TotalTokens,
			},
		})
	})

	r.GET("/api/stats/requests", func(c *gin.Context) {
		limit := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		c.JSON(http.StatusOK, gin.H{"requests": s.Stats.Requests(limit)})
	})

	r.DELETE("/api/stats/requests", func(c *gin.Context) {
		s.Stats.ClearRequests()
		c.Status(http.StatusNoContent)
	})

	r.GET("/api/logs", func(c *gin.Context) {
		limit := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		c.JSON(http.StatusOK, gin.H{"requests": s.Stats.Requests(limit)})
	})

	r.DELETE("/api/logs", func(c *gin.Context) {
		s.Stats.ClearRequests()
		c.Status(http.StatusNoContent)
	})
}
