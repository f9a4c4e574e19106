package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// writeAPIError renders any error as the gateway's standard error body,
// preferring the classified *apierror.Error status/type when available.
func writeAPIError(c *gin.Context, err error) {
	if apiErr, ok := apierror.As(err); ok {
		c.JSON(apiErr.HTTPStatus(), gin.H{"error": gin.H{"type": apiErr.Kind, "message": apiErr.Message}})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"type": "internal_error", "message": err.Error()}})
}
