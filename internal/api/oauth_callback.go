package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cliproxy-gateway/gateway/internal/store"
)

const callbackPageTemplate = `<!doctype html><html><head><title>%s</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 3rem;">
<h2>%s</h2><p>%s</p><p>You may close this window.</p>
</body></html>`

func callbackPage(c *gin.Context, status int, title, message string) {
	c.Data(status, "text/html; charset=utf-8", []byte(fmt.Sprintf(callbackPageTemplate, title, title, message)))
}

// registerOAuthCallbacks wires the browser-facing redirect landing pages for
// the gemini-cli, claude, codex and kiro OAuth providers: each exchanges the
// authorization code via the Auth Manager and renders a minimal
// success/failure page. iflow and antigravity get no callback route here.
func (s *Server) registerOAuthCallbacks(engine *gin.Engine) {
	register := func(path string, provider store.Provider) {
		engine.GET(path, func(c *gin.Context) {
			code := c.Query("code")
			state := c.Query("state")
			if errMsg := c.Query("error"); errMsg != "" {
				callbackPage(c, http.StatusOK, "Authorization failed", errMsg)
				return
			}
			if code == "" || state == "" {
				callbackPage(c, http.StatusBadRequest, "Authorization failed", "missing code or state parameter")
				return
			}
			if _, err := s.AuthManager.HandleCallback(c.Request.Context(), provider, code, state); err != nil {
				callbackPage(c, http.StatusOK, "Authorization failed", err.Error())
				return
			}
			callbackPage(c, http.StatusOK, "Authorization successful", fmt.Sprintf("%s credential saved.", provider))
		})
	}

	register("/google/callback", store.ProviderGeminiCLI)
	register("/anthropic/callback", store.ProviderClaude)
	register("/codex/callback", store.ProviderCodex)
	register("/kiro/callback", store.ProviderKiro)
}
