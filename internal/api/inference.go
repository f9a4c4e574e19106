package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/config"
	"github.com/cliproxy-gateway/gateway/internal/executor"
	"github.com/cliproxy-gateway/gateway/internal/fallback"
	"github.com/cliproxy-gateway/gateway/internal/registry"
	"github.com/cliproxy-gateway/gateway/internal/router"
	"github.com/cliproxy-gateway/gateway/internal/store"
	"github.com/cliproxy-gateway/gateway/internal/translator"
	"github.com/cliproxy-gateway/gateway/internal/usage"
)

func (s *Server) registerInference(r gin.IRoutes) {
	r.GET("/v1/models", s.handleListModels)
	r.POST("/v1/chat/completions", s.handleInference(translator.ProtocolOpenAI))
	r.POST("/v1/messages", s.handleInference(translator.ProtocolAnthropic))
	r.POST("/v1beta/models/:modelAction", s.handleGemini)
}

func (s *Server) handleListModels(c *gin.Context) {
	switch {
	case strings.Contains(c.Request.URL.Path, "messages"):
		c.JSON(http.StatusOK, gin.H{"data": registry.AnthropicListing()})
	default:
		c.JSON(http.StatusOK, gin.H{"object": "list", "data": registry.OpenAIListing()})
	}
}

func (s *Server) handleGemini(c *gin.Context) {
	raw := c.Param("modelAction")
	parts := strings.SplitN(raw, ":", 2)
	modelID := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	stream := action == "streamGenerateContent"

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": "failed to read body"}})
		return
	}
	body, _ = setJSONField(body, "model", modelID)
	s.dispatch(c, translator.ProtocolGemini, modelID, stream, body)
}

// providerProtocol maps each provider to the wire protocol its upstream API
// natively speaks, per spec §4.6's three-protocol translation matrix.
func providerProtocol(p store.Provider) translator.Protocol {
	switch p {
	case store.ProviderClaude, store.ProviderKiro:
		return translator.ProtocolAnthropic
	case store.ProviderGeminiCLI, store.ProviderVertex, store.ProviderAntigravity:
		return translator.ProtocolGemini
	default:
		return translator.ProtocolOpenAI
	}
}

// upstreamEndpoint returns the method/URL pair for a provider's native
// inference call. Real base URLs/regions are sourced from the credential
// where the provider requires it (Vertex's region, OpenAI-compat's base
// URL); others are the well-known provider API hosts.
func upstreamEndpoint(cred *store.Credential, modelID string, stream bool) executor.Endpoint {
	switch cred.Provider {
	case store.ProviderClaude, store.ProviderKiro:
		return executor.Endpoint{Method: http.MethodPost, URL: "https://api.anthropic.com/v1/messages", Stream: stream}
	case store.ProviderCodex:
		return executor.Endpoint{Method: http.MethodPost, URL: "https://chatgpt.com/backend-api/codex/responses", Stream: stream}
	case store.ProviderGitHubCopilot:
		return executor.Endpoint{Method: http.MethodPost, URL: "https://api.githubcopilot.com/chat/completions", Stream: stream}
	case store.ProviderOpenAICompat:
		base := strings.TrimSuffix(cred.ProjectID, "/")
		return executor.Endpoint{Method: http.MethodPost, URL: base + "/chat/completions", Stream: stream}
	case store.ProviderQwen:
		return executor.Endpoint{Method: http.MethodPost, URL: "https://chat.qwen.ai/api/v1/chat/completions", Stream: stream}
	case store.ProviderIFlow:
		return executor.Endpoint{Method: http.MethodPost, URL: "https://apis.iflow.cn/v1/chat/completions", Stream: stream}
	case store.ProviderGeminiCLI:
		action := "generateContent"
		if stream {
			action = "streamGenerateContent"
		}
		return executor.Endpoint{Method: http.MethodPost, URL: "https://generativelanguage.googleapis.com/v1beta/models/" + modelID + ":" + action, Stream: stream}
	case store.ProviderVertex, store.ProviderAntigravity:
		region := cred.Region
		if region == "" {
			region = "us-central1"
		}
		action := "generateContent"
		if stream {
			action = "streamGenerateContent"
		}
		url := "https://" + region + "-aiplatform.googleapis.com/v1/projects/" + cred.ProjectID +
			"/locations/" + region + "/publishers/google/models/" + modelID + ":" + action
		return executor.Endpoint{Method: http.MethodPost, URL: url, Stream: stream}
	default:
		return executor.Endpoint{Method: http.MethodPost, URL: "https://api.openai.com/v1/chat/completions", Stream: stream}
	}
}

func setJSONField(body []byte, field, value string) ([]byte, error) {
	return sjson.SetBytes(body, field, value)
}

// handleInference is the shared entry point for the OpenAI and Anthropic
// protocol paths; client protocol is fixed by the route, everything else
// (model, stream flag) is read from the body.
func (s *Server) handleInference(clientProtocol translator.Protocol) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request", "message": "failed to read body"}})
			return
		}
		root := gjson.ParseBytes(body)
		modelID := root.Get("model").String()
		stream := root.Get("stream").Bool()
		s.dispatch(c, clientProtocol, modelID, stream, body)
	}
}

// dispatch resolves the fallback chain for modelID, tries each chain entry's
// credentials via the Router until one succeeds, translates request/response
// bodies across the Translator Matrix, and streams or returns the result.
func (s *Server) dispatch(c *gin.Context, clientProtocol translator.Protocol, modelID string, stream bool, body []byte) {
	ctx := c.Request.Context()

	var detectedProvider store.Provider
	if info, ok := registry.Lookup(modelID); ok {
		detectedProvider = info.Provider
	}
	chain := s.Fallback.Chain(modelID, detectedProvider)
	virtualModelName := modelID
	vm, _ := s.Fallback.Get(virtualModelName)
	strategy, tau := s.routingStrategy(vm)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error

	for _, entry := range chain {
		cred := s.pickCredential(entry, strategy, tau, rng)
		if cred == nil {
			continue
		}

		valid, err := s.AuthManager.GetValidCredential(ctx, cred.ID)
		if err != nil {
			lastErr = err
			continue
		}

		upstreamProtocol := providerProtocol(valid.Provider)
		upstreamBody := translator.Request(clientProtocol, upstreamProtocol, entry.ModelID, body, stream)
		ep := upstreamEndpoint(valid, entry.ModelID, stream)

		req, err := s.Executor.BuildRequest(ctx, ep, valid, upstreamBody)
		if err != nil {
			lastErr = err
			continue
		}

		resp, outcome, err := s.Executor.Do(ctx, valid.Provider, req)
		quotaKey := router.QuotaGroupKey{Provider: valid.Provider, Model: entry.ModelID}

		switch outcome {
		case executor.OutcomeOK:
			s.onSuccess(quotaKey, valid)
			_ = s.Fallback.RecordSuccess(virtualModelName, entry.Provider, entry.ModelID)
			s.streamOrReturn(c, resp, clientProtocol, upstreamProtocol, entry.ModelID, stream, valid, entry)
			return
		case executor.OutcomeQuota:
			s.onQuotaExceeded(quotaKey, valid, entry)
			_ = s.Fallback.RecordFailure(virtualModelName, entry.Provider, entry.ModelID)
			lastErr = err
		case executor.OutcomeAuth:
			valid.Status = store.StatusError
			valid.StatusMessage = "provider rejected credential"
			_ = s.Credentials.Save(valid)
			_ = s.Fallback.RecordFailure(virtualModelName, entry.Provider, entry.ModelID)
			lastErr = err
		case executor.OutcomeClient:
			if resp != nil {
				defer resp.Body.Close()
			}
			writeAPIError(c, err)
			return
		default:
			_ = s.Fallback.RecordFailure(virtualModelName, entry.Provider, entry.ModelID)
			lastErr = err
		}
		if resp != nil {
			resp.Body.Close()
		}
	}

	if lastErr == nil {
		lastErr = apierror.Client(http.StatusServiceUnavailable, "no eligible credential available for model %s", modelID)
	}
	writeAPIError(c, lastErr)
}

// routingStrategy resolves the credential-selection strategy and rotation
// tolerance to apply for a dispatch: the virtual model's own Strategy takes
// precedence (spec §4.5), falling back to the configured default (spec §6,
// config.go's Routing.Strategy) when the model is unset, disabled, or
// doesn't request one.
func (s *Server) routingStrategy(vm *fallback.VirtualModel) (router.Strategy, float64) {
	tau := float64(s.Config.Routing.RotationTolerance)
	if vm != nil && vm.IsEnabled && vm.Strategy != "" {
		return vm.Strategy, tau
	}
	switch s.Config.Routing.Strategy {
	case config.StrategyFillFirst:
		return router.StrategyFillFirst, tau
	default:
		return router.StrategyRoundRobin, tau
	}
}

func (s *Server) pickCredential(entry fallback.Entry, strategy router.Strategy, tau float64, rng *rand.Rand) *store.Credential {
	creds, err := s.Credentials.GetByProvider(entry.Provider)
	if err != nil || len(creds) == 0 {
		return nil
	}
	now := time.Now()
	candidates := make([]router.Candidate, 0, len(creds))
	for _, cr := range creds {
		if !cr.Eligible(now) {
			continue
		}
		candidates = append(candidates, router.Candidate{
			Credential:  cr,
			Priority:    entry.Priority,
			Frequency:   router.FreqStandard,
			SuccessRate: entry.SuccessRate,
		})
	}
	candidates = router.FilterAndReorder(entry.ModelID, candidates, now)
	picked := router.Select(strategy, candidates, tau, rng)
	if picked == nil {
		return nil
	}
	return picked.Credential
}

func (s *Server) onSuccess(key router.QuotaGroupKey, cred *store.Credential) {
	_ = router.DebitSuccess(s.QuotaGroups, key, cred, s.resolveSibling, s.Credentials.Save)
}

func (s *Server) onQuotaExceeded(key router.QuotaGroupKey, cred *store.Credential, entry fallback.Entry) {
	_ = router.DebitQuotaExceeded(s.QuotaGroups, key, cred, int(entry.UsageCount), s.resolveSibling, s.Credentials.Save)
}

func (s *Server) resolveSibling(key router.QuotaGroupKey) *store.Credential {
	creds, err := s.Credentials.GetByProvider(key.Provider)
	if err != nil {
		return nil
	}
	for _, cr := range creds {
		if cr.Eligible(time.Now()) {
			return cr
		}
	}
	return nil
}

func (s *Server) streamOrReturn(c *gin.Context, resp *http.Response, clientProtocol, upstreamProtocol translator.Protocol, modelID string, stream bool, cred *store.Credential, entry fallback.Entry) {
	defer resp.Body.Close()
	start := time.Now()

	if !stream {
		upstreamBody, err := io.ReadAll(resp.Body)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		translated := translator.ResponseNonStream(clientProtocol, upstreamProtocol, c.Request.Context(), modelID, upstreamBody)
		s.publishUsage(cred, entry, false, time.Since(start), resp.StatusCode, upstreamBody)
		c.Data(http.StatusOK, "application/json", []byte(translated))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	state := translator.NewStreamState()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			if clientProtocol == upstreamProtocol {
				io.WriteString(c.Writer, "data: [DONE]\n\n")
			}
			break
		}
		if clientProtocol == upstreamProtocol {
			io.WriteString(c.Writer, line+"\n\n")
		} else {
			for _, out := range translator.Response(clientProtocol, upstreamProtocol, c.Request.Context(), modelID, []byte(payload), state) {
				io.WriteString(c.Writer, out)
			}
		}
		if canFlush {
			flusher.Flush()
		}
	}
	if !state.TerminalEmitted {
		s.emitSyntheticTerminal(c.Writer, clientProtocol)
		state.TerminalEmitted = true
		if canFlush {
			flusher.Flush()
		}
	}
	s.publishUsage(cred, entry, false, time.Since(start), resp.StatusCode, nil)
}

// emitSyntheticTerminal writes the client-protocol-appropriate terminal
// marker when the upstream connection closed without ever producing one
// (spec §4.6: an upstream termination without a terminal event must still
// yield a terminal event on the client stream).
func (s *Server) emitSyntheticTerminal(w io.Writer, clientProtocol translator.Protocol) {
	switch clientProtocol {
	case translator.ProtocolAnthropic:
		io.WriteString(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	case translator.ProtocolGemini:
		_, _, geminiReason := translator.MapFinishReason(translator.ProtocolOpenAI, "stop")
		chunk, _ := json.Marshal(map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{}},
				"finishReason": geminiReason,
				"index":        0,
			}},
		})
		w.Write(chunk)
	default:
		io.WriteString(w, "data: [DONE]\n\n")
	}
}

func (s *Server) publishUsage(cred *store.Credential, entry fallback.Entry, failed bool, dur time.Duration, status int, body []byte) {
	if s.UsageManager == nil {
		return
	}
	rec := usage.Record{
		Provider: string(cred.Provider), Model: entry.ModelID, CredentialID: cred.ID,
		RequestedAt: time.Now(), DurationMS: dur.Milliseconds(), Failed: failed, StatusCode: status,
	}
	if body != nil {
		usageJSON := gjson.ParseBytes(body).Get("usage")
		rec.Detail.InputTokens = firstNonZero(usageJSON.Get("prompt_tokens"), usageJSON.Get("input_tokens"))
		rec.Detail.OutputTokens = firstNonZero(usageJSON.Get("completion_tokens"), usageJSON.Get("output_tokens"))
		rec.Detail.TotalTokens = usageJSON.Get("total_tokens").Int()
	}
	s.UsageManager.Publish(context.Background(), rec)
}

func firstNonZero(a, b gjson.Result) int64 {
	if a.Exists() {
		return a.Int()
	}
	return b.Int()
}
