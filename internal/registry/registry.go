// Package registry holds the static model-requirements table consulted by
// the Router's tier-gating step (spec §4.4) and backs the client-facing
// GET /v1/models listing (spec §4.8) in each protocol's shape.
package registry

import (
	"sort"

	"github.com/cliproxy-gateway/gateway/internal/store"
)

// ModelInfo describes one routable virtual or passthrough model: which
// upstream provider natively serves it, the tier gate the Router enforces,
// and enough metadata to answer a GET /v1/models listing.
type ModelInfo struct {
	ID              string
	Provider        store.Provider
	OwnedBy         string
	MinTier         store.Tier
	PreferredTier   store.Tier
	ContextWindow   int
	MaxOutputTokens int
}

// registryTable is the closed set of models this gateway knows how to
// route. It is intentionally static: new models are added by deploying a
// new build, matching spec §4.4's "static model-requirements table".
var registryTable = []ModelInfo{
	{ID: "claude-opus-4-6", Provider: store.ProviderClaude, OwnedBy: "anthropic", MinTier: store.TierPaid, PreferredTier: store.TierPaid, ContextWindow: 200000, MaxOutputTokens: 32000},
	{ID: "claude-sonnet-4-6", Provider: store.ProviderClaude, OwnedBy: "anthropic", MinTier: store.TierUnknown, PreferredTier: store.TierPaid, ContextWindow: 200000, MaxOutputTokens: 16000},
	{ID: "claude-haiku-4-6", Provider: store.ProviderClaude, OwnedBy: "anthropic", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 200000, MaxOutputTokens: 8192},
	{ID: "gpt-5-codex", Provider: store.ProviderCodex, OwnedBy: "openai", MinTier: store.TierPaid, PreferredTier: store.TierPaid, ContextWindow: 272000, MaxOutputTokens: 64000},
	{ID: "gpt-4o", Provider: store.ProviderOpenAICompat, OwnedBy: "openai", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 128000, MaxOutputTokens: 16384},
	{ID: "github-copilot-chat", Provider: store.ProviderGitHubCopilot, OwnedBy: "github", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 64000, MaxOutputTokens: 4096},
	{ID: "gemini-2.5-pro", Provider: store.ProviderGeminiCLI, OwnedBy: "google", MinTier: store.TierUnknown, PreferredTier: store.TierPaid, ContextWindow: 1048576, MaxOutputTokens: 65536},
	{ID: "gemini-2.5-flash", Provider: store.ProviderGeminiCLI, OwnedBy: "google", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 1048576, MaxOutputTokens: 65536},
	{ID: "gemini-2.5-pro-vertex", Provider: store.ProviderVertex, OwnedBy: "google", MinTier: store.TierPaid, PreferredTier: store.TierPaid, ContextWindow: 2097152, MaxOutputTokens: 65536},
	{ID: "kiro-sonnet", Provider: store.ProviderKiro, OwnedBy: "aws", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 200000, MaxOutputTokens: 16000},
	{ID: "iflow-qwen-max", Provider: store.ProviderIFlow, OwnedBy: "iflow", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 131072, MaxOutputTokens: 8192},
	{ID: "antigravity-flash", Provider: store.ProviderAntigravity, OwnedBy: "google", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 1048576, MaxOutputTokens: 65536},
	{ID: "qwen3-coder-plus", Provider: store.ProviderQwen, OwnedBy: "alibaba", MinTier: store.TierUnknown, PreferredTier: store.TierUnknown, ContextWindow: 256000, MaxOutputTokens: 65536},
}

var byID = func() map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(registryTable))
	for _, mi := range registryTable {
		m[mi.ID] = mi
	}
	return m
}()

// Lookup returns the requirements row for modelID, if known.
func Lookup(modelID string) (ModelInfo, bool) {
	mi, ok := byID[modelID]
	return mi, ok
}

// All returns every registered model, sorted by ID for stable listings.
func All() []ModelInfo {
	out := make([]ModelInfo, len(registryTable))
	copy(out, registryTable)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForProvider returns every model natively served by p.
func ForProvider(p store.Provider) []ModelInfo {
	var out []ModelInfo
	for _, mi := range registryTable {
		if mi.Provider == p {
			out = append(out, mi)
		}
	}
	return out
}

// OpenAIListing renders the GET /v1/models body in OpenAI's shape.
func OpenAIListing() []map[string]any {
	all := All()
	out := make([]map[string]any, 0, len(all))
	for _, mi := range all {
		out = append(out, map[string]any{
			"id":       mi.ID,
			"object":   "model",
			"created":  0,
			"owned_by": mi.OwnedBy,
		})
	}
	return out
}

// AnthropicListing renders the GET /v1/models body in Anthropic's shape.
func AnthropicListing() []map[string]any {
	all := All()
	out := make([]map[string]any, 0, len(all))
	for _, mi := range all {
		out = append(out, map[string]any{
			"id":           mi.ID,
			"type":         "model",
			"display_name": mi.ID,
		})
	}
	return out
}

// GeminiListing renders the ListModels body in Gemini's shape.
func GeminiListing() []map[string]any {
	all := All()
	out := make([]map[string]any, 0, len(all))
	for _, mi := range all {
		out = append(out, map[string]any{
			"name":                       "models/" + mi.ID,
			"displayName":                mi.ID,
			"inputTokenLimit":            mi.ContextWindow,
			"outputTokenLimit":           mi.MaxOutputTokens,
			"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
		})
	}
	return out
}
