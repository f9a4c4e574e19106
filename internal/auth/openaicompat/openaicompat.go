// Package openaicompat implements the openai-compat provider: a static API
// key against an arbitrary OpenAI-compatible endpoint, with no OAuth dance
// at all. It is wired through the same import surface as the service-account
// providers (spec §4.2's "import" verb covers both shapes) because the Auth
// Manager dispatches by provider discriminator rather than by credential
// acquisition mechanism (spec §9).
package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Provider() store.Provider { return store.ProviderOpenAICompat }

type importPayload struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Name    string `json:"name"`
}

// ImportServiceAccount, despite its name (shared with the Vertex shape so
// the Auth Manager can dispatch through one interface), parses a small
// {api_key, base_url, name} document rather than a Google service account.
// The key is stored verbatim as the access token; there is nothing to
// exchange or sign.
func (h *Handler) ImportServiceAccount(ctx context.Context, rawJSON []byte) (*store.Credential, error) {
	var payload importPayload
	if err := json.Unmarshal(rawJSON, &payload); err != nil {
		return nil, apierror.Client(http.StatusBadRequest, "invalid openai-compat import payload: %v", err)
	}
	apiKey := strings.TrimSpace(payload.APIKey)
	baseURL := strings.TrimSpace(payload.BaseURL)
	if apiKey == "" {
		return nil, apierror.Client(http.StatusBadRequest, "openai-compat import requires api_key")
	}
	if baseURL == "" {
		return nil, apierror.Client(http.StatusBadRequest, "openai-compat import requires base_url")
	}

	now := time.Now().UTC()
	return &store.Credential{
		ID:          uuid.NewString(),
		Provider:    store.ProviderOpenAICompat,
		AccessToken: apiKey,
		Name:        payload.Name,
		ProjectID:   baseURL,
		Tier:        store.TierUnknown,
		Status:      store.StatusReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RefreshToken is a no-op: static API keys do not expire through this
// gateway's refresh mechanism. It returns the credential unchanged so the
// Auth Manager's refresh loop can treat every provider uniformly.
func (h *Handler) RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	return cred.Clone(), nil
}
