// Package antigravity implements the Antigravity OAuth handler, another
// generic authorization-code+PKCE provider with no documented quirks beyond
// its own endpoint set (spec §4.2).
package antigravity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/auth/generic"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	authURL     = "https://antigravity.google/oauth/authorize"
	tokenURL    = "https://antigravity.google/oauth/token"
	clientID    = "antigravity-cli"
	redirectURL = "http://localhost:8094/antigravity/callback"
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Provider() store.Provider { return store.ProviderAntigravity }

func (h *Handler) endpoint() generic.Endpoint {
	return generic.Endpoint{
		Provider:    store.ProviderAntigravity,
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"offline_access"},
		UsePKCE:     true,
	}
}

func (h *Handler) StartOAuth(ctx context.Context, sessions store.SessionStore) (string, string, error) {
	return generic.StartOAuth(ctx, sessions, h.endpoint())
}

func (h *Handler) HandleCallback(ctx context.Context, sessions store.SessionStore, code, state string) (*store.Credential, error) {
	sess, err := generic.ResolveSession(sessions, store.ProviderAntigravity, state)
	if err != nil {
		return nil, err
	}
	tok, err := generic.ExchangeCode(ctx, h.endpoint(), sess, code)
	if err != nil {
		return nil, err
	}
	return tokenToCredential(tok), nil
}

func (h *Handler) RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	tok, err := generic.RefreshToken(ctx, h.endpoint(), cred.RefreshToken)
	if err != nil {
		return nil, err
	}
	updated := tokenToCredential(tok)
	updated.ID = cred.ID
	updated.CreatedAt = cred.CreatedAt
	updated.Tier = cred.Tier
	updated.Email = cred.Email
	return updated, nil
}

func tokenToCredential(tok *oauth2.Token) *store.Credential {
	now := time.Now().UTC()
	cred := &store.Credential{
		ID:           uuid.NewString(),
		Provider:     store.ProviderAntigravity,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Tier:         store.TierUnknown,
		Status:       store.StatusReady,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		cred.ExpiresAt = &exp
	}
	return cred
}
