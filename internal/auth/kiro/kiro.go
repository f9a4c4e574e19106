// Package kiro implements the Kiro OAuth handler. Spec §4.2 calls out two
// quirks: the flow starts in incognito mode (signaled back to the caller so
// the browser can be launched in a private window) and the region is fixed
// at us-east-1 regardless of what the user requests.
package kiro

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/auth/generic"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	authURL       = "https://kiro.dev/oauth/authorize"
	tokenURL      = "https://kiro.dev/oauth/token"
	clientID      = "kiro-cli"
	redirectURL   = "http://localhost:8093/kiro/callback"
	fixedRegion   = "us-east-1"
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Provider() store.Provider { return store.ProviderKiro }

func (h *Handler) endpoint() generic.Endpoint {
	return generic.Endpoint{
		Provider:    store.ProviderKiro,
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"offline_access"},
		UsePKCE:     true,
	}
}

// StartOAuth behaves like the generic flow but additionally marks the
// pending session Incognito so callers (browser-opening code, the TUI)
// know to launch a private browsing window, per spec §4.2.
func (h *Handler) StartOAuth(ctx context.Context, sessions store.SessionStore) (string, string, error) {
	authURLStr, state, err := generic.StartOAuth(ctx, sessions, h.endpoint())
	if err != nil {
		return "", "", err
	}
	if sess, gerr := sessions.Get(state); gerr == nil && sess != nil {
		sess.Incognito = true
		_ = sessions.Save(sess)
	}
	return authURLStr, state, nil
}

func (h *Handler) HandleCallback(ctx context.Context, sessions store.SessionStore, code, state string) (*store.Credential, error) {
	sess, err := generic.ResolveSession(sessions, store.ProviderKiro, state)
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
		Provider:     store.ProviderKiro,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Region:       fixedRegion,
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
