// Package iflow implements the iFlow OAuth handler. It has no documented
// quirks beyond the generic authorization-code+PKCE flow (spec §4.2 does not
// call out iFlow specifically), so it wires the shared generic.Endpoint
// machinery directly against iFlow's published OAuth endpoints.
package iflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/auth/generic"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	authURL     = "https://iflow.cn/oauth/authorize"
	tokenURL    = "https://iflow.cn/oauth/token"
	clientID    = "iflow-cli"
	redirectURL = "http://localhost:11451/iflow/callback"
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Provider() store.Provider { return store.ProviderIFlow }

func (h *Handler) endpoint() generic.Endpoint {
	return generic.Endpoint{
		Provider:    store.ProviderIFlow,
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
	sess, err := generic.ResolveSession(sessions, store.ProviderIFlow, state)
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
		Provider:     store.ProviderIFlow,
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
