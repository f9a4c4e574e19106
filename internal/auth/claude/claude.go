// Package claude implements the Anthropic Claude OAuth handler: a public
// client (no client secret) using PKCE, with the account email derived from
// an unverified decode of the issued id token (spec §4.2).
package claude

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/auth/generic"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	authURL  = "https://claude.ai/oauth/authorize"
	tokenURL = "https://console.anthropic.com/v1/oauth/token"
	// PublicClientID is Anthropic's published OAuth client id for CLI tools;
	// there is no client secret because this is a public, PKCE-only client.
	PublicClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	redirectURL    = "https://console.anthropic.com/oauth/code/callback"
)

// Handler implements auth.OAuthHandler for Claude.
type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Provider() store.Provider { return store.ProviderClaude }

func (h *Handler) endpoint() generic.Endpoint {
	return generic.Endpoint{
		Provider:    store.ProviderClaude,
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		ClientID:    PublicClientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"org:create_api_key", "user:profile", "user:inference"},
		UsePKCE:     true,
	}
}

func (h *Handler) StartOAuth(ctx context.Context, sessions store.SessionStore) (string, string, error) {
	return generic.StartOAuth(ctx, sessions, h.endpoint())
}

func (h *Handler) HandleCallback(ctx context.Context, sessions store.SessionStore, code, state string) (*store.Credential, error) {
	sess, err := generic.ResolveSession(sessions, store.ProviderClaude, state)
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
	if updated.Email == "" {
		updated.Email = cred.Email
	}
	return updated, nil
}

// tokenToCredential mints a credential from a freshly issued token,
// extracting the account email by decoding the id_token claims without
// verifying its signature (spec §4.2: "decode-only, not for authorization").
func tokenToCredential(tok *oauth2.Token) *store.Credential {
	now := time.Now().UTC()
	cred := &store.Credential{
		ID:           uuid.NewString(),
		Provider:     store.ProviderClaude,
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
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		if claims, err := generic.UnverifiedClaims(idToken); err == nil {
			cred.Email = generic.ClaimString(claims, "email", "sub")
		}
	}
	return cred
}
