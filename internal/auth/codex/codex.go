// Package codex implements the OpenAI Codex OAuth handler. Spec §4.2 calls
// out one quirk versus the generic flow: an extra authorization parameter
// audience=https://api.openai.com/v1.
package codex

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/auth/generic"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	authURL     = "https://auth.openai.com/oauth/authorize"
	tokenURL    = "https://auth.openai.com/oauth/token"
	clientID    = "app_EMoamEEZ73f0CkXaXp7hrann"
	redirectURL = "http://localhost:1455/auth/callback"
	audience    = "https://api.openai.com/v1"
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Provider() store.Provider { return store.ProviderCodex }

func (h *Handler) endpoint() generic.Endpoint {
	return generic.Endpoint{
		Provider:        store.ProviderCodex,
		AuthURL:         authURL,
		TokenURL:        tokenURL,
		ClientID:        clientID,
		RedirectURL:     redirectURL,
		Scopes:          []string{"openid", "profile", "email", "offline_access"},
		UsePKCE:         true,
		ExtraAuthParams: map[string]string{"audience": audience},
	}
}

func (h *Handler) StartOAuth(ctx context.Context, sessions store.SessionStore) (string, string, error) {
	return generic.StartOAuth(ctx, sessions, h.endpoint())
}

func (h *Handler) HandleCallback(ctx context.Context, sessions store.SessionStore, code, state string) (*store.Credential, error) {
	sess, err := generic.ResolveSession(sessions, store.ProviderCodex, state)
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

func tokenToCredential(tok *oauth2.Token) *store.Credential {
	now := time.Now().UTC()
	cred := &store.Credential{
		ID:           uuid.NewString(),
		Provider:     store.ProviderCodex,
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
			cred.Email = generic.ClaimString(claims, "email")
			if accountID := generic.ClaimString(claims, "https://api.openai.com/auth"); accountID != "" {
				cred.TokenData = map[string]string{"chatgpt_account_id": accountID}
			}
		}
	}
	return cred
}
