// Package geminicli implements the Gemini CLI OAuth handler. Spec §4.2
// requires access_type=offline and prompt=consent on the authorization URL,
// and resolves the account email from Google's userinfo endpoint rather than
// decoding a token locally.
package geminicli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/auth/generic"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	authURL         = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL        = "https://oauth2.googleapis.com/token"
	userInfoURL     = "https://www.googleapis.com/oauth2/v2/userinfo"
	redirectURL     = "http://localhost:8085/google/callback"
	oauthClientID   = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	oauthClientSec  = "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"
)

type Handler struct {
	httpClient *http.Client
}

func New() *Handler { return &Handler{httpClient: &http.Client{Timeout: 15 * time.Second}} }

func (h *Handler) Provider() store.Provider { return store.ProviderGeminiCLI }

func (h *Handler) endpoint() generic.Endpoint {
	return generic.Endpoint{
		Provider:     store.ProviderGeminiCLI,
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSec,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/cloud-platform",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		UsePKCE: true,
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	}
}

func (h *Handler) StartOAuth(ctx context.Context, sessions store.SessionStore) (string, string, error) {
	return generic.StartOAuth(ctx, sessions, h.endpoint())
}

func (h *Handler) HandleCallback(ctx context.Context, sessions store.SessionStore, code, state string) (*store.Credential, error) {
	sess, err := generic.ResolveSession(sessions, store.ProviderGeminiCLI, state)
	if err != nil {
		return nil, err
	}
	tok, err := generic.ExchangeCode(ctx, h.endpoint(), sess, code)
	if err != nil {
		return nil, err
	}
	cred := h.tokenToCredential(ctx, tok)
	return cred, nil
}

func (h *Handler) RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	tok, err := generic.RefreshToken(ctx, h.endpoint(), cred.RefreshToken)
	if err != nil {
		return nil, err
	}
	updated := h.tokenToCredential(ctx, tok)
	updated.ID = cred.ID
	updated.CreatedAt = cred.CreatedAt
	updated.Tier = cred.Tier
	updated.ProjectID = cred.ProjectID
	if updated.Email == "" {
		updated.Email = cred.Email
	}
	if tok.RefreshToken == "" {
		updated.RefreshToken = cred.RefreshToken
	}
	return updated, nil
}

type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// fetchUserInfo calls Google's userinfo endpoint with the freshly issued
// access token, per spec §4.2.
func (h *Handler) fetchUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "userinfo request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apierror.ProviderAuth(nil, "userinfo request returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to read userinfo response")
	}
	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, apierror.ProviderAuth(err, "failed to parse userinfo response")
	}
	return &info, nil
}

func (h *Handler) tokenToCredential(ctx context.Context, tok *oauth2.Token) *store.Credential {
	now := time.Now().UTC()
	cred := &store.Credential{
		ID:           uuid.NewString(),
		Provider:     store.ProviderGeminiCLI,
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
	if info, err := h.fetchUserInfo(ctx, tok.AccessToken); err == nil {
		cred.Email = info.Email
		cred.Name = info.Name
	}
	return cred
}
