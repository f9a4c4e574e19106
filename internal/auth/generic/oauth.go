// Package generic implements the authorization-code+PKCE and refresh
// exchange shared by every OAuth-capable provider (claude, codex,
// gemini-cli, kiro, iflow, antigravity), so each provider package only has
// to supply its endpoint, scopes and client id plus whatever quirks spec
// §4.2 calls out (PKCE on/off, extra authorize params, consent).
package generic

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// PKCECodes holds an RFC 7636 verifier/challenge pair.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCECodes returns a fresh 64-byte verifier and its S256 challenge.
func GeneratePKCECodes() (*PKCECodes, error) {
	verifierBytes := make([]byte, 64)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(verifierBytes)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sum[:])
	return &PKCECodes{CodeVerifier: verifier, CodeChallenge: challenge}, nil
}

// GenerateState returns a fresh 32-byte random state token.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}

// Endpoint describes one provider's OAuth endpoints and client identity.
type Endpoint struct {
	Provider     store.Provider
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string // empty for public clients (e.g. Claude)
	RedirectURL  string
	Scopes       []string
	UsePKCE      bool
	// ExtraAuthParams are appended to the authorization URL (e.g. Codex's
	// audience=..., Gemini CLI's access_type=offline&prompt=consent).
	ExtraAuthParams map[string]string
}

func (e Endpoint) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.ClientID,
		ClientSecret: e.ClientSecret,
		RedirectURL:  e.RedirectURL,
		Scopes:       e.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  e.AuthURL,
			TokenURL: e.TokenURL,
		},
	}
}

// Session bundles the ephemeral per-flow data a caller must persist in the
// SessionStore between StartOAuth and HandleCallback.
type Session struct {
	State        string
	CodeVerifier string
}

// StartOAuth generates state (and PKCE codes, if enabled), writes a pending
// session with the default TTL, and returns the authorization URL.
func StartOAuth(ctx context.Context, sessions store.SessionStore, ep Endpoint) (authURL, state string, err error) {
	state, err = GenerateState()
	if err != nil {
		return "", "", apierror.ProviderAuth(err, "failed to start oauth for %s", ep.Provider)
	}

	var verifier string
	authCodeOpts := []oauth2.AuthCodeOption{}
	for k, v := range ep.ExtraAuthParams {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(k, v))
	}
	if ep.UsePKCE {
		pkce, perr := GeneratePKCECodes()
		if perr != nil {
			return "", "", apierror.ProviderAuth(perr, "failed to generate pkce for %s", ep.Provider)
		}
		verifier = pkce.CodeVerifier
		authCodeOpts = append(authCodeOpts,
			oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}

	sess := &store.PendingSession{
		State:        state,
		Provider:     ep.Provider,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(store.DefaultSessionTTL),
	}
	if err := sessions.Save(sess); err != nil {
		return "", "", err
	}

	cfg := ep.oauth2Config()
	url := cfg.AuthCodeURL(state, authCodeOpts...)
	return url, state, nil
}

// ResolveSession validates presence, non-expiry and provider match for a
// callback's state parameter, per spec §4.2, and deletes it regardless of
// outcome (HandleCallback's contract: "On any error, the session is
// deleted").
func ResolveSession(sessions store.SessionStore, provider store.Provider, state string) (*store.PendingSession, error) {
	sess, err := sessions.Get(state)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apierror.AuthSession("unknown or expired oauth session")
	}
	defer func() { _ = sessions.Delete(state) }()

	if sess.Expired(time.Now()) {
		return nil, apierror.AuthSession("oauth session expired")
	}
	if sess.Provider != provider {
		return nil, apierror.AuthSession("oauth session provider mismatch")
	}
	return sess, nil
}

// ExchangeCode exchanges an authorization code for a token, including the
// PKCE verifier when the session carries one.
func ExchangeCode(ctx context.Context, ep Endpoint, sess *store.PendingSession, code string) (*oauth2.Token, error) {
	cfg := ep.oauth2Config()
	var opts []oauth2.AuthCodeOption
	if sess.CodeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", sess.CodeVerifier))
	}
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "token exchange failed for %s", ep.Provider)
	}
	return tok, nil
}

// RefreshToken exchanges a refresh token for a fresh access token.
func RefreshToken(ctx context.Context, ep Endpoint, refreshToken string) (*oauth2.Token, error) {
	cfg := ep.oauth2Config()
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, apierror.ProviderAuth(err, "refresh failed for %s", ep.Provider)
	}
	return tok, nil
}
