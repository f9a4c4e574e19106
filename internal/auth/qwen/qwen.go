// Package qwen implements the Qwen device-code handler: RFC 8628 device
// authorization with a PKCE code_verifier carried alongside the device code,
// per spec §4.2. Unlike the OAuth handlers, polling is driven by the Auth
// Manager calling PollForToken once per device-poll request rather than
// blocking here.
package qwen

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/auth"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	deviceCodeURL = "https://chat.qwen.ai/api/v1/oauth2/device/code"
	tokenURL      = "https://chat.qwen.ai/api/v1/oauth2/token"
	clientID      = "f0304373b74a44d2b584a3fb70ca9e56"
	scope         = "openid profile email model.completion"
	grantType     = "urn:ietf:params:oauth:grant-type:device_code"
)

type Handler struct {
	httpClient *http.Client
}

func New() *Handler { return &Handler{httpClient: &http.Client{Timeout: 15 * time.Second}} }

func (h *Handler) Provider() store.Provider { return store.ProviderQwen }

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type deviceFlowResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// StartDeviceFlow requests a device code and persists a pending session
// keyed by the device code so PollForToken can recover the PKCE verifier.
func (h *Handler) StartDeviceFlow(ctx context.Context, sessions store.SessionStore) (auth.DeviceFlowInit, string, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(err, "failed to generate pkce verifier")
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("scope", scope)
	form.Set("code_challenge", codeChallenge(verifier))
	form.Set("code_challenge_method", "S256")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deviceCodeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(err, "failed to build device code request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(err, "device code request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(err, "failed to read device code response")
	}
	if resp.StatusCode != http.StatusOK {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(nil, "device code request returned status %d: %s", resp.StatusCode, string(body))
	}

	var flow deviceFlowResponse
	if err := json.Unmarshal(body, &flow); err != nil || flow.DeviceCode == "" {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(err, "malformed device code response")
	}

	now := time.Now().UTC()
	interval := flow.Interval
	if interval <= 0 {
		interval = 5
	}
	expiresIn := flow.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 600
	}
	sess := &store.PendingSession{
		State:           flow.DeviceCode,
		Provider:        store.ProviderQwen,
		CodeVerifier:    verifier,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(expiresIn) * time.Second),
		DeviceCode:      flow.DeviceCode,
		UserCode:        flow.UserCode,
		VerificationURI: flow.VerificationURI,
		PollInterval:    interval,
	}
	if err := sessions.Save(sess); err != nil {
		return auth.DeviceFlowInit{}, "", apierror.Storage(err, "failed to persist device session")
	}

	return auth.DeviceFlowInit{
		DeviceCode:      flow.DeviceCode,
		UserCode:        flow.UserCode,
		VerificationURI: flow.VerificationURI,
		Interval:        interval,
		ExpiresIn:       expiresIn,
	}, sess.State, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ResourceURL  string `json:"resource_url"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

// PollForToken issues a single poll against the token endpoint. Callers are
// responsible for the retry cadence (spec §4.2: client-driven polling, not a
// blocking server-side loop).
func (h *Handler) PollForToken(ctx context.Context, sessions store.SessionStore, deviceCode string) (auth.DevicePollResult, error) {
	sess, err := sessions.Get(deviceCode)
	if err != nil {
		return auth.DevicePollResult{}, apierror.Storage(err, "failed to look up device session")
	}
	if sess == nil {
		return auth.DevicePollResult{Status: auth.DeviceExpired}, nil
	}
	if sess.Expired(time.Now().UTC()) {
		_ = sessions.Delete(sess.State)
		return auth.DevicePollResult{Status: auth.DeviceExpired}, nil
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("client_id", clientID)
	form.Set("device_code", deviceCode)
	form.Set("code_verifier", sess.CodeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return auth.DevicePollResult{Status: auth.DeviceError}, apierror.ProviderAuth(err, "failed to build poll request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return auth.DevicePollResult{Status: auth.DevicePending}, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return auth.DevicePollResult{Status: auth.DevicePending}, nil
	}

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &errBody)
		switch errBody.Error {
		case "authorization_pending", "slow_down":
			return auth.DevicePollResult{Status: auth.DevicePending}, nil
		case "expired_token":
			_ = sessions.Delete(sess.State)
			return auth.DevicePollResult{Status: auth.DeviceExpired}, nil
		default:
			_ = sessions.Delete(sess.State)
			return auth.DevicePollResult{Status: auth.DeviceError}, apierror.ProviderAuth(nil, "device poll failed: %s", errBody.Error)
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return auth.DevicePollResult{Status: auth.DeviceError}, apierror.ProviderAuth(err, "malformed token response")
	}
	_ = sessions.Delete(sess.State)

	now := time.Now().UTC()
	cred := &store.Credential{
		ID:           uuid.NewString(),
		Provider:     store.ProviderQwen,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Tier:         store.TierUnknown,
		Status:       store.StatusReady,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if tok.ExpiresIn > 0 {
		exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
		cred.ExpiresAt = &exp
	}
	if tok.ResourceURL != "" {
		cred.TokenData = map[string]string{"resource_url": tok.ResourceURL}
	}

	return auth.DevicePollResult{Status: auth.DeviceCompleted, Credential: cred}, nil
}

func (h *Handler) RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "refresh request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to read refresh response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierror.ProviderAuth(nil, "refresh returned status %d: %s", resp.StatusCode, string(body))
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, apierror.ProviderAuth(err, "malformed refresh response")
	}

	updated := cred.Clone()
	updated.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	updated.UpdatedAt = time.Now().UTC()
	if tok.ExpiresIn > 0 {
		exp := updated.UpdatedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
		updated.ExpiresAt = &exp
	}
	if tok.ResourceURL != "" {
		if updated.TokenData == nil {
			updated.TokenData = map[string]string{}
		}
		updated.TokenData["resource_url"] = tok.ResourceURL
	}
	return updated, nil
}

