// Package copilot implements the GitHub Copilot device-code handler. Spec
// §4.2 describes a two-step exchange: a standard GitHub device code yields a
// GitHub access token, and a second call against Copilot's internal token
// endpoint mints a short-lived Copilot token from it. The GitHub token is
// retained in the credential's TokenData so later refreshes can repeat the
// second step without re-running the device flow.
package copilot

import (
	"context"
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
	deviceCodeURL    = "https://github.com/login/device/code"
	accessTokenURL   = "https://github.com/login/oauth/access_token"
	copilotTokenURL  = "https://api.github.com/copilot_internal/v2/token"
	clientID         = "Iv1.b507a08c87ecfe98"
	scope            = "read:user"
	githubTokenKey   = "github_token"
)

type Handler struct {
	httpClient *http.Client
}

func New() *Handler { return &Handler{httpClient: &http.Client{Timeout: 15 * time.Second}} }

func (h *Handler) Provider() store.Provider { return store.ProviderGitHubCopilot }

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

func (h *Handler) StartDeviceFlow(ctx context.Context, sessions store.SessionStore) (auth.DeviceFlowInit, string, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("scope", scope)

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

	var dc deviceCodeResponse
	if err := json.Unmarshal(body, &dc); err != nil || dc.DeviceCode == "" {
		return auth.DeviceFlowInit{}, "", apierror.ProviderAuth(err, "malformed device code response")
	}

	interval := dc.Interval
	if interval <= 0 {
		interval = 5
	}
	expiresIn := dc.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 900
	}
	now := time.Now().UTC()
	sess := &store.PendingSession{
		State:           dc.DeviceCode,
		Provider:        store.ProviderGitHubCopilot,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(expiresIn) * time.Second),
		DeviceCode:      dc.DeviceCode,
		UserCode:        dc.UserCode,
		VerificationURI: dc.VerificationURI,
		PollInterval:    interval,
	}
	if err := sessions.Save(sess); err != nil {
		return auth.DeviceFlowInit{}, "", apierror.Storage(err, "failed to persist device session")
	}

	return auth.DeviceFlowInit{
		DeviceCode:      dc.DeviceCode,
		UserCode:        dc.UserCode,
		VerificationURI: dc.VerificationURI,
		Interval:        interval,
		ExpiresIn:       expiresIn,
	}, sess.State, nil
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

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
	form.Set("client_id", clientID)
	form.Set("device_code", deviceCode)
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, accessTokenURL, strings.NewReader(form.Encode()))
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

	var tok accessTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return auth.DevicePollResult{Status: auth.DeviceError}, apierror.ProviderAuth(err, "malformed token response")
	}

	switch tok.Error {
	case "authorization_pending", "slow_down":
		return auth.DevicePollResult{Status: auth.DevicePending}, nil
	case "expired_token":
		_ = sessions.Delete(sess.State)
		return auth.DevicePollResult{Status: auth.DeviceExpired}, nil
	case "access_denied":
		_ = sessions.Delete(sess.State)
		return auth.DevicePollResult{Status: auth.DeviceError}, apierror.ProviderAuth(nil, "authorization denied by user")
	case "":
		// fall through to success handling below
	default:
		_ = sessions.Delete(sess.State)
		return auth.DevicePollResult{Status: auth.DeviceError}, apierror.ProviderAuth(nil, "device poll failed: %s", tok.Error)
	}
	if tok.AccessToken == "" {
		return auth.DevicePollResult{Status: auth.DevicePending}, nil
	}
	_ = sessions.Delete(sess.State)

	cred, err := h.mintCopilotCredential(ctx, tok.AccessToken)
	if err != nil {
		return auth.DevicePollResult{Status: auth.DeviceError}, err
	}
	return auth.DevicePollResult{Status: auth.DeviceCompleted, Credential: cred}, nil
}

type copilotTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// mintCopilotCredential performs the second step of the exchange: trading
// the long-lived GitHub token for a short-lived Copilot token, and retaining
// the GitHub token for future refreshes (spec §4.2).
func (h *Handler) mintCopilotCredential(ctx context.Context, githubToken string) (*store.Credential, error) {
	copilotTok, expiresAt, err := h.fetchCopilotToken(ctx, githubToken)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &store.Credential{
		ID:          uuid.NewString(),
		Provider:    store.ProviderGitHubCopilot,
		AccessToken: copilotTok,
		ExpiresAt:   &expiresAt,
		Tier:        store.TierUnknown,
		Status:      store.StatusReady,
		TokenData:   map[string]string{githubTokenKey: githubToken},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (h *Handler) fetchCopilotToken(ctx context.Context, githubToken string) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, copilotTokenURL, nil)
	if err != nil {
		return "", time.Time{}, apierror.ProviderAuth(err, "failed to build copilot token request")
	}
	req.Header.Set("Authorization", "token "+githubToken)
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, apierror.ProviderAuth(err, "copilot token request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, apierror.ProviderAuth(err, "failed to read copilot token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, apierror.ProviderAuth(nil, "copilot token request returned status %d: %s", resp.StatusCode, string(body))
	}
	var tok copilotTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.Token == "" {
		return "", time.Time{}, apierror.ProviderAuth(err, "malformed copilot token response")
	}
	return tok.Token, time.Unix(tok.ExpiresAt, 0).UTC(), nil
}

// RefreshToken mints a new Copilot token from the retained GitHub token,
// per spec §4.2; it never re-runs the device flow.
func (h *Handler) RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	githubToken := cred.TokenData[githubTokenKey]
	if githubToken == "" {
		return nil, apierror.ProviderAuth(nil, "credential has no retained github token to refresh from")
	}
	copilotTok, expiresAt, err := h.fetchCopilotToken(ctx, githubToken)
	if err != nil {
		return nil, err
	}
	updated := cred.Clone()
	updated.AccessToken = copilotTok
	updated.ExpiresAt = &expiresAt
	updated.UpdatedAt = time.Now().UTC()
	return updated, nil
}
