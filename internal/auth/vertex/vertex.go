// Package vertex implements the Google Vertex AI service-account handler:
// a signed RS256 JWT-bearer assertion exchanged for a one-hour access token,
// per spec §4.2. There is no refresh token; RefreshToken re-signs a fresh
// assertion from the retained service-account key every time.
package vertex

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	scope         = "https://www.googleapis.com/auth/cloud-platform"
	assertionTTL  = time.Hour
)

type Handler struct {
	httpClient *http.Client
}

func New() *Handler { return &Handler{httpClient: &http.Client{Timeout: 15 * time.Second}} }

func (h *Handler) Provider() store.Provider { return store.ProviderVertex }

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type jwtClaims struct {
	Iss   string `json:"iss"`
	Sub   string `json:"sub"`
	Aud   string `json:"aud"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
	Scope string `json:"scope"`
}

func base64URLEncode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// signAssertion builds and signs the RS256 JWT-bearer assertion described in
// spec §4.2: iss/sub are the service account's client_email, aud is the
// token endpoint, and the token is valid for exactly one hour.
func signAssertion(clientEmail string, key *rsa.PrivateKey) (string, error) {
	now := time.Now().UTC()
	header := jwtHeader{Alg: "RS256", Typ: "JWT"}
	claims := jwtClaims{
		Iss:   clientEmail,
		Sub:   clientEmail,
		Aud:   tokenEndpoint,
		Iat:   now.Unix(),
		Exp:   now.Add(assertionTTL).Unix(),
		Scope: scope,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signingInput := base64URLEncode(headerJSON) + "." + base64URLEncode(claimsJSON)

	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt assertion: %w", err)
	}
	return signingInput + "." + base64URLEncode(sig), nil
}

func parseRSAPrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("private_key is not valid pem")
	}
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private_key is not an RSA key")
	}
	return rsaKey, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

func (h *Handler) exchangeAssertion(ctx context.Context, assertion string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to build token exchange request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "token exchange request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to read token exchange response")
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, apierror.ProviderAuth(err, "malformed token exchange response")
	}
	if resp.StatusCode != http.StatusOK || tok.AccessToken == "" {
		return nil, apierror.ProviderAuth(nil, "token exchange failed: %s %s", tok.Error, tok.ErrorDesc)
	}
	return &tok, nil
}

// ImportServiceAccount validates and normalizes a pasted service-account
// JSON payload, performs one JWT-bearer exchange to prove the key is live,
// and mints a credential that retains the normalized JSON for future
// refreshes (spec §4.2, §9).
func (h *Handler) ImportServiceAccount(ctx context.Context, rawJSON []byte) (*store.Credential, error) {
	normalized, err := normalizeServiceAccount(rawJSON)
	if err != nil {
		return nil, apierror.Client(http.StatusBadRequest, "invalid service account: %v", err)
	}
	clientEmail, _ := normalized["client_email"].(string)
	projectID, _ := normalized["project_id"].(string)
	if clientEmail == "" {
		return nil, apierror.Client(http.StatusBadRequest, "service account missing client_email")
	}
	privateKeyPEM, _ := normalized["private_key"].(string)
	rsaKey, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, apierror.Client(http.StatusBadRequest, "service account private key is unusable: %v", err)
	}

	assertion, err := signAssertion(clientEmail, rsaKey)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to sign assertion")
	}
	tok, err := h.exchangeAssertion(ctx, assertion)
	if err != nil {
		return nil, err
	}

	normalizedJSON, err := json.Marshal(normalized)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to re-serialize normalized service account")
	}

	now := time.Now().UTC()
	exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.ExpiresIn <= 0 {
		exp = now.Add(assertionTTL)
	}
	return &store.Credential{
		ID:                 uuid.NewString(),
		Provider:           store.ProviderVertex,
		AccessToken:        tok.AccessToken,
		ExpiresAt:          &exp,
		Email:              clientEmail,
		ProjectID:          projectID,
		Tier:               store.TierPaid,
		Status:             store.StatusReady,
		ServiceAccountJSON: string(normalizedJSON),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// RefreshToken re-signs a fresh assertion from the retained service-account
// key; Vertex issues no refresh token, so every refresh repeats the
// JWT-bearer exchange (spec §4.2).
func (h *Handler) RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	if cred.ServiceAccountJSON == "" {
		return nil, apierror.ProviderAuth(nil, "credential has no retained service account to refresh from")
	}
	var sa map[string]any
	if err := json.Unmarshal([]byte(cred.ServiceAccountJSON), &sa); err != nil {
		return nil, apierror.Storage(err, "stored service account json is corrupt")
	}
	clientEmail, _ := sa["client_email"].(string)
	privateKeyPEM, _ := sa["private_key"].(string)
	rsaKey, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "stored service account private key is unusable")
	}

	assertion, err := signAssertion(clientEmail, rsaKey)
	if err != nil {
		return nil, apierror.ProviderAuth(err, "failed to sign assertion")
	}
	tok, err := h.exchangeAssertion(ctx, assertion)
	if err != nil {
		return nil, err
	}

	updated := cred.Clone()
	updated.AccessToken = tok.AccessToken
	now := time.Now().UTC()
	exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.ExpiresIn <= 0 {
		exp = now.Add(assertionTTL)
	}
	updated.ExpiresAt = &exp
	updated.UpdatedAt = now
	return updated, nil
}
