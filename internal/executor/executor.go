// Package executor builds and dispatches the outbound HTTP request to a
// selected provider credential, classifying the outcome for the Router and
// Fallback Engine (spec §4.7) and handling retry/backoff, compression and
// per-provider transport quirks (uTLS for Claude, websocket for Codex).
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// Outcome classifies the result of one upstream call for the Router/Fallback
// Engine, per spec §4.7.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRetryable Outcome = "retryable"
	OutcomeQuota     Outcome = "quota"
	OutcomeAuth      Outcome = "auth"
	OutcomeClient    Outcome = "client"
)

// Config holds the retry/backoff and timeout knobs sourced from the
// gateway's top-level configuration (spec §6).
type Config struct {
	RequestRetry     int
	MaxRetryInterval time.Duration
	Timeout          time.Duration
}

// DefaultConfig matches config.Config's applyDefaults values.
func DefaultConfig() Config {
	return Config{RequestRetry: 3, MaxRetryInterval: 30 * time.Second, Timeout: 120 * time.Second}
}

// Endpoint describes where and how to reach a provider's upstream API for
// one request.
type Endpoint struct {
	Method string
	URL    string
	Stream bool
}

// Executor dispatches HTTP calls to upstream providers using a transport
// tuned per-provider (spec §4.7).
type Executor struct {
	cfg        Config
	clients    map[store.Provider]*http.Client
	defaultCli *http.Client
}

// New builds an Executor with a provider-keyed set of *http.Client so Claude
// traffic can use the uTLS-fingerprinted transport while other providers use
// a standard transport.
func New(cfg Config) *Executor {
	e := &Executor{cfg: cfg, clients: make(map[store.Provider]*http.Client)}
	e.defaultCli = &http.Client{Timeout: cfg.Timeout, Transport: http.DefaultTransport}
	e.clients[store.ProviderClaude] = &http.Client{Timeout: cfg.Timeout, Transport: newUTLSTransport()}
	return e
}

func (e *Executor) clientFor(p store.Provider) *http.Client {
	if c, ok := e.clients[p]; ok {
		return c
	}
	return e.defaultCli
}

// BuildRequest constructs the outbound *http.Request for a credential,
// attaching the provider-specific auth header and passthrough headers (spec
// §4.7: bearer token, user-agent, optional project/region headers).
func (e *Executor) BuildRequest(ctx context.Context, ep Endpoint, cred *store.Credential, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, ep.Method, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, apierror.Retryable(err, 0, "failed to build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cliproxy-gateway/1.0")
	req.Header.Set("Accept-Encoding", "gzip, br")

	switch cred.Provider {
	case store.ProviderVertex:
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		if cred.ProjectID != "" {
			req.Header.Set("X-Goog-User-Project", cred.ProjectID)
		}
	case store.ProviderGitHubCopilot:
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		req.Header.Set("Copilot-Integration-Id", "vscode-chat")
		req.Header.Set("Editor-Version", "vscode/1.0.0")
	case store.ProviderOpenAICompat:
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	default:
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	if ep.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

// Do dispatches req against the credential's provider, retrying retryable
// outcomes with exponential backoff capped at MaxRetryInterval (spec §4.7).
// A successful dispatch returns the upstream response with its body already
// decompressed.
func (e *Executor) Do(ctx context.Context, provider store.Provider, req *http.Request) (*http.Response, Outcome, error) {
	cli := e.clientFor(provider)
	var lastErr error
	bodyBytes, _ := bodyOf(req)

	attempts := e.cfg.RequestRetry
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt, e.cfg.MaxRetryInterval); err != nil {
				return nil, OutcomeRetryable, err
			}
			req = req.Clone(ctx)
			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}
		}

		resp, err := cli.Do(req)
		if resp != nil {
			if derr := decompress(resp); derr != nil {
				return resp, OutcomeRetryable, derr
			}
		}
		outcome, classifyErr := Classify(resp, err)
		if outcome == OutcomeRetryable && attempt < attempts-1 {
			lastErr = classifyErr
			log.WithFields(log.Fields{"provider": provider, "attempt": attempt + 1}).Warn("upstream call retryable, backing off")
			if resp != nil {
				resp.Body.Close()
			}
			continue
		}
		return resp, outcome, classifyErr
	}
	return nil, OutcomeRetryable, lastErr
}

func bodyOf(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	return b, nil
}

// quotaMarkers lists provider-recognized substrings that show up in a 403
// body when the real cause is quota exhaustion rather than a bad or revoked
// credential (DESIGN.md Open Question #1).
var quotaMarkers = []string{
	"RESOURCE_EXHAUSTED",
	"INSUFFICIENT_QUOTA",
	"QUOTA_EXCEEDED",
	"EXCEEDED YOUR CURRENT QUOTA",
	"QUOTA HAS BEEN EXHAUSTED",
}

// Classify maps a round-trip's outcome to the Router/Fallback Engine's
// five-way taxonomy (spec §4.7): network errors and 5xx are retryable, 429
// and 403s carrying a provider-recognized quota marker are quota, other
// 401/403 are auth, other 4xx are client (surfaced without rotation).
func Classify(resp *http.Response, err error) (Outcome, error) {
	if err != nil {
		return OutcomeRetryable, apierror.Retryable(err, 0, "upstream request failed")
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeOK, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return OutcomeQuota, apierror.Quota(nil, "provider reported rate/quota limit")
	case resp.StatusCode == http.StatusForbidden:
		if bodyHasQuotaMarker(resp) {
			return OutcomeQuota, apierror.Quota(nil, "provider reported quota exhaustion (status 403)")
		}
		return OutcomeAuth, apierror.ProviderAuth(nil, "provider rejected credential (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return OutcomeAuth, apierror.ProviderAuth(nil, "provider rejected credential (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return OutcomeRetryable, apierror.Retryable(nil, resp.StatusCode, "upstream server error (status %d)", resp.StatusCode)
	case resp.StatusCode >= 400:
		return OutcomeClient, apierror.Client(resp.StatusCode, "upstream rejected request (status %d)", resp.StatusCode)
	default:
		return OutcomeOK, nil
	}
}

// bodyHasQuotaMarker peeks at a 403 response body (capped at 64KiB, well
// above any provider's error payload) for a quota marker, then restores the
// body so the caller can still read and surface it.
func bodyHasQuotaMarker(resp *http.Response) bool {
	if resp.Body == nil {
		return false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return false
	}
	upper := strings.ToUpper(string(data))
	for _, marker := range quotaMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func sleepBackoff(ctx context.Context, attempt int, max time.Duration) error {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if max > 0 && d > max {
		d = max
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func decompress(resp *http.Response) error {
	enc := strings.ToLower(resp.Header.Get("Content-Encoding"))
	switch enc {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("gzip decompress: %w", err)
		}
		resp.Body = &readCloser{Reader: gz, closer: resp.Body}
		resp.Header.Del("Content-Encoding")
	case "br":
		br := brotli.NewReader(resp.Body)
		resp.Body = &readCloser{Reader: br, closer: resp.Body}
		resp.Header.Del("Content-Encoding")
	}
	return nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error { return r.closer.Close() }
