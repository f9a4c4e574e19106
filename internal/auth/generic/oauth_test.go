package generic

import (
	"context"
	"net/url"
	"testing"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

func newTestSessionStore(t *testing.T) store.SessionStore {
	t.Helper()
	s, err := store.NewFileSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}
	return s
}

func testEndpoint() Endpoint {
	return Endpoint{
		Provider:    store.ProviderClaude,
		AuthURL:     "https://example.com/authorize",
		TokenURL:    "https://example.com/token",
		ClientID:    "client-id",
		RedirectURL: "https://example.com/callback",
		Scopes:      []string{"profile"},
		UsePKCE:     true,
	}
}

func TestStartOAuthGeneratesPKCEChallengeInURL(t *testing.T) {
	sessions := newTestSessionStore(t)
	authURL, state, err := StartOAuth(context.Background(), sessions, testEndpoint())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state == "" {
		t.Fatal("expected non-empty state")
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("failed to parse auth url: %v", err)
	}
	q := parsed.Query()
	if q.Get("code_challenge") == "" {
		t.Fatal("expected code_challenge in auth url")
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Fatalf("code_challenge_method = %q", q.Get("code_challenge_method"))
	}
	if q.Get("state") != state {
		t.Fatalf("state mismatch: url=%q returned=%q", q.Get("state"), state)
	}

	sess, err := sessions.Get(state)
	if err != nil {
		t.Fatalf("unexpected error fetching session: %v", err)
	}
	if sess == nil || sess.CodeVerifier == "" {
		t.Fatal("expected pending session with code verifier persisted")
	}
}

func TestResolveSessionDeletesSessionOnSuccess(t *testing.T) {
	sessions := newTestSessionStore(t)
	_, state, err := StartOAuth(context.Background(), sessions, testEndpoint())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, err := ResolveSession(sessions, store.ProviderClaude, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State != state {
		t.Fatalf("state = %q, want %q", sess.State, state)
	}

	if again, err := sessions.Get(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if again != nil {
		t.Fatal("expected session to be deleted after resolution")
	}
}

func TestResolveSessionRejectsUnknownState(t *testing.T) {
	sessions := newTestSessionStore(t)
	_, err := ResolveSession(sessions, store.ProviderClaude, "nonexistent-state")
	if err == nil {
		t.Fatal("expected error for unknown state")
	}
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.TypeAuthSession {
		t.Fatalf("expected auth-session error, got %v", err)
	}
}

func TestResolveSessionRejectsProviderMismatch(t *testing.T) {
	sessions := newTestSessionStore(t)
	_, state, err := StartOAuth(context.Background(), sessions, testEndpoint())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = ResolveSession(sessions, store.ProviderCodex, state)
	if err == nil {
		t.Fatal("expected error for provider mismatch")
	}
}

func TestGeneratePKCECodesProducesDistinctVerifiers(t *testing.T) {
	a, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CodeVerifier == b.CodeVerifier {
		t.Fatal("expected distinct verifiers across calls")
	}
	if a.CodeChallenge == "" || a.CodeVerifier == "" {
		t.Fatal("expected non-empty verifier and challenge")
	}
}
