package generic

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func encodeSegment(v any) string {
	data, _ := json.Marshal(v)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(data)
}

func TestUnverifiedClaimsDecodesPayload(t *testing.T) {
	token := encodeSegment(map[string]any{"alg": "none"}) + "." +
		encodeSegment(map[string]any{"email": "user@example.com", "sub": "abc123"}) + "." + "sig"

	claims, err := UnverifiedClaims(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims["email"] != "user@example.com" {
		t.Fatalf("email = %v", claims["email"])
	}
	if claims["sub"] != "abc123" {
		t.Fatalf("sub = %v", claims["sub"])
	}
}

func TestUnverifiedClaimsRejectsMalformedToken(t *testing.T) {
	if _, err := UnverifiedClaims("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestClaimStringReturnsFirstNonEmptyMatch(t *testing.T) {
	claims := map[string]any{"sub": "abc123"}
	if got := ClaimString(claims, "email", "sub"); got != "abc123" {
		t.Fatalf("got %q, want abc123", got)
	}
}

func TestClaimStringReturnsEmptyWhenNoKeysMatch(t *testing.T) {
	claims := map[string]any{"other": "value"}
	if got := ClaimString(claims, "email", "sub"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
