package generic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// UnverifiedClaims decodes the payload segment of a compact JWT without
// checking its signature. It exists solely to read cosmetic claims (email,
// sub) out of an already-trusted provider-issued token, per spec §4.2's
// "Claude: email derived from an unverified decode ... decode-only, not for
// authorization" rule. Never use the result to authorize anything.
func UnverifiedClaims(token string) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid jwt: expected 3 segments, got %d", len(parts))
	}
	payload := parts[1]
	switch len(payload) % 4 {
	case 2:
		payload += "=="
	case 3:
		payload += "="
	}
	data, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode jwt payload: %w", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jwt claims: %w", err)
	}
	return claims, nil
}

// ClaimString returns claims[key] as a string, trying each key in order and
// returning the first non-empty match. Claude's id token carries "email" in
// some issuances and only "sub" in others.
func ClaimString(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
