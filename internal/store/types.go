// Package store implements the credential store and pending-OAuth-session
// store described in spec §3/§4.1: durable per-credential records with
// atomic filesystem persistence, plus pluggable backends (Postgres, git,
// object storage) selected via configuration.
package store

import "time"

// Provider is the closed set of upstream providers a credential may belong
// to, per spec §3.
type Provider string

const (
	ProviderGeminiCLI     Provider = "gemini-cli"
	ProviderClaude        Provider = "claude"
	ProviderCodex         Provider = "codex"
	ProviderGitHubCopilot Provider = "github-copilot"
	ProviderVertex        Provider = "vertex"
	ProviderKiro          Provider = "kiro"
	ProviderIFlow         Provider = "iflow"
	ProviderAntigravity   Provider = "antigravity"
	ProviderQwen          Provider = "qwen"
	ProviderOpenAICompat  Provider = "openai-compat"
)

// KnownProviders lists every provider in the closed set, used for validation.
var KnownProviders = []Provider{
	ProviderGeminiCLI, ProviderClaude, ProviderCodex, ProviderGitHubCopilot,
	ProviderVertex, ProviderKiro, ProviderIFlow, ProviderAntigravity,
	ProviderQwen, ProviderOpenAICompat,
}

// IsKnownProvider reports whether p belongs to the closed discriminator set.
func IsKnownProvider(p Provider) bool {
	for _, known := range KnownProviders {
		if known == p {
			return true
		}
	}
	return false
}

// Tier classifies a credential's account plan for router model-gating.
type Tier string

const (
	TierPaid    Tier = "paid"
	TierFree    Tier = "free"
	TierUnknown Tier = "unknown"
)

// Status is the lifecycle status of a credential record.
type Status string

const (
	StatusReady      Status = "ready"
	StatusRefreshing Status = "refreshing"
	StatusCooling    Status = "cooling"
	StatusError      Status = "error"
)

// CurrentSchemaVersion is written to every persisted record; readers
// tolerate absent/older fields by substituting defaults (spec §9).
const CurrentSchemaVersion = 1

// Credential is the durable per-credential record described in spec §3.
type Credential struct {
	SchemaVersion int `json:"schema_version"`

	ID       string   `json:"id"`
	Provider Provider `json:"provider"`

	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Region    string `json:"region,omitempty"`

	Tier Tier `json:"tier"`

	Status        Status `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	Disabled      bool   `json:"disabled"`

	CooldownUntil  *time.Time `json:"cooldown_until,omitempty"`
	CooldownReason string     `json:"cooldown_reason,omitempty"`

	QuotaUsed    int64      `json:"quota_used,omitempty"`
	QuotaLimit   int64      `json:"quota_limit,omitempty"`
	QuotaResetAt *time.Time `json:"quota_reset_at,omitempty"`

	// TokenData holds opaque provider-specific auxiliary tokens, e.g. the
	// GitHub token used to mint short-lived Copilot tokens. Never logged.
	TokenData map[string]string `json:"token_data,omitempty"`
	// ServiceAccountJSON holds an opaque Vertex service-account payload.
	// Never logged, never returned by any management read endpoint.
	ServiceAccountJSON string `json:"service_account_json,omitempty"`

	// UsageCount is the routing usage counter consulted by roundRobin.
	UsageCount int64 `json:"usage_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UnknownFields preserves any keys this schema version doesn't model,
	// so a rewrite from an older/newer reader does not drop data (spec §9).
	UnknownFields map[string]any `json:"-"`
}

// Eligible reports whether c may be selected by the Router, per spec §3's
// invariant: ready, not disabled, and not presently cooling down.
func (c *Credential) Eligible(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.Status != StatusReady || c.Disabled {
		return false
	}
	if c.CooldownUntil != nil && c.CooldownUntil.After(now) {
		return false
	}
	return true
}

// Clone returns a deep-enough copy so callers can mutate the result without
// racing the store's internal copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.CooldownUntil != nil {
		t := *c.CooldownUntil
		cp.CooldownUntil = &t
	}
	if c.QuotaResetAt != nil {
		t := *c.QuotaResetAt
		cp.QuotaResetAt = &t
	}
	if c.TokenData != nil {
		cp.TokenData = make(map[string]string, len(c.TokenData))
		for k, v := range c.TokenData {
			cp.TokenData[k] = v
		}
	}
	return &cp
}

// PendingSession is the ephemeral OAuth/device-code session record keyed by
// state, per spec §3.
type PendingSession struct {
	State        string    `json:"state"`
	Provider     Provider  `json:"provider"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`

	// Device-code specific fields.
	DeviceCode      string `json:"device_code,omitempty"`
	UserCode        string `json:"user_code,omitempty"`
	VerificationURI string `json:"verification_uri,omitempty"`
	PollInterval    int    `json:"poll_interval,omitempty"`

	// Incognito signals the caller should open the auth URL in a private
	// browsing window (Kiro requirement, spec §4.2).
	Incognito bool `json:"incognito,omitempty"`
}

// Expired reports whether the session has passed its expiry.
func (s *PendingSession) Expired(now time.Time) bool {
	return s == nil || now.After(s.ExpiresAt)
}

// DefaultSessionTTL is the default pending-session lifetime (spec §3).
const DefaultSessionTTL = 10 * time.Minute

// CredentialStore is the narrow contract the Auth Manager, Router and
// management handlers use to manipulate credential records (spec §4.1).
type CredentialStore interface {
	List() ([]*Credential, error)
	Get(id string) (*Credential, error)
	GetByProvider(p Provider) ([]*Credential, error)
	Save(c *Credential) error
	Delete(id string) error
	DeleteByProvider(p Provider) (int, error)
}

// SessionStore is the narrow contract for pending OAuth/device-code
// sessions (spec §3/§4.2).
type SessionStore interface {
	Save(s *PendingSession) error
	Get(state string) (*PendingSession, error)
	Delete(state string) error
	SweepExpired() (int, error)
}
