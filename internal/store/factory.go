package store

import (
	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// BackendConfig carries just the fields NewCredentialStore needs, so the
// store package does not import internal/config (which would create an
// import cycle with config validation helpers).
type BackendConfig struct {
	Backend string

	AuthDir string

	PostgresDSN string

	GitRemoteURL string
	GitLocalPath string
	GitUser      string
	GitPassword  string

	ObjectEndpoint  string
	ObjectAccessKey string
	ObjectSecretKey string
	ObjectBucket    string
	ObjectUseTLS    bool
}

// NewCredentialStore selects and constructs the configured backend.
func NewCredentialStore(cfg BackendConfig) (CredentialStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileCredentialStore(cfg.AuthDir)
	case "postgres":
		return NewPostgresStore(cfg.PostgresDSN)
	case "git":
		localDir := cfg.GitLocalPath
		if localDir == "" {
			localDir = cfg.AuthDir
		}
		return NewGitTokenStore(localDir, cfg.GitRemoteURL, cfg.GitUser, cfg.GitPassword)
	case "object":
		return NewObjectTokenStore(cfg.ObjectEndpoint, cfg.ObjectAccessKey, cfg.ObjectSecretKey, cfg.ObjectBucket, cfg.ObjectUseTLS)
	default:
		return nil, apierror.Config(nil, "unknown storage.backend %q", cfg.Backend)
	}
}

// SessionBackendConfig carries the fields needed to build a SessionStore.
type SessionBackendConfig struct {
	Backend     string
	SessionsDir string
	RedisURL    string
}

// NewSessionStore selects and constructs the configured pending-session backend.
func NewSessionStore(cfg SessionBackendConfig) (SessionStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewFileSessionStore(cfg.SessionsDir)
	case "redis":
		return NewRedisSessionStore(cfg.RedisURL)
	default:
		return nil, apierror.Config(nil, "unknown session-store.backend %q", cfg.Backend)
	}
}
