package auth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
	"github.com/cliproxy-gateway/gateway/internal/store"
)

// refreshMargin is how far ahead of expiry the Auth Manager proactively
// refreshes a credential (spec §4.3).
const refreshMargin = 5 * time.Minute

// Manager is the facade described in spec §4.3: it dispatches across the
// three provider capability sets as a total function of the provider
// discriminator, manages credential and pending-session persistence, and
// deduplicates concurrent refreshes of the same credential.
type Manager struct {
	credentials store.CredentialStore
	sessions    store.SessionStore

	oauthHandlers   map[store.Provider]OAuthHandler
	deviceHandlers  map[store.Provider]DeviceCodeHandler
	serviceHandlers map[store.Provider]ServiceAccountHandler

	refreshGroup singleflight.Group
}

// NewManager constructs a Manager backed by the given stores. Handlers are
// registered afterward via RegisterOAuth/RegisterDeviceCode/RegisterServiceAccount.
func NewManager(credentials store.CredentialStore, sessions store.SessionStore) *Manager {
	return &Manager{
		credentials:     credentials,
		sessions:        sessions,
		oauthHandlers:   make(map[store.Provider]OAuthHandler),
		deviceHandlers:  make(map[store.Provider]DeviceCodeHandler),
		serviceHandlers: make(map[store.Provider]ServiceAccountHandler),
	}
}

func (m *Manager) RegisterOAuth(h OAuthHandler) {
	if h != nil {
		m.oauthHandlers[h.Provider()] = h
	}
}

func (m *Manager) RegisterDeviceCode(h DeviceCodeHandler) {
	if h != nil {
		m.deviceHandlers[h.Provider()] = h
	}
}

func (m *Manager) RegisterServiceAccount(h ServiceAccountHandler) {
	if h != nil {
		m.serviceHandlers[h.Provider()] = h
	}
}

// ListAuthFiles returns every persisted credential (spec §4.3/§4.8).
func (m *Manager) ListAuthFiles() ([]*store.Credential, error) {
	return m.credentials.List()
}

// GetAuthFile returns a single credential by id.
func (m *Manager) GetAuthFile(id string) (*store.Credential, error) {
	cred, err := m.credentials.Get(id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, apierror.Client(404, "credential %s not found", id)
	}
	return cred, nil
}

// DeleteAuthFile removes a single credential.
func (m *Manager) DeleteAuthFile(id string) error {
	return m.credentials.Delete(id)
}

// DeleteByProvider removes every credential for a provider and reports how
// many were removed (spec §4.8).
func (m *Manager) DeleteByProvider(p store.Provider) (int, error) {
	return m.credentials.DeleteByProvider(p)
}

// StartOAuth begins the authorization-code+PKCE flow for an OAuth-capable
// provider.
func (m *Manager) StartOAuth(ctx context.Context, p store.Provider) (authURL, state string, err error) {
	h, ok := m.oauthHandlers[p]
	if !ok {
		return "", "", apierror.Client(400, "provider %s does not support oauth login", p)
	}
	return h.StartOAuth(ctx, m.sessions)
}

// HandleCallback completes an OAuth flow and persists the resulting
// credential.
func (m *Manager) HandleCallback(ctx context.Context, p store.Provider, code, state string) (*store.Credential, error) {
	h, ok := m.oauthHandlers[p]
	if !ok {
		return nil, apierror.Client(400, "provider %s does not support oauth login", p)
	}
	cred, err := h.HandleCallback(ctx, m.sessions, code, state)
	if err != nil {
		return nil, err
	}
	cred.SchemaVersion = store.CurrentSchemaVersion
	if err := m.credentials.Save(cred); err != nil {
		return nil, apierror.Storage(err, "failed to persist credential for %s", p)
	}
	return cred, nil
}

// GetOAuthStatus reports whether a pending OAuth session still exists and is
// unexpired, for the management surface's polling UI.
func (m *Manager) GetOAuthStatus(state string) (pending bool, expired bool, err error) {
	sess, err := m.sessions.Get(state)
	if err != nil {
		return false, false, apierror.Storage(err, "failed to look up oauth session")
	}
	if sess == nil {
		return false, true, nil
	}
	return true, sess.Expired(time.Now().UTC()), nil
}

// StartDeviceFlow begins a device-code flow for a device-code-capable
// provider.
func (m *Manager) StartDeviceFlow(ctx context.Context, p store.Provider) (DeviceFlowInit, string, error) {
	h, ok := m.deviceHandlers[p]
	if !ok {
		return DeviceFlowInit{}, "", apierror.Client(400, "provider %s does not support device-code login", p)
	}
	return h.StartDeviceFlow(ctx, m.sessions)
}

// PollDeviceCode polls a single step of a device-code flow, persisting the
// resulting credential on completion.
func (m *Manager) PollDeviceCode(ctx context.Context, p store.Provider, deviceCode string) (DevicePollResult, error) {
	h, ok := m.deviceHandlers[p]
	if !ok {
		return DevicePollResult{}, apierror.Client(400, "provider %s does not support device-code login", p)
	}
	result, err := h.PollForToken(ctx, m.sessions, deviceCode)
	if err != nil {
		return result, err
	}
	if result.Status == DeviceCompleted && result.Credential != nil {
		result.Credential.SchemaVersion = store.CurrentSchemaVersion
		if err := m.credentials.Save(result.Credential); err != nil {
			return result, apierror.Storage(err, "failed to persist credential for %s", p)
		}
	}
	return result, nil
}

// ImportServiceAccount imports a service-account-style credential (Vertex's
// signed-JWT key, or openai-compat's flat API key) and persists it.
func (m *Manager) ImportServiceAccount(ctx context.Context, p store.Provider, rawJSON []byte) (*store.Credential, error) {
	h, ok := m.serviceHandlers[p]
	if !ok {
		return nil, apierror.Client(400, "provider %s does not support service-account import", p)
	}
	cred, err := h.ImportServiceAccount(ctx, rawJSON)
	if err != nil {
		return nil, err
	}
	cred.SchemaVersion = store.CurrentSchemaVersion
	if err := m.credentials.Save(cred); err != nil {
		return nil, apierror.Storage(err, "failed to persist credential for %s", p)
	}
	return cred, nil
}

// refreshDispatch resolves the refresh function for cred.Provider across
// whichever of the three capability maps registered it; a provider appears
// in at most one, so this is a total function of the discriminator (spec §9).
func (m *Manager) refreshDispatch(p store.Provider) (func(context.Context, *store.Credential) (*store.Credential, error), bool) {
	if h, ok := m.oauthHandlers[p]; ok {
		return h.RefreshToken, true
	}
	if h, ok := m.serviceHandlers[p]; ok {
		return h.RefreshToken, true
	}
	// Device-code handlers that also support refresh (e.g. github-copilot)
	// expose it as an additional method beyond the DeviceCodeHandler
	// interface; detect it structurally rather than widening the interface
	// every device-code provider would otherwise have to implement.
	if h, ok := m.deviceHandlers[p]; ok {
		if refresher, ok := h.(interface {
			RefreshToken(context.Context, *store.Credential) (*store.Credential, error)
		}); ok {
			return refresher.RefreshToken, true
		}
	}
	return nil, false
}

// RefreshIfNeeded returns a refreshed record for cred when it is within
// refreshMargin of expiry (or already expired), deduplicating concurrent callers for the same
// credential id via singleflight (spec §4.3). It marks the credential as
// store.StatusError, with StatusMessage set, when the refresh itself fails.
func (m *Manager) RefreshIfNeeded(ctx context.Context, cred *store.Credential) (*store.Credential, error) {
	if cred == nil {
		return nil, apierror.Client(400, "credential is nil")
	}
	if cred.ExpiresAt == nil || cred.ExpiresAt.After(time.Now().UTC().Add(refreshMargin)) {
		return cred, nil
	}

	refresh, ok := m.refreshDispatch(cred.Provider)
	if !ok {
		return cred, nil
	}

	result, err, _ := m.refreshGroup.Do(cred.ID, func() (any, error) {
		latest, err := m.credentials.Get(cred.ID)
		if err != nil {
			return nil, apierror.Storage(err, "failed to reload credential before refresh")
		}
		if latest == nil {
			latest = cred
		}
		if latest.ExpiresAt != nil && latest.ExpiresAt.After(time.Now().UTC().Add(refreshMargin)) {
			return latest, nil
		}

		latest.Status = store.StatusRefreshing
		_ = m.credentials.Save(latest)

		refreshed, rerr := refresh(ctx, latest)
		if rerr != nil {
			latest.Status = store.StatusError
			latest.StatusMessage = rerr.Error()
			latest.UpdatedAt = time.Now().UTC()
			_ = m.credentials.Save(latest)
			return nil, rerr
		}
		refreshed.SchemaVersion = store.CurrentSchemaVersion
		refreshed.Status = store.StatusReady
		refreshed.StatusMessage = ""
		if err := m.credentials.Save(refreshed); err != nil {
			return nil, apierror.Storage(err, "failed to persist refreshed credential")
		}
		return refreshed, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Credential), nil
}

// GetValidCredential returns a credential refreshed if necessary, suitable
// for immediate use by the Router/Executor (spec §4.3).
func (m *Manager) GetValidCredential(ctx context.Context, id string) (*store.Credential, error) {
	cred, err := m.credentials.Get(id)
	if err != nil {
		return nil, apierror.Storage(err, "failed to load credential %s", id)
	}
	if cred == nil {
		return nil, apierror.Client(404, "credential %s not found", id)
	}
	return m.RefreshIfNeeded(ctx, cred)
}
