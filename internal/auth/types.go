// Package auth defines the three provider capability sets from spec §4.2
// (OAuth, device-code, service-account) as Go interfaces, dispatched by the
// Auth Manager as a total function of the provider discriminator (spec §9).
package auth

import (
	"context"

	"github.com/cliproxy-gateway/gateway/internal/store"
)

// OAuthHandler implements the authorization-code+PKCE capability.
type OAuthHandler interface {
	Provider() store.Provider
	// StartOAuth creates a pending session and returns the browser-facing
	// authorization URL plus the session's state.
	StartOAuth(ctx context.Context, sessions store.SessionStore) (authURL string, state string, err error)
	// HandleCallback validates the session, exchanges the code for tokens,
	// and mints a credential record. The session is deleted on any outcome.
	HandleCallback(ctx context.Context, sessions store.SessionStore, code, state string) (*store.Credential, error)
	// RefreshToken exchanges a refresh token for a new access token.
	RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error)
}

// DeviceFlowInit is returned by StartDeviceFlow.
type DeviceFlowInit struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Interval        int
	ExpiresIn       int
}

// DevicePollStatus enumerates the outcomes of a device-code poll (spec §4.2).
type DevicePollStatus string

const (
	DevicePending   DevicePollStatus = "pending"
	DeviceCompleted DevicePollStatus = "completed"
	DeviceExpired   DevicePollStatus = "expired"
	DeviceError     DevicePollStatus = "error"
)

// DevicePollResult is returned by PollForToken.
type DevicePollResult struct {
	Status     DevicePollStatus
	Credential *store.Credential
	Err        error
}

// DeviceCodeHandler implements the device-code capability.
type DeviceCodeHandler interface {
	Provider() store.Provider
	StartDeviceFlow(ctx context.Context, sessions store.SessionStore) (DeviceFlowInit, string, error)
	PollForToken(ctx context.Context, sessions store.SessionStore, deviceCode string) (DevicePollResult, error)
}

// ServiceAccountHandler implements the JWT-bearer service-account capability.
type ServiceAccountHandler interface {
	Provider() store.Provider
	ImportServiceAccount(ctx context.Context, rawJSON []byte) (*store.Credential, error)
	RefreshToken(ctx context.Context, cred *store.Credential) (*store.Credential, error)
}
