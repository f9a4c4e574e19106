// Package config loads and persists the gateway's YAML configuration file.
// It follows the teacher's convention of a flat LoadConfig(path) -> (*Config,
// error) entry point backed by gopkg.in/yaml.v3, extended with the full
// option surface needed by the router, fallback engine and HTTP surface.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// RoutingStrategy names the credential-selection strategy used by the Router
// when a virtual model does not itself request smart-priority.
type RoutingStrategy string

const (
	StrategyRoundRobin RoutingStrategy = "round-robin"
	StrategyFillFirst  RoutingStrategy = "fill-first"
)

// TLSConfig controls whether the HTTP surface terminates TLS itself.
type TLSConfig struct {
	Enable bool   `yaml:"enable"`
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`
}

// QuotaExceeded controls fallback-chain advancement behavior on provider
// quota signals, per spec §6.
type QuotaExceeded struct {
	SwitchProject      bool `yaml:"switch-project"`
	SwitchPreviewModel bool `yaml:"switch-preview-model"`
}

// RemoteManagement controls the management surface's remote exposure.
type RemoteManagement struct {
	AllowRemote         bool   `yaml:"allow-remote"`
	SecretKey           string `yaml:"secret-key"`
	DisableControlPanel bool   `yaml:"disable-control-panel"`
}

// Passthrough controls forwarding of unimplemented inference paths to an
// external upstream proxy, per spec §6.
type Passthrough struct {
	Enabled      bool `yaml:"enabled"`
	CLIProxyPort int  `yaml:"cli-proxy-port"`
	TimeoutSec   int  `yaml:"timeout"`
}

// Routing controls the default credential-selection strategy and rotation
// tolerance used by the Router (spec §4.4).
type Routing struct {
	Strategy          RoutingStrategy `yaml:"strategy"`
	RotationTolerance int             `yaml:"rotation-tolerance"`
}

// Storage selects the credential-store backend implementation.
type Storage struct {
	Backend string `yaml:"backend"` // "file" (default), "postgres", "git", "object"

	PostgresDSN string `yaml:"postgres-dsn"`

	GitRemoteURL string `yaml:"git-remote-url"`
	GitLocalPath string `yaml:"git-local-path"`
	GitUser      string `yaml:"git-user"`
	GitPassword  string `yaml:"git-password"`

	ObjectEndpoint  string `yaml:"object-endpoint"`
	ObjectAccessKey string `yaml:"object-access-key"`
	ObjectSecretKey string `yaml:"object-secret-key"`
	ObjectBucket    string `yaml:"object-bucket"`
	ObjectUseTLS    bool   `yaml:"object-use-tls"`
}

// SessionStore selects the pending-OAuth-session backend.
type SessionStore struct {
	Backend  string `yaml:"backend"` // "memory" (default) or "redis"
	RedisURL string `yaml:"redis-url"`
}

// Config is the top-level gateway configuration, extending the lean
// yszxh-CLIProxyAPI Config shape with the full §6 option surface.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`

	AuthDir   string `yaml:"auth-dir"`
	ConfigDir string `yaml:"config-dir"`
	DataDir   string `yaml:"data-dir"`

	APIKeys []string `yaml:"api-keys"`

	Debug         bool `yaml:"debug"`
	LoggingToFile bool `yaml:"logging-to-file"`

	Routing Routing `yaml:"routing"`

	RequestRetry     int `yaml:"request-retry"`
	MaxRetryInterval int `yaml:"max-retry-interval"`

	QuotaExceeded QuotaExceeded `yaml:"quota-exceeded"`

	RemoteManagement RemoteManagement `yaml:"remote-management"`

	Passthrough Passthrough `yaml:"passthrough"`

	Storage      Storage      `yaml:"storage"`
	SessionStore SessionStore `yaml:"session-store"`

	ProxyURL string `yaml:"proxy-url"`
}

// Defaults applied when a field is left at its zero value after load.
func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 18317
	}
	if c.AuthDir == "" {
		c.AuthDir = "auths"
	}
	if c.ConfigDir == "" {
		c.ConfigDir = "."
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.Routing.Strategy == "" {
		c.Routing.Strategy = StrategyRoundRobin
	}
	if c.RequestRetry == 0 {
		c.RequestRetry = 3
	}
	if c.MaxRetryInterval == 0 {
		c.MaxRetryInterval = 30
	}
	if c.Passthrough.TimeoutSec == 0 {
		c.Passthrough.TimeoutSec = 120
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.SessionStore.Backend == "" {
		c.SessionStore.Backend = "memory"
	}
}

// LoadConfig reads a YAML configuration file from the given path, unmarshals
// it into a Config, applies documented defaults and expands "~" in path
// fields using $HOME.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, apierror.Config(err, "failed to read config file %s", configFile)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apierror.Config(err, "failed to parse config file %s", configFile)
	}
	cfg.applyDefaults()
	cfg.expandHome()
	return &cfg, nil
}

func (c *Config) expandHome() {
	home, _ := os.UserHomeDir()
	if home == "" {
		return
	}
	expand := func(p string) string {
		if strings.HasPrefix(p, "~") {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
		return p
	}
	c.AuthDir = expand(c.AuthDir)
	c.ConfigDir = expand(c.ConfigDir)
	c.DataDir = expand(c.DataDir)
	c.Storage.GitLocalPath = expand(c.Storage.GitLocalPath)
}

// SaveConfig persists the configuration back to its YAML file. It is not
// comment-preserving (unlike the teacher's SaveConfigPreserveComments). No
// management handler calls it: management config changes stay in memory.
func SaveConfig(configFile string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apierror.Config(err, "failed to marshal config")
	}
	tmp := configFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apierror.Config(err, "failed to write config temp file")
	}
	if err := os.Rename(tmp, configFile); err != nil {
		return apierror.Config(err, "failed to rename config temp file")
	}
	return nil
}

// FallbackFilePath returns the well-known location of the fallback
// configuration under the configured config directory.
func (c *Config) FallbackFilePath() string {
	return filepath.Join(c.ConfigDir, "fallback.json")
}

// SessionsDir returns the well-known location of pending OAuth session files.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.ConfigDir, "sessions")
}

// QuotaGroupsFilePath returns the well-known location of the quota-group
// configuration under the configured config directory.
func (c *Config) QuotaGroupsFilePath() string {
	return filepath.Join(c.ConfigDir, "quota-groups.yaml")
}

// PIDFilePath returns the well-known pid file path used by external
// supervisors (spec §6).
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.DataDir, "server.pid")
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{host=%s port=%d authDir=%s strategy=%s}", c.Host, c.Port, c.AuthDir, c.Routing.Strategy)
}
