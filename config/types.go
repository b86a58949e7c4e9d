package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Store drivers understood by the daemon and the local fallback.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the appshelf configuration as read from appshelf.yml or appshelf.toml.
type Config struct {
	Version  string         `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Tenant   string         `yaml:"tenant,omitempty" toml:"tenant,omitempty" json:"tenant,omitempty" jsonschema:"description=Tenant (application) id that prefixes every collection path"`
	Admin    AdminConfig    `yaml:"admin,omitempty" toml:"admin,omitempty" json:"admin" jsonschema:"description=Credentials matched against the /admin/{user}/{pass} navigation path"`
	Identity IdentityConfig `yaml:"identity,omitempty" toml:"identity,omitempty" json:"identity" jsonschema:"description=Identity provider settings"`
	Store    StoreConfig    `yaml:"store,omitempty" toml:"store,omitempty" json:"store" jsonschema:"description=Document store settings"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon" jsonschema:"description=Store daemon settings"`

	// Extensions captures all other top-level keys (e.g. logging).
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// AdminConfig holds the fixed credential pair for admin mode.
type AdminConfig struct {
	Username string `yaml:"username,omitempty" toml:"username,omitempty" json:"username,omitempty" jsonschema:"description=Admin path username segment"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty" json:"password,omitempty" jsonschema:"description=Admin path password segment"`
}

// IdentityConfig configures how a session signs in.
type IdentityConfig struct {
	// Token is a pre-supplied identity token. When empty the session signs in anonymously.
	Token string `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty" jsonschema:"description=Pre-supplied identity token (JWT); anonymous sign-in when empty"`
	// TokenSecret verifies HMAC-signed tokens. When empty tokens are decoded without verification.
	TokenSecret string `yaml:"token_secret,omitempty" toml:"token_secret,omitempty" json:"token_secret,omitempty" jsonschema:"description=HMAC secret used to verify identity tokens"`
	// Persist keeps the anonymous user across runs in the local state file.
	Persist *bool `yaml:"persist,omitempty" toml:"persist,omitempty" json:"persist,omitempty" jsonschema:"description=Persist the anonymous user between runs (default: true)"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty" toml:"driver,omitempty" json:"driver,omitempty" jsonschema:"description=Store backend,enum=memory,enum=sqlite"`
	Path   string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=SQLite database path"`
}

// DaemonConfig configures the store daemon.
type DaemonConfig struct {
	Socket      string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty" jsonschema:"description=Unix socket the daemon listens on"`
	WatchConfig *bool  `yaml:"watch_config,omitempty" toml:"watch_config,omitempty" json:"watch_config,omitempty" jsonschema:"description=Reload logging settings when the config file changes (default: true)"`
}

// PersistIdentity reports whether the anonymous user should survive restarts.
func (c *Config) PersistIdentity() bool {
	return c.Identity.Persist == nil || *c.Identity.Persist
}

// WatchConfig reports whether the daemon watches its config file.
func (c *Config) WatchConfig() bool {
	return c.Daemon.WatchConfig == nil || *c.Daemon.WatchConfig
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded appshelf.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing key leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
