package config

import (
	"fmt"
	"strings"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/paths"
)

// Defaults for an unconfigured installation.
const (
	DefaultVersion  = "1.0"
	DefaultTenant   = "default-app-id"
	DefaultUsername = "DRC27"
	DefaultPassword = "DRC27"
)

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Tenant == "" {
		c.Tenant = DefaultTenant
	}
	if c.Admin.Username == "" {
		c.Admin.Username = DefaultUsername
	}
	if c.Admin.Password == "" {
		c.Admin.Password = DefaultPassword
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		c.Store.Path = paths.DatabasePath()
	}
	c.Store.Path = expandPath(c.Store.Path)
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = paths.SocketPath()
	}
	c.Daemon.Socket = expandPath(c.Daemon.Socket)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateSegment("tenant", c.Tenant); err != nil {
		return err
	}
	// Credentials travel as path segments, so a slash could never match.
	if err := validateSegment("admin.username", c.Admin.Username); err != nil {
		return err
	}
	if err := validateSegment("admin.password", c.Admin.Password); err != nil {
		return err
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New(errors.ErrCodeConfigValidation, "store.path cannot be empty for the sqlite driver")
		}
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown store.driver '%s' (must be memory or sqlite)", c.Store.Driver)).
			WithDetail("driver", c.Store.Driver)
	}

	if c.Daemon.Socket == "" {
		return errors.New(errors.ErrCodeConfigValidation, "daemon.socket cannot be empty")
	}
	return nil
}

func validateSegment(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s cannot be empty", field)).
			WithDetail("field", field)
	}
	if strings.Contains(value, "/") {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s cannot contain '/'", field)).
			WithDetail("field", field)
	}
	return nil
}
