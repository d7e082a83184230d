/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package healthcheck

import (
	"fmt"
	"time"

	"github.com/acronis/go-botkit/config"
)

const cfgDefaultKeyPrefix = "healthcheck"

const (
	cfgKeyAddress         = "address"
	cfgKeyShutdownTimeout = "shutdownTimeout"
)

// Default values for Config.
const (
	DefaultAddress         = ":8080"
	DefaultShutdownTimeout = 5 * time.Second
)

// Config represents a set of configuration parameters for the health/status HTTP server.
type Config struct {
	Address         string              `mapstructure:"address" yaml:"address" json:"address"`
	ShutdownTimeout config.TimeDuration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout" json:"shutdownTimeout"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the NewConfig.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix:       opts.keyPrefix,
		Address:         DefaultAddress,
		ShutdownTimeout: config.TimeDuration(DefaultShutdownTimeout),
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the health server in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAddress, DefaultAddress)
	dp.SetDefault(cfgKeyShutdownTimeout, DefaultShutdownTimeout.String())
}

// Set sets health server configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	var d time.Duration
	if d, err = dp.GetDuration(cfgKeyShutdownTimeout); err != nil {
		return err
	}
	c.ShutdownTimeout = config.TimeDuration(d)

	return c.validate()
}

func (c *Config) validate() error {
	if c.Address == "" {
		return fmt.Errorf("%s should not be empty", cfgKeyAddress)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyShutdownTimeout)
	}
	return nil
}
