/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package actorstate

import (
	"fmt"
	"time"

	"github.com/acronis/go-botkit/config"
)

const cfgDefaultKeyPrefix = "actorstate"

const (
	cfgKeyMaxActors    = "maxActors"
	cfgKeySelectionTTL = "selectionTtl"
	cfgKeyScratchTTL   = "scratchTtl"
)

// Default values for Config.
const (
	DefaultMaxActors    = 10000
	DefaultSelectionTTL = 30 * time.Minute
	DefaultScratchTTL   = 5 * time.Minute
)

// Config represents a set of configuration parameters for a Tracker.
type Config struct {
	// MaxActors bounds the number of tracked actors, the least recently used
	// are evicted beyond it.
	MaxActors int `mapstructure:"maxActors" yaml:"maxActors" json:"maxActors"`

	// SelectionTTL is how long a selection stays valid. 0 disables expiry.
	SelectionTTL config.TimeDuration `mapstructure:"selectionTtl" yaml:"selectionTtl" json:"selectionTtl"`

	// ScratchTTL is how long a scratch value stays valid. 0 disables expiry.
	ScratchTTL config.TimeDuration `mapstructure:"scratchTtl" yaml:"scratchTtl" json:"scratchTtl"`

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
		keyPrefix:    opts.keyPrefix,
		MaxActors:    DefaultMaxActors,
		SelectionTTL: config.TimeDuration(DefaultSelectionTTL),
		ScratchTTL:   config.TimeDuration(DefaultScratchTTL),
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

// SetProviderDefaults sets default configuration values for a Tracker in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxActors, DefaultMaxActors)
	dp.SetDefault(cfgKeySelectionTTL, DefaultSelectionTTL)
	dp.SetDefault(cfgKeyScratchTTL, DefaultScratchTTL)
}

// Set sets Tracker configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	var d time.Duration

	if c.MaxActors, err = dp.GetInt(cfgKeyMaxActors); err != nil {
		return err
	}
	if d, err = dp.GetDuration(cfgKeySelectionTTL); err != nil {
		return err
	}
	c.SelectionTTL = config.TimeDuration(d)
	if d, err = dp.GetDuration(cfgKeyScratchTTL); err != nil {
		return err
	}
	c.ScratchTTL = config.TimeDuration(d)

	return c.validate()
}

func (c *Config) validate() error {
	if c.MaxActors <= 0 {
		return fmt.Errorf("%s should be positive", cfgKeyMaxActors)
	}
	if c.SelectionTTL < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeySelectionTTL)
	}
	if c.ScratchTTL < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyScratchTTL)
	}
	return nil
}
