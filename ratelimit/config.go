/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-botkit/config"
)

const cfgDefaultKeyPrefix = "ratelimit"

const (
	cfgKeyAlg           = "alg"
	cfgKeyClasses       = "classes"
	cfgKeyBlockFor      = "blockFor"
	cfgKeyMaxActors     = "maxActors"
	cfgKeyPurgeInterval = "purgeInterval"
)

// Rate-limiting algorithms.
const (
	AlgSlidingLog    = "sliding_log"
	AlgSlidingWindow = "sliding_window"
	AlgLeakyBucket   = "leaky_bucket"
)

// Check classes used by default.
const (
	ClassMessage  = "message"
	ClassCallback = "callback"
)

// Default values.
const (
	DefaultAlg           = AlgSlidingLog
	DefaultBlockFor      = time.Minute
	DefaultMaxActors     = 10000
	DefaultPurgeInterval = 5 * time.Minute
)

// DefaultClasses returns the class limits used when no classes are configured:
// interactive messages at 5 per 10 seconds and callback taps at 50 per minute.
func DefaultClasses() map[string]ClassLimit {
	return map[string]ClassLimit{
		ClassMessage:  {Rate: Rate{Count: 5, Duration: 10 * time.Second}},
		ClassCallback: {Rate: Rate{Count: 50, Duration: time.Minute}},
	}
}

// ClassLimit describes the admission limit of a single check class.
type ClassLimit struct {
	// Rate is the maximum admission frequency for one actor.
	Rate Rate `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Burst is the number of extra admissions tolerated on top of the steady
	// rate. Matters only for the leaky bucket algorithm.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// Config represents a set of configuration parameters for the admission Gate.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Alg selects the rate limiting algorithm: sliding_log (default),
	// sliding_window or leaky_bucket.
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Classes maps a check class name to its limit.
	Classes map[string]ClassLimit `mapstructure:"classes" yaml:"classes" json:"classes"`

	// BlockFor is the cooldown applied when an actor exceeds a class limit.
	// Zero disables the cooldown.
	BlockFor config.TimeDuration `mapstructure:"blockFor" yaml:"blockFor" json:"blockFor"`

	// MaxActors bounds the number of actors with in-memory state.
	MaxActors int `mapstructure:"maxActors" yaml:"maxActors" json:"maxActors"`

	// PurgeInterval is how often idle actor state is swept out.
	// Zero disables periodic purging.
	PurgeInterval config.TimeDuration `mapstructure:"purgeInterval" yaml:"purgeInterval" json:"purgeInterval"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
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
	var opts = configOptions{keyPrefix: cfgDefaultKeyPrefix}
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
		keyPrefix:     opts.keyPrefix,
		Alg:           DefaultAlg,
		Classes:       DefaultClasses(),
		BlockFor:      config.TimeDuration(DefaultBlockFor),
		MaxActors:     DefaultMaxActors,
		PurgeInterval: config.TimeDuration(DefaultPurgeInterval),
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

// SetProviderDefaults sets default configuration values for the Gate in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAlg, DefaultAlg)
	dp.SetDefault(cfgKeyBlockFor, DefaultBlockFor.String())
	dp.SetDefault(cfgKeyMaxActors, DefaultMaxActors)
	dp.SetDefault(cfgKeyPurgeInterval, DefaultPurgeInterval.String())
}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	alg, err := dp.GetStringFromSet(cfgKeyAlg, []string{AlgSlidingLog, AlgSlidingWindow, AlgLeakyBucket}, false)
	if err != nil {
		return err
	}
	c.Alg = alg

	blockFor, err := dp.GetDuration(cfgKeyBlockFor)
	if err != nil {
		return err
	}
	c.BlockFor = config.TimeDuration(blockFor)

	maxActors, err := dp.GetInt(cfgKeyMaxActors)
	if err != nil {
		return err
	}
	c.MaxActors = maxActors

	purgeInterval, err := dp.GetDuration(cfgKeyPurgeInterval)
	if err != nil {
		return err
	}
	c.PurgeInterval = config.TimeDuration(purgeInterval)

	c.Classes = nil
	if err = dp.UnmarshalKey(cfgKeyClasses, &c.Classes, withRateDecodeHook()); err != nil {
		return err
	}
	if len(c.Classes) == 0 {
		c.Classes = DefaultClasses()
	}

	return c.validate()
}

func (c *Config) validate() error {
	switch c.Alg {
	case AlgSlidingLog, AlgSlidingWindow, AlgLeakyBucket:
	default:
		return fmt.Errorf("unknown rate limiting alg %q", c.Alg)
	}
	if c.BlockFor < 0 {
		return fmt.Errorf("blockFor should not be negative, got %s", time.Duration(c.BlockFor))
	}
	if c.MaxActors <= 0 {
		return fmt.Errorf("maxActors should be positive, got %d", c.MaxActors)
	}
	if c.PurgeInterval < 0 {
		return fmt.Errorf("purgeInterval should not be negative, got %s", time.Duration(c.PurgeInterval))
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("at least one check class should be configured")
	}
	for name, limit := range c.Classes {
		if name == "" {
			return fmt.Errorf("class name should not be empty")
		}
		if limit.Rate.Count <= 0 || limit.Rate.Duration <= 0 {
			return fmt.Errorf("class %q: rate should define a positive count and duration, got %q", name, limit.Rate)
		}
		if limit.Burst < 0 {
			return fmt.Errorf("class %q: burst should not be negative, got %d", name, limit.Burst)
		}
	}
	return nil
}

// withRateDecodeHook makes mapstructure decode textual values like Rate ("5/10s")
// and durations inside class limits.
func withRateDecodeHook() config.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		)
	}
}
