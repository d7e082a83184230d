/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package fallback

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-botkit/config"
	"github.com/acronis/go-botkit/retry"
)

const cfgDefaultKeyPrefix = "fallback"

const (
	cfgKeyFreshFor             = "freshFor"
	cfgKeyLoaderTimeout        = "loaderTimeout"
	cfgKeyRetryAttempts        = "retry.attempts"
	cfgKeyRetryInitialInterval = "retry.initialInterval"
	cfgKeyRetryMaxInterval     = "retry.maxInterval"
	cfgKeyQuotaRPS             = "quota.rps"
	cfgKeyQuotaBurst           = "quota.burst"
)

// Default values for Config.
const (
	DefaultRetryAttempts        = 0
	DefaultRetryInitialInterval = 2 * time.Second
	DefaultRetryMaxInterval     = 10 * time.Second
	DefaultQuotaBurst           = 1
)

// RetryConfig configures loader retries within one flight.
type RetryConfig struct {
	// Attempts is the number of retries after the first try. 0 disables retries.
	Attempts int `mapstructure:"attempts" yaml:"attempts" json:"attempts"`

	// InitialInterval is the delay before the first retry.
	InitialInterval config.TimeDuration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`

	// MaxInterval caps the delay between retries.
	MaxInterval config.TimeDuration `mapstructure:"maxInterval" yaml:"maxInterval" json:"maxInterval"`
}

// QuotaConfig configures pacing of remote calls shared across keys.
type QuotaConfig struct {
	// RPS is the sustained number of remote calls per second. 0 disables pacing.
	RPS float64 `mapstructure:"rps" yaml:"rps" json:"rps"`

	// Burst is the number of remote calls that may happen at once.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// Config represents a set of configuration parameters for a Source.
type Config struct {
	// FreshFor is the preferred-freshness window. 0 means always attempt the remote.
	FreshFor config.TimeDuration `mapstructure:"freshFor" yaml:"freshFor" json:"freshFor"`

	// LoaderTimeout bounds one loader flight including retries.
	LoaderTimeout config.TimeDuration `mapstructure:"loaderTimeout" yaml:"loaderTimeout" json:"loaderTimeout"`

	// Retry configures loader retries.
	Retry RetryConfig `mapstructure:"retry" yaml:"retry" json:"retry"`

	// Quota configures pacing of remote calls.
	Quota QuotaConfig `mapstructure:"quota" yaml:"quota" json:"quota"`

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
		keyPrefix:     opts.keyPrefix,
		FreshFor:      config.TimeDuration(DefaultFreshFor),
		LoaderTimeout: config.TimeDuration(DefaultLoaderTimeout),
		Retry: RetryConfig{
			Attempts:        DefaultRetryAttempts,
			InitialInterval: config.TimeDuration(DefaultRetryInitialInterval),
			MaxInterval:     config.TimeDuration(DefaultRetryMaxInterval),
		},
		Quota: QuotaConfig{Burst: DefaultQuotaBurst},
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

// SetProviderDefaults sets default configuration values for a Source in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyFreshFor, DefaultFreshFor)
	dp.SetDefault(cfgKeyLoaderTimeout, DefaultLoaderTimeout)
	dp.SetDefault(cfgKeyRetryAttempts, DefaultRetryAttempts)
	dp.SetDefault(cfgKeyRetryInitialInterval, DefaultRetryInitialInterval)
	dp.SetDefault(cfgKeyRetryMaxInterval, DefaultRetryMaxInterval)
	dp.SetDefault(cfgKeyQuotaBurst, DefaultQuotaBurst)
}

// Set sets Source configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	var d time.Duration

	if d, err = dp.GetDuration(cfgKeyFreshFor); err != nil {
		return err
	}
	c.FreshFor = config.TimeDuration(d)
	if d, err = dp.GetDuration(cfgKeyLoaderTimeout); err != nil {
		return err
	}
	c.LoaderTimeout = config.TimeDuration(d)

	if c.Retry.Attempts, err = dp.GetInt(cfgKeyRetryAttempts); err != nil {
		return err
	}
	if d, err = dp.GetDuration(cfgKeyRetryInitialInterval); err != nil {
		return err
	}
	c.Retry.InitialInterval = config.TimeDuration(d)
	if d, err = dp.GetDuration(cfgKeyRetryMaxInterval); err != nil {
		return err
	}
	c.Retry.MaxInterval = config.TimeDuration(d)

	if c.Quota.RPS, err = dp.GetFloat64(cfgKeyQuotaRPS); err != nil {
		return err
	}
	if c.Quota.Burst, err = dp.GetInt(cfgKeyQuotaBurst); err != nil {
		return err
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.FreshFor < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyFreshFor)
	}
	if c.LoaderTimeout < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyLoaderTimeout)
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyRetryAttempts)
	}
	if c.Retry.InitialInterval < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyRetryInitialInterval)
	}
	if c.Retry.MaxInterval < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyRetryMaxInterval)
	}
	if c.Quota.RPS < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyQuotaRPS)
	}
	if c.Quota.RPS > 0 && c.Quota.Burst < 1 {
		return fmt.Errorf("%s should be positive when %s is set", cfgKeyQuotaBurst, cfgKeyQuotaRPS)
	}
	return nil
}

// Opts converts the Config into Opts for NewWithOpts. Logger, metrics and the
// transient-error classifier are not configuration values and are left for the
// caller to fill in.
func (c *Config) Opts() Opts {
	opts := Opts{
		FreshFor:      time.Duration(c.FreshFor),
		LoaderTimeout: time.Duration(c.LoaderTimeout),
	}
	if c.Retry.Attempts > 0 {
		opts.RetryPolicy = retry.NewExponentialBackoffPolicy(
			time.Duration(c.Retry.InitialInterval), c.Retry.Attempts,
		).WithMaxInterval(time.Duration(c.Retry.MaxInterval))
	}
	if c.Quota.RPS > 0 {
		opts.Quota = rate.NewLimiter(rate.Limit(c.Quota.RPS), c.Quota.Burst)
	}
	return opts
}
