/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package snapshot

import (
	"fmt"
	"time"

	"github.com/acronis/go-botkit/config"
	"github.com/acronis/go-botkit/log"
)

const cfgDefaultKeyPrefix = "snapshot"

const (
	cfgKeyDriver          = "driver"
	cfgKeyDir             = "dir"
	cfgKeyBoltPath        = "boltPath"
	cfgKeyBoltFlushPeriod = "boltFlushPeriod"
	cfgKeyMaxEntrySize    = "maxEntrySize"
)

// Supported storage drivers.
const (
	DriverFile = "file"
	DriverBolt = "bolt"
)

// Default values for Config.
const (
	DefaultDriver   = DriverFile
	DefaultDir      = "cache"
	DefaultBoltPath = "snapshots.db"
)

var availableDrivers = []string{DriverFile, DriverBolt}

// Config represents a set of configuration parameters for snapshot storage.
type Config struct {
	// Driver selects the storage backend, "file" or "bolt".
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`

	// Dir is the directory for snapshot files. Used by the "file" driver.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`

	// BoltPath is the path to the bbolt database file. Used by the "bolt" driver.
	BoltPath string `mapstructure:"boltPath" yaml:"boltPath" json:"boltPath"`

	// BoltFlushPeriod is how often the "bolt" driver commits queued writes.
	BoltFlushPeriod config.TimeDuration `mapstructure:"boltFlushPeriod" yaml:"boltFlushPeriod" json:"boltFlushPeriod"`

	// MaxEntrySize limits the payload size of a single snapshot. 0 means no limit.
	MaxEntrySize config.ByteSize `mapstructure:"maxEntrySize" yaml:"maxEntrySize" json:"maxEntrySize"`

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
		Driver:          DefaultDriver,
		Dir:             DefaultDir,
		BoltPath:        DefaultBoltPath,
		BoltFlushPeriod: config.TimeDuration(DefaultBoltFlushPeriod),
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

// SetProviderDefaults sets default configuration values for snapshot storage in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyDriver, DefaultDriver)
	dp.SetDefault(cfgKeyDir, DefaultDir)
	dp.SetDefault(cfgKeyBoltPath, DefaultBoltPath)
	dp.SetDefault(cfgKeyBoltFlushPeriod, DefaultBoltFlushPeriod)
}

// Set sets snapshot storage configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Driver, err = dp.GetStringFromSet(cfgKeyDriver, availableDrivers, false); err != nil {
		return err
	}
	if c.Dir, err = dp.GetString(cfgKeyDir); err != nil {
		return err
	}
	if c.BoltPath, err = dp.GetString(cfgKeyBoltPath); err != nil {
		return err
	}
	var flushPeriod time.Duration
	if flushPeriod, err = dp.GetDuration(cfgKeyBoltFlushPeriod); err != nil {
		return err
	}
	c.BoltFlushPeriod = config.TimeDuration(flushPeriod)
	if c.MaxEntrySize, err = dp.GetByteSize(cfgKeyMaxEntrySize); err != nil {
		return err
	}

	return c.validate()
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverFile:
		if c.Dir == "" {
			return fmt.Errorf("%s should not be empty for the %q driver", cfgKeyDir, DriverFile)
		}
	case DriverBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("%s should not be empty for the %q driver", cfgKeyBoltPath, DriverBolt)
		}
	default:
		return fmt.Errorf("unknown driver %q, should be one of %v", c.Driver, availableDrivers)
	}
	if time.Duration(c.BoltFlushPeriod) < 0 {
		return fmt.Errorf("%s should not be negative", cfgKeyBoltFlushPeriod)
	}
	return nil
}

// NewStore creates a Store described by the Config.
func NewStore(cfg *Config, logger log.FieldLogger) (Store, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	switch cfg.Driver {
	case DriverFile, "":
		dir := cfg.Dir
		if dir == "" {
			dir = DefaultDir
		}
		return NewFileStoreWithOpts(dir, FileStoreOpts{MaxEntrySize: cfg.MaxEntrySize})
	case DriverBolt:
		path := cfg.BoltPath
		if path == "" {
			path = DefaultBoltPath
		}
		return NewBoltStoreWithOpts(path, BoltStoreOpts{
			MaxEntrySize: cfg.MaxEntrySize,
			FlushPeriod:  time.Duration(cfg.BoltFlushPeriod),
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("unknown driver %q, should be one of %v", cfg.Driver, availableDrivers)
	}
}
