/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-botkit/config"
)

func TestConfig(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg)
		require.NoError(t, err)
		require.False(t, cfg.Enabled)
		require.Equal(t, DefaultAddress, cfg.Address)
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("load from yaml", func(t *testing.T) {
		yamlData := `
profserver:
  enabled: true
  address: "127.0.0.1:9091"
`
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.True(t, cfg.Enabled)
		require.Equal(t, "127.0.0.1:9091", cfg.Address)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		yamlData := `
debug.pprof:
  enabled: true
`
		cfg := NewConfig(WithKeyPrefix("debug.pprof"))
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.True(t, cfg.Enabled)
		require.Equal(t, DefaultAddress, cfg.Address)
	})

	t.Run("env var overrides value", func(t *testing.T) {
		t.Setenv("BOTKIT_PROFSERVER_ADDRESS", "127.0.0.1:7777")
		cfg := NewConfig()
		err := config.NewDefaultLoader("botkit").LoadFromReader(bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:7777", cfg.Address)
	})

	t.Run("enabled with empty address", func(t *testing.T) {
		yamlData := `
profserver:
  enabled: true
  address: ""
`
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.ErrorContains(t, err, "address should not be empty")
	})
}

func TestConfigDirectUnmarshal(t *testing.T) {
	type appConfig struct {
		ProfServer *Config `mapstructure:"profserver" json:"profserver" yaml:"profserver"`
	}

	yamlData := `
profserver:
  enabled: true
  address: "127.0.0.1:9091"
`
	var appCfg appConfig
	require.NoError(t, yaml.Unmarshal([]byte(yamlData), &appCfg))
	require.True(t, appCfg.ProfServer.Enabled)
	require.Equal(t, "127.0.0.1:9091", appCfg.ProfServer.Address)

	jsonData := `{"profserver": {"enabled": true, "address": "127.0.0.1:9091"}}`
	appCfg = appConfig{}
	require.NoError(t, json.Unmarshal([]byte(jsonData), &appCfg))
	require.True(t, appCfg.ProfServer.Enabled)
	require.Equal(t, "127.0.0.1:9091", appCfg.ProfServer.Address)
}
