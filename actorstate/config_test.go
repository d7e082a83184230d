/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package actorstate

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-botkit/config"
)

func TestConfig(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, DefaultMaxActors, cfg.MaxActors)
		require.Equal(t, config.TimeDuration(DefaultSelectionTTL), cfg.SelectionTTL)
		require.Equal(t, config.TimeDuration(DefaultScratchTTL), cfg.ScratchTTL)
	})

	t.Run("load from yaml", func(t *testing.T) {
		yamlData := `
actorstate:
  maxActors: 500
  selectionTtl: 1h
  scratchTtl: 90s
`
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 500, cfg.MaxActors)
		require.Equal(t, config.TimeDuration(time.Hour), cfg.SelectionTTL)
		require.Equal(t, config.TimeDuration(90*time.Second), cfg.ScratchTTL)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		yamlData := `
bot.sessions:
  maxActors: 42
`
		cfg := NewConfig(WithKeyPrefix("bot.sessions"))
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 42, cfg.MaxActors)
	})

	t.Run("env var overrides value", func(t *testing.T) {
		t.Setenv("BOTKIT_ACTORSTATE_MAXACTORS", "777")
		cfg := NewConfig()
		err := config.NewDefaultLoader("botkit").LoadFromReader(bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, 777, cfg.MaxActors)
	})

	t.Run("zero maxActors", func(t *testing.T) {
		yamlData := `
actorstate:
  maxActors: 0
`
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.ErrorContains(t, err, "maxActors should be positive")
	})

	t.Run("negative selectionTtl", func(t *testing.T) {
		yamlData := `
actorstate:
  selectionTtl: -5m
`
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(yamlData), config.DataTypeYAML, cfg)
		require.ErrorContains(t, err, "selectionTtl should not be negative")
	})
}

func TestConfigDirectYAMLUnmarshal(t *testing.T) {
	yamlData := `
maxActors: 500
selectionTtl: 1h
scratchTtl: 90s
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(yamlData), &cfg))
	require.Equal(t, 500, cfg.MaxActors)
	require.Equal(t, config.TimeDuration(time.Hour), cfg.SelectionTTL)
	require.Equal(t, config.TimeDuration(90*time.Second), cfg.ScratchTTL)
}
