/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestByteSize_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    ByteSize
		wantErr bool
	}{
		{"integer", `1024`, ByteSize(1024), false},
		{"human-readable", `"10MB"`, ByteSize(10 * 1024 * 1024), false},
		{"k8s suffix", `"1Gi"`, ByteSize(1024 * 1024 * 1024), false},
		{"negative", `-1`, 0, true},
		{"garbage", `"zzz"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ByteSize
			err := json.Unmarshal([]byte(tt.data), &b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, b)
		})
	}
}

func TestByteSize_UnmarshalYAML(t *testing.T) {
	var cfg struct {
		Size ByteSize `yaml:"size"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`size: 512K`), &cfg))
	require.Equal(t, ByteSize(512*1024), cfg.Size)

	require.NoError(t, yaml.Unmarshal([]byte(`size: 2048`), &cfg))
	require.Equal(t, ByteSize(2048), cfg.Size)

	require.Error(t, yaml.Unmarshal([]byte(`size: [1, 2]`), &cfg))
}

func TestByteSize_Marshal(t *testing.T) {
	data, err := json.Marshal(ByteSize(10 * 1024 * 1024))
	require.NoError(t, err)
	require.Equal(t, `"10M"`, string(data))
}

func TestTimeDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    time.Duration
		wantErr bool
	}{
		{"human-readable", `"1h30m"`, time.Hour + 30*time.Minute, false},
		{"nanoseconds", `1000000000`, time.Second, false},
		{"negative", `-5`, 0, true},
		{"garbage", `"soon"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d TimeDuration
			err := json.Unmarshal([]byte(tt.data), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestTimeDuration_UnmarshalYAML(t *testing.T) {
	var cfg struct {
		Cooldown TimeDuration `yaml:"cooldown"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`cooldown: 60s`), &cfg))
	require.Equal(t, time.Minute, time.Duration(cfg.Cooldown))

	require.NoError(t, yaml.Unmarshal([]byte(`cooldown: 1000000000`), &cfg))
	require.Equal(t, time.Second, time.Duration(cfg.Cooldown))
}

func TestTimeDuration_String(t *testing.T) {
	require.Equal(t, "1m30s", TimeDuration(90*time.Second).String())
}
