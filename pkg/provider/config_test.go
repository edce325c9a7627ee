// Tests for telemetry configuration loading and setting accessors
package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const telemetryConfig = `
version: "1"
providers:
  - name: dd
    type: datadog
    settings:
      api_url: https://api.datadoghq.eu
      limit: 50
  - name: hc
    type: honeycomb
    enabled: false
    settings:
      dataset: prod
  - name: offline
    type: file
    settings:
      path: spans.ndjson
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(telemetryConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 3)

	enabled := cfg.EnabledProviders()
	require.Len(t, enabled, 2)
	assert.Equal(t, "dd", enabled[0].Name)
	assert.Equal(t, "offline", enabled[1].Name)

	dd, ok := cfg.Find("dd")
	require.True(t, ok)
	assert.Equal(t, "https://api.datadoghq.eu", dd.Setting("api_url", "x"))
	assert.Equal(t, "fallback", dd.Setting("missing", "fallback"))

	limit, err := dd.IntSetting("limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)

	_, err = dd.RequiredSetting("dataset")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "dd", cfgErr.Provider)
}

func TestParseConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"bad yaml", "providers: [", "parsing telemetry config"},
		{"missing name", "providers:\n  - type: file\n", "name is required"},
		{"missing type", "providers:\n  - name: a\n", "type is required"},
		{"duplicate", "providers:\n  - {name: a, type: file}\n  - {name: a, type: file}\n", "duplicate provider name"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseConfig([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIntSetting_Invalid(t *testing.T) {
	t.Parallel()

	p := ProviderConfig{Name: "x", Settings: map[string]string{"size": "ten"}}
	_, err := p.IntSetting("size", 1)
	require.Error(t, err)
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
