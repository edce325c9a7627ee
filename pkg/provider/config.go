// Telemetry configuration: the list of named providers and their settings
package provider

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the telemetry configuration document.
type Config struct {
	Version   string           `yaml:"version"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures one provider instance.
type ProviderConfig struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Enabled  *bool             `yaml:"enabled,omitempty"`
	Settings map[string]string `yaml:"settings,omitempty"`
}

// IsEnabled reports whether the provider should be used; providers are
// enabled unless explicitly disabled.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Setting returns a trimmed setting value or def when unset or blank.
func (p ProviderConfig) Setting(key, def string) string {
	if v := strings.TrimSpace(p.Settings[key]); v != "" {
		return v
	}
	return def
}

// RequiredSetting returns a setting value or a ConfigError when it is missing.
func (p ProviderConfig) RequiredSetting(key string) (string, error) {
	v := p.Setting(key, "")
	if v == "" {
		return "", NewConfigError(p.Name, "missing required setting %q", key)
	}
	return v, nil
}

// IntSetting parses an integer setting, returning def when unset.
func (p ProviderConfig) IntSetting(key string, def int) (int, error) {
	v := p.Setting(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewConfigError(p.Name, "setting %q: invalid integer %q", key, v)
	}
	return n, nil
}

// LoadConfig reads and parses a telemetry configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path is expected
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("reading telemetry config: %w", err)}
	}
	return ParseConfig(data)
}

// ParseConfig decodes and checks a telemetry configuration document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parsing telemetry config: %w", err)}
	}
	if cfg.Version == "" {
		cfg.Version = "1"
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return nil, NewConfigError("", "providers[%d]: name is required", i)
		}
		if p.Type == "" {
			return nil, NewConfigError(p.Name, "type is required")
		}
		if seen[p.Name] {
			return nil, NewConfigError(p.Name, "duplicate provider name")
		}
		seen[p.Name] = true
	}
	return cfg, nil
}

// EnabledProviders returns the enabled providers in declaration order.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the provider configuration with the given name.
func (c *Config) Find(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
