// Provider registry: builds providers from telemetry config entries by type
package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/provider/datadog"
	"github.com/andrewh/spancheck/pkg/provider/elastic"
	"github.com/andrewh/spancheck/pkg/provider/honeycomb"
	"github.com/andrewh/spancheck/pkg/spanfile"
	"go.uber.org/zap"
)

// fileType serves a span file named in the telemetry config as a provider.
const fileType = "file"

type providerFactory func(pc provider.ProviderConfig, logger *zap.Logger) (provider.Provider, error)

var providerFactories = map[string]providerFactory{
	datadog.Type: func(pc provider.ProviderConfig, _ *zap.Logger) (provider.Provider, error) {
		p, err := datadog.FromConfig(pc, nil)
		if err != nil {
			return nil, err
		}
		return p, nil
	},
	honeycomb.Type: func(pc provider.ProviderConfig, _ *zap.Logger) (provider.Provider, error) {
		p, err := honeycomb.FromConfig(pc, nil)
		if err != nil {
			return nil, err
		}
		return p, nil
	},
	elastic.Type: func(pc provider.ProviderConfig, logger *zap.Logger) (provider.Provider, error) {
		p, err := elastic.FromConfig(pc, nil, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	},
	fileType: func(pc provider.ProviderConfig, logger *zap.Logger) (provider.Provider, error) {
		path, err := pc.RequiredSetting("path")
		if err != nil {
			return nil, err
		}
		format, err := spanfile.ParseFormat(pc.Setting("format", string(spanfile.FormatAuto)))
		if err != nil {
			return nil, &provider.ConfigError{Provider: pc.Name, Err: err}
		}
		p, err := provider.LoadFile(pc.Name, path, format, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	},
}

func providerTypes() []string {
	types := make([]string, 0, len(providerFactories))
	for t := range providerFactories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// buildProvider constructs the provider described by pc.
func buildProvider(pc provider.ProviderConfig, logger *zap.Logger) (provider.Provider, error) {
	factory, ok := providerFactories[strings.ToLower(pc.Type)]
	if !ok {
		return nil, provider.NewConfigError(pc.Name, "unsupported provider type %q, supported: %s",
			pc.Type, strings.Join(providerTypes(), ", "))
	}
	return factory(pc, logger)
}

// buildProviders constructs every enabled provider, or only the one called
// only when it is non-empty.
func buildProviders(cfg *provider.Config, only string, logger *zap.Logger) ([]provider.Provider, error) {
	var out []provider.Provider
	for _, pc := range cfg.EnabledProviders() {
		if only != "" && !strings.EqualFold(pc.Name, only) {
			continue
		}
		p, err := buildProvider(pc, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		if only != "" {
			return nil, fmt.Errorf("provider %q not found or not enabled", only)
		}
		return nil, fmt.Errorf("no enabled providers configured")
	}
	return out, nil
}

// window resolves the global fetch window. Missing bounds default to now and
// now minus fallback.
func window(from, to time.Time, fallback time.Duration, now time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-fallback)
	}
	return from, to
}
