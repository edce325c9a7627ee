// Telemetry provider capability shared by live backends and offline datasets
// Every implementation filters with the same query language and window semantics
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
)

// Provider is a source of spans and metrics.
type Provider interface {
	Name() string
	FetchSpans(ctx context.Context, query string, from, to time.Time) ([]telemetry.Span, error)
	FetchMetrics(ctx context.Context, query string, from, to time.Time) ([]telemetry.MetricPoint, error)
}

// ConfigError reports an invalid or incomplete provider configuration.
// It is fatal at the point of provider construction.
type ConfigError struct {
	Provider string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("provider %q configuration: %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps a formatted message as a ConfigError.
func NewConfigError(provider, format string, args ...any) *ConfigError {
	return &ConfigError{Provider: provider, Err: fmt.Errorf(format, args...)}
}

// FetchError reports a failed backend request: transport errors, non-2xx
// statuses, or undecodable responses.
type FetchError struct {
	Provider   string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
