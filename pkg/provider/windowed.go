// Decorator that pins every fetch to one global time window
package provider

import (
	"context"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
)

// Windowed forwards to an inner provider, replacing the caller's window with
// its own fixed [from, to].
type Windowed struct {
	inner    Provider
	from, to time.Time
}

// NewWindowed wraps inner so that every fetch uses [from, to].
func NewWindowed(inner Provider, from, to time.Time) *Windowed {
	return &Windowed{inner: inner, from: from, to: to}
}

func (w *Windowed) Name() string { return w.inner.Name() }

// Window returns the fixed window.
func (w *Windowed) Window() (from, to time.Time) { return w.from, w.to }

func (w *Windowed) FetchSpans(ctx context.Context, query string, _, _ time.Time) ([]telemetry.Span, error) {
	return w.inner.FetchSpans(ctx, query, w.from, w.to)
}

func (w *Windowed) FetchMetrics(ctx context.Context, query string, _, _ time.Time) ([]telemetry.MetricPoint, error) {
	return w.inner.FetchMetrics(ctx, query, w.from, w.to)
}
