// In-memory provider over a fixed span collection
package provider

import (
	"context"
	"slices"
	"time"

	"github.com/andrewh/spancheck/pkg/query"
	"github.com/andrewh/spancheck/pkg/telemetry"
)

// DefaultStaticName is used when NewStatic is given an empty name.
const DefaultStaticName = "in-memory"

// Static serves spans from a collection captured at construction.
type Static struct {
	name  string
	spans []telemetry.Span
}

// NewStatic copies spans into a new Static provider.
func NewStatic(name string, spans []telemetry.Span) *Static {
	if name == "" {
		name = DefaultStaticName
	}
	return &Static{name: name, spans: slices.Clone(spans)}
}

func (s *Static) Name() string { return s.name }

// FetchSpans returns the spans within [from, to] that match q, in collection order.
func (s *Static) FetchSpans(ctx context.Context, q string, from, to time.Time) ([]telemetry.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return query.Filter(s.spans, q, from, to), nil
}

// FetchMetrics always returns no metrics.
func (s *Static) FetchMetrics(ctx context.Context, _ string, _, _ time.Time) ([]telemetry.MetricPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Spans returns a copy of the full collection.
func (s *Static) Spans() []telemetry.Span {
	return slices.Clone(s.spans)
}
