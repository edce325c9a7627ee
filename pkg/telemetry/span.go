// Normalised span and metric types shared by every provider and the validation engine
// Spans are produced only by providers and treated as immutable once built
package telemetry

import (
	"time"
)

// Span is one recorded operation in a trace.
type Span struct {
	ID         string
	TraceID    string
	Name       string
	Service    string // empty when the source did not report one
	Duration   time.Duration
	StartTime  time.Time
	Attributes Attributes
}

// HasService reports whether the span carries a service name.
func (s Span) HasService() bool { return s.Service != "" }

// DurationMs returns the span duration in fractional milliseconds.
func (s Span) DurationMs() float64 {
	return float64(s.Duration) / float64(time.Millisecond)
}

// MetricPoint is a single metric sample returned by a provider.
type MetricPoint struct {
	Name      string
	Labels    map[string]string
	Value     float64
	Timestamp time.Time
}

// TimeRange returns the earliest and latest start times across spans, ignoring
// spans without a start time. Both are zero when no span has one.
func TimeRange(spans []Span) (from, to time.Time) {
	for _, s := range spans {
		if s.StartTime.IsZero() {
			continue
		}
		if from.IsZero() || s.StartTime.Before(from) {
			from = s.StartTime
		}
		if to.IsZero() || s.StartTime.After(to) {
			to = s.StartTime
		}
	}
	return from, to
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses an ISO 8601 timestamp with or without a UTC offset.
// Timestamps without an offset are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
