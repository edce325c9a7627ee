// In-process span capture for the OpenTelemetry Go SDK
// Finished spans are converted to telemetry spans so contracts can run inside Go tests
package recorder

import (
	"context"
	"slices"
	"sync"

	"github.com/andrewh/spancheck/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceNameKey = attribute.Key("service.name")

// Recorder is an sdktrace.SpanProcessor that keeps every ended span.
// It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	spans []telemetry.Span
}

var _ sdktrace.SpanProcessor = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// NewTracerProvider returns a tracer provider that records synchronously
// into a new Recorder, plus any extra options.
func NewTracerProvider(opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, *Recorder) {
	rec := New()
	opts = append([]sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(rec)}, opts...)
	return sdktrace.NewTracerProvider(opts...), rec
}

func (r *Recorder) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd converts s and appends it.
func (r *Recorder) OnEnd(s sdktrace.ReadOnlySpan) {
	span := Convert(s)
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
}

func (r *Recorder) Shutdown(context.Context) error { return nil }

func (r *Recorder) ForceFlush(context.Context) error { return nil }

// Spans returns a copy of the recorded spans in end order.
func (r *Recorder) Spans() []telemetry.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.spans)
}

// Reset discards recorded spans.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.spans = nil
	r.mu.Unlock()
}

// Convert maps an SDK span to a telemetry span. The service is the span's
// own service.name attribute, falling back to the resource. The span and
// trace IDs and the service are also added as attributes.
func Convert(s sdktrace.ReadOnlySpan) telemetry.Span {
	sc := s.SpanContext()

	var attrs telemetry.Attributes
	service := ""
	for _, kv := range s.Attributes() {
		attrs.Set(string(kv.Key), Value(kv.Value))
		if kv.Key == serviceNameKey {
			service = kv.Value.Emit()
		}
	}
	if service == "" && s.Resource() != nil {
		if v, ok := s.Resource().Set().Value(serviceNameKey); ok {
			service = v.Emit()
		}
	}

	span := telemetry.Span{
		ID:        sc.SpanID().String(),
		TraceID:   sc.TraceID().String(),
		Name:      s.Name(),
		Service:   service,
		Duration:  s.EndTime().Sub(s.StartTime()),
		StartTime: s.StartTime(),
	}

	attrs.Set("trace.span_id", telemetry.String(span.ID))
	attrs.Set("trace.trace_id", telemetry.String(span.TraceID))
	if service != "" {
		attrs.Set(string(serviceNameKey), telemetry.String(service))
	}
	span.Attributes = attrs
	return span
}

// Value converts an OTel attribute value to a typed telemetry value.
func Value(v attribute.Value) telemetry.Value {
	switch v.Type() {
	case attribute.BOOL:
		return telemetry.Bool(v.AsBool())
	case attribute.INT64:
		return telemetry.Int(v.AsInt64())
	case attribute.FLOAT64:
		return telemetry.Float(v.AsFloat64())
	case attribute.STRING:
		return telemetry.String(v.AsString())
	case attribute.BOOLSLICE:
		return sliceValue(v.AsBoolSlice(), telemetry.Bool)
	case attribute.INT64SLICE:
		return sliceValue(v.AsInt64Slice(), telemetry.Int)
	case attribute.FLOAT64SLICE:
		return sliceValue(v.AsFloat64Slice(), telemetry.Float)
	case attribute.STRINGSLICE:
		return sliceValue(v.AsStringSlice(), telemetry.String)
	default:
		return telemetry.Null()
	}
}

func sliceValue[T any](xs []T, conv func(T) telemetry.Value) telemetry.Value {
	vs := make([]telemetry.Value, len(xs))
	for i, x := range xs {
		vs[i] = conv(x)
	}
	return telemetry.Array(vs...)
}
