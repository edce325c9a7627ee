// Reader for OTLP protobuf JSON (ExportTraceServiceRequest) documents
package spanfile

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

func readOTLP(data []byte) ([]telemetry.Span, error) {
	var req coltracepb.ExportTraceServiceRequest
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing OTLP: %w", err)
	}

	var spans []telemetry.Span
	for _, rs := range req.ResourceSpans {
		serviceName := ""
		for _, attr := range rs.Resource.GetAttributes() {
			if attr.Key == "service.name" {
				serviceName = attr.Value.GetStringValue()
			}
		}

		for _, ss := range rs.ScopeSpans {
			svc := serviceName
			if svc == "" {
				svc = ss.Scope.GetName()
			}

			for _, span := range ss.Spans {
				var attrs telemetry.Attributes
				for _, attr := range span.Attributes {
					attrs.Set(attr.Key, anyValue(attr.Value))
				}

				start := time.Unix(0, int64(span.StartTimeUnixNano)) //nolint:gosec // nanosecond timestamps are always positive
				end := time.Unix(0, int64(span.EndTimeUnixNano))     //nolint:gosec // nanosecond timestamps are always positive
				spans = append(spans, telemetry.Span{
					ID:         hex.EncodeToString(span.SpanId),
					TraceID:    hex.EncodeToString(span.TraceId),
					Name:       span.Name,
					Service:    svc,
					Duration:   end.Sub(start),
					StartTime:  start.UTC(),
					Attributes: attrs,
				})
			}
		}
	}
	return spans, nil
}

// anyValue converts an OTLP AnyValue to a typed attribute value.
func anyValue(v *commonpb.AnyValue) telemetry.Value {
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return telemetry.String(x.StringValue)
	case *commonpb.AnyValue_IntValue:
		return telemetry.Int(x.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return telemetry.Float(x.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return telemetry.Bool(x.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return telemetry.String(hex.EncodeToString(x.BytesValue))
	case *commonpb.AnyValue_ArrayValue:
		values := x.ArrayValue.GetValues()
		out := make([]telemetry.Value, len(values))
		for i, e := range values {
			out[i] = anyValue(e)
		}
		return telemetry.Array(out...)
	case *commonpb.AnyValue_KvlistValue:
		var m telemetry.Attributes
		for _, kv := range x.KvlistValue.GetValues() {
			m.Set(kv.Key, anyValue(kv.Value))
		}
		return telemetry.Map(m)
	default:
		return telemetry.Null()
	}
}
