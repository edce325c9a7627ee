// Reader for the Go SDK stdouttrace exporter's line-delimited JSON
package spanfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
)

// stdouttraceEvent mirrors the Go SDK's stdouttrace JSON output.
type stdouttraceEvent struct {
	Name        string `json:"Name"`
	SpanContext struct {
		TraceID string `json:"TraceID"`
		SpanID  string `json:"SpanID"`
	} `json:"SpanContext"`
	StartTime            time.Time `json:"StartTime"`
	EndTime              time.Time `json:"EndTime"`
	Attributes           []sdkAttr `json:"Attributes"`
	Resource             []sdkAttr `json:"Resource"`
	InstrumentationScope struct {
		Name string `json:"Name"`
	} `json:"InstrumentationScope"`
}

type sdkAttr struct {
	Key   string `json:"Key"`
	Value struct {
		Type  string          `json:"Type"`
		Value telemetry.Value `json:"Value"`
	} `json:"Value"`
}

// value applies the declared SDK type, since integral floats are encoded
// without a fractional part.
func (a sdkAttr) value() telemetry.Value {
	v := a.Value.Value
	if a.Value.Type == "FLOAT64" {
		if i, ok := v.AsInt(); ok {
			return telemetry.Float(float64(i))
		}
	}
	return v
}

func readStdouttrace(data []byte) ([]telemetry.Span, error) {
	var spans []telemetry.Span
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var evt stdouttraceEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		// Service from the resource, then the span itself, then the scope
		service := sdkString(evt.Resource, "service.name")
		if service == "" {
			service = sdkString(evt.Attributes, "service.name")
		}
		if service == "" {
			service = evt.InstrumentationScope.Name
		}

		var attrs telemetry.Attributes
		for _, attr := range evt.Attributes {
			attrs.Set(attr.Key, attr.value())
		}

		spans = append(spans, telemetry.Span{
			ID:         evt.SpanContext.SpanID,
			TraceID:    evt.SpanContext.TraceID,
			Name:       evt.Name,
			Service:    service,
			Duration:   evt.EndTime.Sub(evt.StartTime),
			StartTime:  evt.StartTime,
			Attributes: attrs,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return spans, nil
}

func sdkString(attrs []sdkAttr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			if s, ok := a.Value.Value.AsString(); ok {
				return s
			}
		}
	}
	return ""
}
