// NDJSON span records: one JSON object per line, malformed lines skipped
package spanfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
)

// Record is the on-disk shape of one span, shared with the Elasticsearch
// span index.
type Record struct {
	ID         string               `json:"id"`
	TraceID    string               `json:"traceId"`
	Name       string               `json:"name"`
	Service    *string              `json:"service"`
	DurationMs float64              `json:"durationMs"`
	StartTime  string               `json:"startTime"`
	Attributes telemetry.Attributes `json:"attributes"`
}

// Span converts the record. The start time may carry an offset or none (UTC);
// an unparseable one is left zero.
func (r Record) Span() telemetry.Span {
	s := telemetry.Span{
		ID:         r.ID,
		TraceID:    r.TraceID,
		Name:       r.Name,
		Duration:   time.Duration(r.DurationMs * float64(time.Millisecond)),
		Attributes: r.Attributes,
	}
	if r.Service != nil {
		s.Service = *r.Service
	}
	if t, ok := telemetry.ParseTime(r.StartTime); ok {
		s.StartTime = t
	}
	return s
}

// NewRecord converts a span to its record form.
func NewRecord(s telemetry.Span) Record {
	r := Record{
		ID:         s.ID,
		TraceID:    s.TraceID,
		Name:       s.Name,
		DurationMs: s.DurationMs(),
		StartTime:  s.StartTime.UTC().Format(time.RFC3339Nano),
		Attributes: s.Attributes,
	}
	if s.HasService() {
		svc := s.Service
		r.Service = &svc
	}
	return r
}

// readNDJSON decodes one record per line. Lines that are not JSON objects or
// fail to decode are counted in Skipped; line length is bounded only by the
// overall input limit.
func readNDJSON(data []byte) (Result, error) {
	var res Result
	for rest := data; len(rest) > 0; {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte{'\n'})
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			res.Skipped++
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Skipped++
			continue
		}
		res.Spans = append(res.Spans, rec.Span())
	}
	return res, nil
}

// Write emits spans as NDJSON records, one per line.
func Write(w io.Writer, spans []telemetry.Span) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, s := range spans {
		if err := enc.Encode(NewRecord(s)); err != nil {
			return fmt.Errorf("encoding span %d: %w", i, err)
		}
	}
	return bw.Flush()
}
