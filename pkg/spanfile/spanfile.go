// Offline span files: format detection and dispatch to the per-format readers
// Supports NDJSON span records, Go SDK stdouttrace output, and OTLP protobuf JSON
package spanfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andrewh/spancheck/pkg/telemetry"
)

// Format identifies a span file encoding.
type Format string

const (
	FormatAuto        Format = "auto"
	FormatNDJSON      Format = "ndjson"
	FormatStdouttrace Format = "stdouttrace"
	FormatOTLP        Format = "otlp"
)

// maxInputSize is the maximum input size to prevent OOM on large trace exports.
const maxInputSize = 256 * 1024 * 1024 // 256 MB

// ParseFormat validates a user-supplied format name. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatNDJSON, FormatStdouttrace, FormatOTLP:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q, valid formats: auto, ndjson, stdouttrace, otlp", s)
	}
}

// Result holds the spans read from a file and how many NDJSON lines were
// skipped as malformed.
type Result struct {
	Spans   []telemetry.Span
	Skipped int
}

// Read decodes spans from r. FormatAuto recognises stdouttrace and OTLP by
// their top-level keys and treats anything else as NDJSON records.
func Read(r io.Reader, format Format) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return Result{}, fmt.Errorf("reading input: %w", err)
	}
	if len(data) > maxInputSize {
		return Result{}, fmt.Errorf("input exceeds maximum size of %d MB", maxInputSize/(1024*1024))
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Result{}, nil
	}

	if format == FormatAuto || format == "" {
		format = detectFormat(data)
	}

	switch format {
	case FormatNDJSON:
		return readNDJSON(data)
	case FormatStdouttrace:
		spans, err := readStdouttrace(data)
		return Result{Spans: spans}, err
	case FormatOTLP:
		spans, err := readOTLP(data)
		return Result{Spans: spans}, err
	default:
		return Result{}, fmt.Errorf("unknown format %q, valid formats: auto, ndjson, stdouttrace, otlp", format)
	}
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, format Format) (Result, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied span file path is expected
	if err != nil {
		return Result{}, fmt.Errorf("opening span file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	res, err := Read(f, format)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return res, nil
}

// detectFormat examines the first line, then the whole input for
// pretty-printed OTLP documents.
func detectFormat(data []byte) Format {
	firstLine, _, hasMore := bytes.Cut(data, []byte{'\n'})
	firstLine = bytes.TrimSpace(firstLine)

	if f, ok := probeFormat(firstLine); ok {
		return f
	}
	if hasMore {
		if f, ok := probeFormat(data); ok {
			return f
		}
	}
	return FormatNDJSON
}

func probeFormat(doc []byte) (Format, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil {
		return "", false
	}
	if _, ok := probe["SpanContext"]; ok {
		return FormatStdouttrace, true
	}
	if _, ok := probe["resourceSpans"]; ok {
		return FormatOTLP, true
	}
	return "", false
}
