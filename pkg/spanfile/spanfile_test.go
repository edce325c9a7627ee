// Tests for span file reading across NDJSON, stdouttrace, and OTLP JSON
package spanfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ndjsonInput = `{"id":"s1","traceId":"t1","name":"POST /payments","service":"payment-api","durationMs":12.5,"startTime":"2025-01-01T12:00:00Z","attributes":{"http.status_code":200,"payment.status":"success","retry":false}}

not json
{"id":"s2","traceId":"t1","name":"db.query","service":null,"durationMs":3,"startTime":"2025-01-01T12:00:01.5Z","attributes":{"db.system":"postgres","rows":null}}
{"id":"s3","attributes":"not an object"}
`

func TestRead_NDJSON(t *testing.T) {
	t.Parallel()

	res, err := Read(strings.NewReader(ndjsonInput), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Spans, 2)

	first := res.Spans[0]
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, "t1", first.TraceID)
	assert.Equal(t, "payment-api", first.Service)
	assert.Equal(t, 12500*time.Microsecond, first.Duration)
	assert.True(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Equal(first.StartTime))
	assert.Equal(t, []string{"http.status_code", "payment.status", "retry"}, first.Attributes.Keys())
	code, _ := first.Attributes.Get("http.status_code")
	assert.Equal(t, telemetry.KindInt, code.Kind())

	second := res.Spans[1]
	assert.False(t, second.HasService())
	rows, ok := second.Attributes.Get("rows")
	assert.True(t, ok)
	assert.True(t, rows.IsNull())
}

const validRecord = `{"id":"ok","traceId":"t9","name":"GET /orders","service":"order-api","durationMs":5,"startTime":"2025-01-01T12:00:00Z","attributes":{}}`

func TestRead_NDJSONSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 11*1024*1024)
	tests := []struct {
		name        string
		input       string
		wantSpans   int
		wantSkipped int
	}{
		{"null value", "null\n" + validRecord, 1, 1},
		{"array value", "[1,2]\n" + validRecord, 1, 1},
		{"scalar values", "\"x\"\n42\ntrue\n" + validRecord, 1, 3},
		{"truncated object", `{"id":"x"` + "\n" + validRecord, 1, 1},
		{"over-long malformed line", `{"id":"` + long + "\n" + validRecord, 1, 1},
		{"over-long valid line", `{"id":"big","name":"` + long + `"}` + "\n" + validRecord, 2, 0},
		{"no trailing newline", validRecord + "\n" + validRecord, 2, 0},
		{"crlf line endings", validRecord + "\r\n" + validRecord + "\r\n", 2, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Read(strings.NewReader(tt.input), FormatNDJSON)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSkipped, res.Skipped)
			require.Len(t, res.Spans, tt.wantSpans)
			last := res.Spans[len(res.Spans)-1]
			assert.Equal(t, "ok", last.ID)
			assert.False(t, last.StartTime.IsZero())
			for _, s := range res.Spans {
				assert.NotEmpty(t, s.Name, "no empty span is produced from a skipped line")
			}
		})
	}
}

func TestRecord_StartTimeLayouts(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		startTime string
		want      time.Time
	}{
		{"2024-01-01T10:00:00Z", want},
		{"2024-01-01T12:00:00+02:00", want},
		{"2024-01-01T10:00:00", want},
		{"2024-01-01T10:00:00.250", want.Add(250 * time.Millisecond)},
		{"2024-01-01 10:00:00", want},
		{"not a time", time.Time{}},
		{"", time.Time{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.startTime, func(t *testing.T) {
			t.Parallel()
			line := `{"id":"s","name":"op","startTime":"` + tt.startTime + `"}`
			res, err := Read(strings.NewReader(line), FormatNDJSON)
			require.NoError(t, err)
			require.Len(t, res.Spans, 1)
			assert.True(t, tt.want.Equal(res.Spans[0].StartTime), res.Spans[0].StartTime)
		})
	}
}

func TestRead_Empty(t *testing.T) {
	t.Parallel()

	res, err := Read(strings.NewReader("  \n\n"), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, res.Spans)
	assert.Zero(t, res.Skipped)
}

func TestWrite_ReadBack(t *testing.T) {
	t.Parallel()

	var attrs telemetry.Attributes
	attrs.Set("z.key", telemetry.String("a<b"))
	attrs.Set("a.key", telemetry.Float(1.5))
	spans := []telemetry.Span{
		{
			ID: "s1", TraceID: "t1", Name: "op", Service: "svc",
			Duration:   250 * time.Millisecond,
			StartTime:  time.Date(2025, 6, 1, 8, 30, 0, 123000000, time.UTC),
			Attributes: attrs,
		},
		{ID: "s2", TraceID: "t1", Name: "anonymous", StartTime: time.Date(2025, 6, 1, 8, 30, 1, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, spans))
	assert.Contains(t, buf.String(), `"service":null`)

	res, err := Read(&buf, FormatNDJSON)
	require.NoError(t, err)
	require.Len(t, res.Spans, 2)
	assert.True(t, spans[0].StartTime.Equal(res.Spans[0].StartTime))
	assert.Equal(t, spans[0].Duration, res.Spans[0].Duration)
	assert.Equal(t, []string{"z.key", "a.key"}, res.Spans[0].Attributes.Keys())
	assert.Equal(t, "", res.Spans[1].Service)
}

func TestRead_Stdouttrace(t *testing.T) {
	t.Parallel()

	input := `{"Name":"GET /users","SpanContext":{"TraceID":"aaa","SpanID":"bbb"},"StartTime":"2024-01-01T00:00:00Z","EndTime":"2024-01-01T00:00:00.25Z","Attributes":[{"Key":"http.status_code","Value":{"Type":"INT64","Value":200}},{"Key":"ratio","Value":{"Type":"FLOAT64","Value":1}},{"Key":"ok","Value":{"Type":"BOOL","Value":true}}],"Resource":[{"Key":"service.name","Value":{"Type":"STRING","Value":"users-api"}}],"InstrumentationScope":{"Name":"scope"}}
{"Name":"child","SpanContext":{"TraceID":"aaa","SpanID":"ccc"},"StartTime":"2024-01-01T00:00:00Z","EndTime":"2024-01-01T00:00:00Z","Attributes":[],"InstrumentationScope":{"Name":"scope"}}`

	res, err := Read(strings.NewReader(input), FormatAuto)
	require.NoError(t, err)
	require.Len(t, res.Spans, 2)

	s := res.Spans[0]
	assert.Equal(t, "bbb", s.ID)
	assert.Equal(t, "aaa", s.TraceID)
	assert.Equal(t, "users-api", s.Service)
	assert.Equal(t, 250*time.Millisecond, s.Duration)

	ratio, _ := s.Attributes.Get("ratio")
	assert.Equal(t, telemetry.KindFloat, ratio.Kind())
	code, _ := s.Attributes.Get("http.status_code")
	assert.Equal(t, "200", code.String())

	assert.Equal(t, "scope", res.Spans[1].Service, "scope name is the fallback service")
}

func TestRead_OTLP(t *testing.T) {
	t.Parallel()

	input := `{"resourceSpans":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"api"}}]},"scopeSpans":[{"scope":{"name":"api"},"spans":[{"traceId":"AQIDBAUGBwgJCgsMDQ4PEA==","spanId":"AQIDBAUGBwg=","name":"op","startTimeUnixNano":"1700000000000000000","endTimeUnixNano":"1700000000030000000","status":{},"attributes":[{"key":"http.method","value":{"stringValue":"GET"}},{"key":"count","value":{"intValue":"42"}},{"key":"ok","value":{"boolValue":true}},{"key":"tags","value":{"arrayValue":{"values":[{"stringValue":"a"},{"intValue":"1"}]}}}]}]}]}]}`

	res, err := Read(strings.NewReader(input), FormatAuto)
	require.NoError(t, err)
	require.Len(t, res.Spans, 1)

	s := res.Spans[0]
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", s.TraceID)
	assert.Equal(t, "0102030405060708", s.ID)
	assert.Equal(t, "api", s.Service)
	assert.Equal(t, 30*time.Millisecond, s.Duration)
	assert.True(t, time.Unix(1700000000, 0).Equal(s.StartTime))

	count, _ := s.Attributes.Get("count")
	assert.Equal(t, telemetry.KindInt, count.Kind())
	tags, _ := s.Attributes.Get("tags")
	assert.Equal(t, `["a",1]`, tags.String())
}

func TestRead_OTLPExplicitInvalid(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader(`{"resourceSpans": 5}`), FormatOTLP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing OTLP")
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	f, err = ParseFormat("otlp")
	require.NoError(t, err)
	assert.Equal(t, FormatOTLP, f)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spans.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(ndjsonInput), 0o600))

	res, err := ReadFile(path, FormatNDJSON)
	require.NoError(t, err)
	assert.Len(t, res.Spans, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"), FormatAuto)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
