// Tests for the validation engine: windows, fetch failures, and tracing
package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fetchCall struct {
	query    string
	from, to time.Time
}

// scriptedProvider fails for queries listed in failures and records calls.
type scriptedProvider struct {
	spans    []telemetry.Span
	failures map[string]error
	calls    []fetchCall
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) FetchSpans(_ context.Context, q string, from, to time.Time) ([]telemetry.Span, error) {
	p.calls = append(p.calls, fetchCall{q, from, to})
	if err := p.failures[q]; err != nil {
		return nil, err
	}
	return p.spans, nil
}

func (p *scriptedProvider) FetchMetrics(context.Context, string, time.Time, time.Time) ([]telemetry.MetricPoint, error) {
	return nil, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestValidate_FetchFailureIsolated(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		spans: []telemetry.Span{paymentSpan(map[string]any{"payment.status": "success", "customer.id": "1"})},
		failures: map[string]error{
			"service:broken": &provider.FetchError{Provider: "scripted", StatusCode: 503, Err: errors.New("unavailable")},
		},
	}
	broken := contract.Contract{Name: "broken", Query: "service:broken", ExpectedSpans: paymentFlowContract().ExpectedSpans}
	file := &contract.File{Contracts: []contract.Contract{broken, paymentFlowContract()}}

	core, logs := observer.New(zap.WarnLevel)
	e := &Engine{Provider: p, Now: fixedClock(start), Logger: zap.New(core)}
	results := e.Validate(context.Background(), file)

	require.Len(t, results, 2)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "Failed to fetch spans: scripted: status 503: unavailable", results[0].Message)
	assert.Empty(t, results[0].Details)
	assert.Equal(t, "broken", results[0].ContractName)
	assert.Equal(t, "scripted", results[0].ProviderName)

	assert.True(t, results[1].Passed)
	assert.Equal(t, "Payment Flow Success", results[1].ContractName)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "fetching spans failed", logs.All()[0].Message)
}

func TestValidate_Windows(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{}
	file := &contract.File{Contracts: []contract.Contract{
		{Name: "default", Query: "a"},
		{Name: "hour", Query: "b", Window: &contract.TimeWindow{Minutes: 60}},
	}}

	results := (&Engine{Provider: p, Now: fixedClock(start)}).Validate(context.Background(), file)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed)

	require.Len(t, p.calls, 2)
	assert.Equal(t, fetchCall{"a", start.Add(-15 * time.Minute), start}, p.calls[0])
	assert.Equal(t, fetchCall{"b", start.Add(-time.Hour), start}, p.calls[1])
}

func TestValidate_StaticProvider(t *testing.T) {
	t.Parallel()

	span := paymentSpan(map[string]any{"payment.status": "success", "customer.id": "123"})
	span.StartTime = start.Add(-time.Minute)
	other := paymentSpan(nil)
	other.Service = "other-api"
	other.StartTime = start.Add(-time.Minute)

	e := NewEngine(provider.NewStatic("", []telemetry.Span{span, other}))
	e.Now = fixedClock(start)

	results := e.Validate(context.Background(), &contract.File{Contracts: []contract.Contract{paymentFlowContract()}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed, results[0].Details)
	assert.Equal(t, provider.DefaultStaticName, results[0].ProviderName)
}

func TestValidate_EmptyFile(t *testing.T) {
	t.Parallel()

	results := NewEngine(&scriptedProvider{}).Validate(context.Background(), &contract.File{})
	assert.Empty(t, results)
}

func TestValidate_Tracing(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := &scriptedProvider{failures: map[string]error{"bad": errors.New("boom")}}
	e := &Engine{Provider: p, Now: fixedClock(start), Tracer: tp.Tracer("test")}
	file := &contract.File{Contracts: []contract.Contract{
		{Name: "ok", Query: "good"},
		{Name: "fails", Query: "bad"},
	}}
	e.Validate(context.Background(), file)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "validate contract", spans[0].Name)

	attrs := func(i int) map[attribute.Key]attribute.Value {
		m := make(map[attribute.Key]attribute.Value)
		for _, kv := range spans[i].Attributes {
			m[kv.Key] = kv.Value
		}
		return m
	}
	assert.Equal(t, "ok", attrs(0)["spancheck.contract"].AsString())
	assert.True(t, attrs(0)["spancheck.passed"].AsBool())
	assert.Equal(t, "fails", attrs(1)["spancheck.contract"].AsString())
	assert.False(t, attrs(1)["spancheck.passed"].AsBool())
	assert.Len(t, spans[1].Events, 1, "fetch error is recorded on the span")
}
