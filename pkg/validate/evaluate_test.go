// Tests for contract evaluation: counts, latency bounds, and tag expectations
package validate

import (
	"testing"
	"time"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func paymentSpan(attrs map[string]any) telemetry.Span {
	return telemetry.Span{
		ID:         "s",
		TraceID:    "t",
		Name:       "POST /payments",
		Service:    "payment-api",
		Duration:   100 * time.Millisecond,
		StartTime:  start,
		Attributes: telemetry.NewAttributes(attrs),
	}
}

func singleSpanContract(es contract.ExpectedSpan) contract.Contract {
	return contract.Contract{Name: "c", Query: "service:payment-api", ExpectedSpans: []contract.ExpectedSpan{es}}
}

// paymentFlowContract is the end-to-end checkout contract.
func paymentFlowContract() contract.Contract {
	return contract.Contract{
		Name:  "Payment Flow Success",
		Query: "service:payment-api",
		ExpectedSpans: []contract.ExpectedSpan{{
			Name:     "POST /payments",
			Service:  "payment-api",
			MinCount: contract.Ptr(1),
			Tags: []contract.ExpectedTag{
				{Key: "payment.status", Expected: contract.Ptr("success")},
				{Key: "customer.id", Required: contract.Ptr(true)},
			},
		}},
	}
}

func TestEvaluate_EmptyExpectedSpans(t *testing.T) {
	t.Parallel()

	res := Evaluate("p", contract.Contract{Name: "empty"}, []telemetry.Span{paymentSpan(nil)})
	assert.True(t, res.Passed)
	assert.Empty(t, res.Details)
	assert.NotNil(t, res.Details)
	assert.Equal(t, "All expected spans/tags satisfied.", res.Message)
	assert.Equal(t, "p", res.ProviderName)
	assert.Equal(t, "empty", res.ContractName)
}

func TestEvaluate_PaymentFlow(t *testing.T) {
	t.Parallel()

	span := paymentSpan(map[string]any{"payment.status": "success", "customer.id": "123"})
	res := Evaluate("in-memory", paymentFlowContract(), []telemetry.Span{span})
	assert.True(t, res.Passed)
	assert.Empty(t, res.Details)

	res = Evaluate("in-memory", paymentFlowContract(), nil)
	assert.False(t, res.Passed)
	assert.Equal(t, "1 validation issue(s) found.", res.Message)
	assert.Equal(t, []string{"Span 'POST /payments' (service 'payment-api') count 0 < MinCount 1"}, res.Details)
}

func TestEvaluate_MinCount(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", MinCount: contract.Ptr(3)}
	three := []telemetry.Span{paymentSpan(nil), paymentSpan(nil), paymentSpan(nil)}

	assert.True(t, Evaluate("p", singleSpanContract(es), three).Passed)

	res := Evaluate("p", singleSpanContract(es), three[:2])
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"Span 'POST /payments' (service '*') count 2 < MinCount 3"}, res.Details)
}

func TestEvaluate_MatchingIsExact(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", Service: "payment-api", MinCount: contract.Ptr(1)}

	lower := paymentSpan(nil)
	lower.Name = "post /payments"
	other := paymentSpan(nil)
	other.Service = "Payment-API"
	prefixed := paymentSpan(nil)
	prefixed.Name = "POST /payments/refund"

	res := Evaluate("p", singleSpanContract(es), []telemetry.Span{lower, other, prefixed})
	assert.False(t, res.Passed, "name and service must match exactly")
}

func TestEvaluate_MaxLatency(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", MaxLatencyMs: contract.Ptr(250)}

	atLimit := paymentSpan(nil)
	atLimit.Duration = 250 * time.Millisecond
	assert.True(t, Evaluate("p", singleSpanContract(es), []telemetry.Span{atLimit}).Passed)

	over := paymentSpan(nil)
	over.Duration = 251 * time.Millisecond
	res := Evaluate("p", singleSpanContract(es), []telemetry.Span{atLimit, over})
	assert.Equal(t, []string{"Span 'POST /payments' exceeded MaxLatencyMs (251ms > 250ms)"}, res.Details)

	assert.True(t, Evaluate("p", singleSpanContract(es), nil).Passed, "no matching spans means no latency check")
}

func TestEvaluate_RequiredTag(t *testing.T) {
	t.Parallel()

	spans := []telemetry.Span{paymentSpan(map[string]any{"other": "x"})}

	required := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{{Key: "customer.id"}}}
	res := Evaluate("p", singleSpanContract(required), spans)
	assert.Equal(t, []string{"Span 'POST /payments' missing required tag 'customer.id'."}, res.Details)

	optional := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{
		{Key: "customer.id", Required: contract.Ptr(false), Expected: contract.Ptr("1")},
	}}
	res = Evaluate("p", singleSpanContract(optional), spans)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Details)
}

func TestEvaluate_PresentNullCountsAsPresent(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{{Key: "customer.id"}}}
	res := Evaluate("p", singleSpanContract(es), []telemetry.Span{paymentSpan(map[string]any{"customer.id": nil})})
	assert.True(t, res.Passed)

	es.Tags[0].Expected = contract.Ptr("null")
	res = Evaluate("p", singleSpanContract(es), []telemetry.Span{paymentSpan(map[string]any{"customer.id": nil})})
	assert.False(t, res.Passed, "null never equals an expected string")
}

func TestEvaluate_ExpectedAggregatesMismatches(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{
		{Key: "payment.status", Expected: contract.Ptr("success")},
	}}
	spans := []telemetry.Span{
		paymentSpan(map[string]any{"payment.status": "success"}),
		paymentSpan(map[string]any{"payment.status": "failed"}),
		paymentSpan(map[string]any{"payment.status": "success"}),
		paymentSpan(map[string]any{"payment.status": "declined"}),
		paymentSpan(nil),
	}

	res := Evaluate("p", singleSpanContract(es), spans)
	assert.Equal(t, []string{"Tag 'payment.status' on span 'POST /payments' did not match expected value 'success'."}, res.Details)
}

func TestEvaluate_ExpectedNormalisesValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"int", 200, "200"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"array", []any{"a", 1}, `["a",1]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			es := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{
				{Key: "k", Expected: contract.Ptr(tt.expected)},
			}}
			res := Evaluate("p", singleSpanContract(es), []telemetry.Span{paymentSpan(map[string]any{"k": tt.value})})
			assert.True(t, res.Passed, res.Details)
		})
	}
}

func TestEvaluate_ExpectedAnyOf(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{
		{Key: "payment.method", ExpectedAnyOf: []string{"card", "wallet", "card"}},
	}}

	ok := []telemetry.Span{
		paymentSpan(map[string]any{"payment.method": "card"}),
		paymentSpan(map[string]any{"payment.method": "wallet"}),
	}
	assert.True(t, Evaluate("p", singleSpanContract(es), ok).Passed)

	bad := append(ok,
		paymentSpan(map[string]any{"payment.method": "cash"}),
		paymentSpan(map[string]any{"payment.method": "cheque"}),
	)
	res := Evaluate("p", singleSpanContract(es), bad)
	assert.Equal(t, []string{"Tag 'payment.method' on span 'POST /payments' did not match any of [card, wallet]."}, res.Details)
}

func TestEvaluate_ExpectedAnyOfRejectsNull(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{
		{Key: "payment.method", ExpectedAnyOf: []string{"null", ""}},
	}}
	res := Evaluate("p", singleSpanContract(es), []telemetry.Span{paymentSpan(map[string]any{"payment.method": nil})})
	assert.False(t, res.Passed)
	require.Len(t, res.Details, 1)
	assert.Contains(t, res.Details[0], "did not match any of [null, ]")
}

func TestEvaluate_ExpectedAndAnyOfIndependent(t *testing.T) {
	t.Parallel()

	es := contract.ExpectedSpan{Name: "POST /payments", Tags: []contract.ExpectedTag{
		{Key: "region", Expected: contract.Ptr("eu"), ExpectedAnyOf: []string{"us"}},
	}}
	res := Evaluate("p", singleSpanContract(es), []telemetry.Span{paymentSpan(map[string]any{"region": "eu"})})
	assert.Equal(t, []string{"Tag 'region' on span 'POST /payments' did not match any of [us]."}, res.Details)

	res = Evaluate("p", singleSpanContract(es), []telemetry.Span{paymentSpan(map[string]any{"region": "fr"})})
	assert.Len(t, res.Details, 2)
	assert.Equal(t, "2 validation issue(s) found.", res.Message)
}

func TestEvaluate_DetailOrder(t *testing.T) {
	t.Parallel()

	c := contract.Contract{Name: "c", ExpectedSpans: []contract.ExpectedSpan{
		{Name: "a", MinCount: contract.Ptr(1)},
		{Name: "POST /payments", MaxLatencyMs: contract.Ptr(1), Tags: []contract.ExpectedTag{{Key: "x"}}},
	}}
	res := Evaluate("p", c, []telemetry.Span{paymentSpan(nil)})
	assert.Equal(t, []string{
		"Span 'a' (service '*') count 0 < MinCount 1",
		"Span 'POST /payments' exceeded MaxLatencyMs (100ms > 1ms)",
		"Span 'POST /payments' missing required tag 'x'.",
	}, res.Details)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	results := []Result{{Passed: true}, {Passed: false}, {Passed: true}}
	c := Summary(results)
	assert.Equal(t, Counts{Passed: 2, Failed: 1}, c)
	assert.Equal(t, 3, c.Total())
	assert.False(t, AllPassed(results))
	assert.True(t, AllPassed(nil))
}
