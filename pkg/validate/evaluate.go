// Pure evaluation of a contract against an already-fetched span set
package validate

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/andrewh/spancheck/pkg/telemetry"
)

// Evaluate checks spans against every expected span of c. It performs no I/O
// and the same inputs always produce the same Result.
func Evaluate(providerName string, c contract.Contract, spans []telemetry.Span) Result {
	details := []string{}
	for _, expected := range c.ExpectedSpans {
		details = append(details, evaluateSpan(expected, spans)...)
	}

	res := Result{
		ProviderName: providerName,
		ContractName: c.Name,
		Passed:       len(details) == 0,
		Details:      details,
	}
	if res.Passed {
		res.Message = passedMessage
	} else {
		res.Message = fmt.Sprintf("%d validation issue(s) found.", len(details))
	}
	return res
}

func evaluateSpan(expected contract.ExpectedSpan, spans []telemetry.Span) []string {
	var details []string

	// Name and service match exactly here, unlike the case-insensitive query filter
	var matching []telemetry.Span
	for _, s := range spans {
		if s.Name == expected.Name && (expected.Service == "" || s.Service == expected.Service) {
			matching = append(matching, s)
		}
	}

	if expected.MinCount != nil && len(matching) < *expected.MinCount {
		details = append(details, fmt.Sprintf("Span '%s' (service '%s') count %d < MinCount %d",
			expected.Name, expected.ServiceLabel(), len(matching), *expected.MinCount))
	}

	if expected.MaxLatencyMs != nil && len(matching) > 0 {
		maxMs := matching[0].DurationMs()
		for _, s := range matching[1:] {
			maxMs = max(maxMs, s.DurationMs())
		}
		if maxMs > float64(*expected.MaxLatencyMs) {
			details = append(details, fmt.Sprintf("Span '%s' exceeded MaxLatencyMs (%dms > %dms)",
				expected.Name, int64(math.Round(maxMs)), *expected.MaxLatencyMs))
		}
	}

	for _, tag := range expected.Tags {
		details = append(details, evaluateTag(expected.Name, tag, matching)...)
	}
	return details
}

func evaluateTag(spanName string, tag contract.ExpectedTag, matching []telemetry.Span) []string {
	var values []telemetry.Value
	for _, s := range matching {
		if v, ok := s.Attributes.Get(tag.Key); ok {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		if tag.IsRequired() {
			return []string{fmt.Sprintf("Span '%s' missing required tag '%s'.", spanName, tag.Key)}
		}
		return nil
	}

	var details []string

	if tag.Expected != nil {
		for _, v := range values {
			if s, ok := telemetry.Normalise(v); !ok || s != *tag.Expected {
				details = append(details, fmt.Sprintf("Tag '%s' on span '%s' did not match expected value '%s'.",
					tag.Key, spanName, *tag.Expected))
				break
			}
		}
	}

	if len(tag.ExpectedAnyOf) > 0 {
		allowed := dedupe(tag.ExpectedAnyOf)
		for _, v := range values {
			if s, ok := telemetry.Normalise(v); !ok || !slices.Contains(allowed, s) {
				details = append(details, fmt.Sprintf("Tag '%s' on span '%s' did not match any of [%s].",
					tag.Key, spanName, strings.Join(allowed, ", ")))
				break
			}
		}
	}

	return details
}

// dedupe drops repeated values, keeping first occurrences in order.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
