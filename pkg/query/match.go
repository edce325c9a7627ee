// Span predicate built from parsed filter pairs
// Shared unmodified by every provider that filters a materialised span collection
package query

import (
	"strings"
	"time"

	"github.com/andrewh/spancheck/pkg/telemetry"
	"golang.org/x/text/cases"
)

// Matcher is a compiled filter query.
type Matcher struct {
	pairs []Pair
}

// Compile parses q into a Matcher.
func Compile(q string) *Matcher {
	return NewMatcher(Parse(q))
}

// NewMatcher builds a Matcher from already-parsed pairs.
func NewMatcher(pairs []Pair) *Matcher {
	return &Matcher{pairs: append([]Pair(nil), pairs...)}
}

// Pairs returns a copy of the matcher's pairs.
func (m *Matcher) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// Match reports whether span starts within [from, to] inclusive and satisfies
// every pair.
func (m *Matcher) Match(span telemetry.Span, from, to time.Time) bool {
	if span.StartTime.Before(from) || span.StartTime.After(to) {
		return false
	}
	for _, p := range m.pairs {
		if !matchPair(span, p) {
			return false
		}
	}
	return true
}

// Filter returns the spans that match query within [from, to], preserving order.
func Filter(spans []telemetry.Span, q string, from, to time.Time) []telemetry.Span {
	m := Compile(q)
	out := make([]telemetry.Span, 0, len(spans))
	for _, s := range spans {
		if m.Match(s, from, to) {
			out = append(out, s)
		}
	}
	return out
}

func matchPair(span telemetry.Span, p Pair) bool {
	switch strings.ToLower(p.Key) {
	case "service", "service.name":
		return span.HasService() && equalFold(span.Service, p.Value)
	case "operation_name", "name":
		return strings.Contains(fold(span.Name), fold(p.Value))
	}

	key := p.Key
	if !span.Attributes.Has(key) {
		key = "attributes." + key
	}
	v, ok := span.Attributes.Get(key)
	if !ok {
		return false
	}
	s, ok := telemetry.Normalise(v)
	return ok && equalFold(s, p.Value)
}

// fold applies Unicode case folding. A fresh Caser is used per call because
// Casers carry state and are not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}

func equalFold(a, b string) bool {
	return fold(a) == fold(b)
}
