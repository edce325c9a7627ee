// Contract assertions for Go tests
// Validates recorded spans against a named contract without any live backend
package contracttest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/andrewh/spancheck/pkg/validate"
)

// ProviderName is reported on results produced by this package.
const ProviderName = "in-memory"

// ValidateSingle loads the contracts file at path and validates spans against
// the contract called name. The window is the spans' own time range, so
// recorded spans always fall inside it regardless of when the test ran.
func ValidateSingle(path, name string, spans []telemetry.Span) (validate.Result, error) {
	file, err := contract.Load(path)
	if err != nil {
		return validate.Result{}, err
	}
	c, ok := file.Find(name)
	if !ok {
		return validate.Result{}, fmt.Errorf("contract %q not found in %s", name, path)
	}
	return ValidateContract(c, spans), nil
}

// ValidateContract validates spans against c using an in-memory provider
// pinned to the spans' time range.
func ValidateContract(c contract.Contract, spans []telemetry.Span) validate.Result {
	from, to := telemetry.TimeRange(spans)
	if from.IsZero() {
		to = time.Now()
		from = to.Add(-c.WindowDuration())
	}
	p := provider.NewWindowed(provider.NewStatic(ProviderName, spans), from, to)
	return validate.NewEngine(p).ValidateContract(context.Background(), c)
}

// Pass fails t unless spans satisfy the named contract.
func Pass(t testing.TB, path, name string, spans []telemetry.Span) validate.Result {
	t.Helper()
	res, err := ValidateSingle(path, name, spans)
	if err != nil {
		t.Fatalf("validating contract %q: %v", name, err)
		return res
	}
	if !res.Passed {
		t.Errorf("contract %q failed: %s\n%s", name, res.Message, formatDetails(res.Details))
	}
	return res
}

func formatDetails(details []string) string {
	var b strings.Builder
	for _, d := range details {
		b.WriteString("  - ")
		b.WriteString(d)
		b.WriteByte('\n')
	}
	return b.String()
}
