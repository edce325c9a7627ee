// Validation engine: fetches spans per contract and evaluates them
// Contracts run sequentially; a failed fetch becomes a failing result, never an abort
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/andrewh/spancheck/pkg/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/andrewh/spancheck/pkg/validate"

// Engine validates contracts against one provider.
type Engine struct {
	Provider provider.Provider
	// Now returns the current time; defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
	Tracer trace.Tracer
}

// NewEngine returns an Engine for p with default clock, logger, and tracer.
func NewEngine(p provider.Provider) *Engine {
	return &Engine{Provider: p}
}

// Validate runs every contract in file order and returns one result each.
// Each contract's window ends at the time it is evaluated.
func (e *Engine) Validate(ctx context.Context, file *contract.File) []Result {
	results := make([]Result, 0, len(file.Contracts))
	for _, c := range file.Contracts {
		results = append(results, e.ValidateContract(ctx, c))
	}
	return results
}

// ValidateContract fetches spans for c over its window and evaluates them.
func (e *Engine) ValidateContract(ctx context.Context, c contract.Contract) Result {
	name := e.Provider.Name()
	logger := e.logger().With(zap.String("contract", c.Name), zap.String("provider", name))

	ctx, span := e.tracer().Start(ctx, "validate contract", trace.WithAttributes(
		attribute.String("spancheck.contract", c.Name),
		attribute.String("spancheck.provider", name),
	))
	defer span.End()

	now := e.now()
	from := now.Add(-c.WindowDuration())

	spans, err := e.Provider.FetchSpans(ctx, c.Query, from, now)
	if err != nil {
		logger.Warn("fetching spans failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		res := Result{
			ProviderName: name,
			ContractName: c.Name,
			Passed:       false,
			Message:      fmt.Sprintf("Failed to fetch spans: %v", err),
			Details:      []string{},
		}
		span.SetAttributes(attribute.Bool("spancheck.passed", false))
		return res
	}

	res := Evaluate(name, c, spans)
	span.SetAttributes(
		attribute.Bool("spancheck.passed", res.Passed),
		attribute.Int("spancheck.issues", len(res.Details)),
		attribute.Int("spancheck.spans", len(spans)),
	)
	if !res.Passed {
		span.SetStatus(codes.Error, res.Message)
	}
	logger.Debug("evaluated contract",
		zap.Int("spans", len(spans)),
		zap.Bool("passed", res.Passed),
		zap.Int("issues", len(res.Details)))
	return res
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return otel.Tracer(tracerName)
}
