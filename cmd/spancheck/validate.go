// validate command: runs every contract against each configured provider
// or against an offline span file, and reports per-contract results
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/andrewh/spancheck/pkg/logging"
	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/spanfile"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/andrewh/spancheck/pkg/validate"
	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// offlineProviderName is reported on results validated from --spans.
const offlineProviderName = "offline"

const shutdownTimeout = 5 * time.Second

var validOutputs = map[string]bool{
	"text":  true,
	"table": true,
	"json":  true,
}

type validateOptions struct {
	contractsPath string
	configPath    string
	from          time.Time
	to            time.Time
	spansPath     string
	format        spanfile.Format
	providerName  string
	output        string
	cache         bool
	traceEndpoint string
	logLevel      string
	logFormat     string
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate observability contracts against telemetry",
		Long: "Validate observability contracts against telemetry.\n\n" +
			"Without --spans every enabled provider in the telemetry config is queried over\n" +
			"one window (--from/--to, or the first contract's window ending now).\n" +
			"With --spans the file is validated offline over the spans' own time range.\n\n" +
			"Exits with status 2 when any contract fails. Flags may also be set through\n" +
			"SPANCHECK_* environment variables, e.g. SPANCHECK_CONTRACTS.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := flagEnv(cmd.Flags())
			if err != nil {
				return err
			}
			from, err := parseTime("from", v.GetString("from"))
			if err != nil {
				return err
			}
			to, err := parseTime("to", v.GetString("to"))
			if err != nil {
				return err
			}
			if !from.IsZero() && !to.IsZero() && from.After(to) {
				return fmt.Errorf("--from must not be after --to")
			}
			format, err := spanfile.ParseFormat(v.GetString("format"))
			if err != nil {
				return err
			}
			output := strings.ToLower(v.GetString("output"))
			if !validOutputs[output] {
				return fmt.Errorf("unknown output %q, valid outputs: text, table, json", output)
			}

			return runValidate(cmd.Context(), cmd.OutOrStdout(), validateOptions{
				contractsPath: v.GetString("contracts"),
				configPath:    v.GetString("config"),
				from:          from,
				to:            to,
				spansPath:     v.GetString("spans"),
				format:        format,
				providerName:  v.GetString("provider"),
				output:        output,
				cache:         v.GetBool("cache"),
				traceEndpoint: v.GetString("trace-endpoint"),
				logLevel:      v.GetString("log-level"),
				logFormat:     v.GetString("log-format"),
			})
		},
	}

	cmd.Flags().String("contracts", defaultContractsPath, "observability contracts YAML file")
	cmd.Flags().String("config", defaultConfigPath, "telemetry config YAML file")
	cmd.Flags().String("from", "", "window start, RFC 3339 (default: now minus the first contract's window)")
	cmd.Flags().String("to", "", "window end, RFC 3339 (default: now)")
	cmd.Flags().String("spans", "", "validate offline against this span file instead of live providers")
	cmd.Flags().String("format", "auto", "span file format: auto, ndjson, stdouttrace, or otlp")
	cmd.Flags().String("provider", "", "validate against this configured provider only")
	cmd.Flags().String("output", "text", "output format: text, table, or json")
	cmd.Flags().Bool("cache", false, "reuse fetched spans across contracts with the same query")
	cmd.Flags().String("trace-endpoint", "", "export spancheck's own traces to this OTLP/HTTP endpoint (e.g. localhost:4318)")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, or error")
	cmd.Flags().String("log-format", "console", "log format: console or json")

	return cmd
}

// report is the JSON document written by --output json.
type report struct {
	RunID     string            `json:"runId"`
	Contracts string            `json:"contracts"`
	From      *time.Time        `json:"from,omitempty"`
	To        *time.Time        `json:"to,omitempty"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Results   []validate.Result `json:"results"`
}

func runValidate(ctx context.Context, w io.Writer, opts validateOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	shutdown, err := setupTracing(ctx, opts.traceEndpoint)
	if err != nil {
		return err
	}
	defer shutdown()

	file, err := contract.Load(opts.contractsPath)
	if err != nil {
		return err
	}

	if opts.output == "text" {
		_, _ = fmt.Fprintf(w, "Using contracts: %s\n", opts.contractsPath)
		if opts.spansPath != "" {
			_, _ = fmt.Fprintf(w, "Using spans    : %s\n", opts.spansPath)
		} else {
			_, _ = fmt.Fprintf(w, "Using config   : %s\n", opts.configPath)
		}
	}

	var cache *ristretto.Cache
	if opts.cache {
		cache, err = provider.NewCache()
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	providers, from, to, err := resolveProviders(opts, file, cache, logger)
	if err != nil {
		return err
	}

	var results []validate.Result
	for _, p := range providers {
		engine := validate.NewEngine(p)
		engine.Logger = logger
		pr := engine.Validate(ctx, file)
		if opts.output == "text" {
			writeText(w, p.Name(), pr)
		}
		results = append(results, pr...)
	}

	counts := validate.Summary(results)
	logger.Info("validation finished",
		zap.Int("providers", len(providers)),
		zap.Int("passed", counts.Passed),
		zap.Int("failed", counts.Failed))

	switch opts.output {
	case "table":
		writeTable(w, results)
	case "json":
		rep := report{
			RunID:     runID,
			Contracts: opts.contractsPath,
			Passed:    counts.Passed,
			Failed:    counts.Failed,
			Results:   results,
		}
		if !from.IsZero() {
			rep.From, rep.To = &from, &to
		}
		if rep.Results == nil {
			rep.Results = []validate.Result{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	default:
		_, _ = fmt.Fprintf(w, "\n%d passed, %d failed\n", counts.Passed, counts.Failed)
	}

	if !validate.AllPassed(results) {
		return errContractsFailed
	}
	return nil
}

// resolveProviders builds the providers to validate against and the shared
// window they are pinned to. A zero window means each contract uses its own.
// With a cache, fetches are memoised beneath the window so contracts sharing a
// query reuse one result.
func resolveProviders(opts validateOptions, file *contract.File, cache *ristretto.Cache, logger *zap.Logger) ([]provider.Provider, time.Time, time.Time, error) {
	cached := func(p provider.Provider) provider.Provider {
		if cache == nil {
			return p
		}
		return provider.NewCached(p, cache)
	}

	fallback := contract.DefaultWindowMinutes * time.Minute
	if len(file.Contracts) > 0 {
		fallback = file.Contracts[0].WindowDuration()
	}

	if opts.spansPath != "" {
		static, err := provider.LoadFile(offlineProviderName, opts.spansPath, opts.format, logger)
		if err != nil {
			return nil, time.Time{}, time.Time{}, err
		}
		from, to := opts.from, opts.to
		if from.IsZero() && to.IsZero() {
			from, to = telemetry.TimeRange(static.Spans())
			if from.IsZero() {
				return []provider.Provider{cached(static)}, time.Time{}, time.Time{}, nil
			}
		} else {
			from, to = window(from, to, fallback, time.Now())
		}
		return []provider.Provider{provider.NewWindowed(cached(static), from, to)}, from, to, nil
	}

	cfg, err := provider.LoadConfig(opts.configPath)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	live, err := buildProviders(cfg, opts.providerName, logger)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	from, to := window(opts.from, opts.to, fallback, time.Now())
	out := make([]provider.Provider, 0, len(live))
	for _, p := range live {
		out = append(out, provider.NewWindowed(cached(p), from, to))
	}
	return out, from, to, nil
}

// setupTracing installs a global tracer provider exporting over OTLP/HTTP when
// endpoint is set. The returned function flushes and shuts it down.
func setupTracing(ctx context.Context, endpoint string) (func(), error) {
	if endpoint == "" {
		return func() {}, nil
	}
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "spancheck"),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

func writeText(w io.Writer, providerName string, results []validate.Result) {
	_, _ = fmt.Fprintf(w, "\n=== Provider: %s ===\n", providerName)
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(w, "%s  [%s] %s\n", status, r.ContractName, r.Message)
		for _, d := range r.Details {
			_, _ = fmt.Fprintf(w, "      - %s\n", d)
		}
	}
}

func writeTable(w io.Writer, results []validate.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Provider", "Contract", "Status", "Message", "Details"})
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		t.AppendRow(table.Row{r.ProviderName, r.ContractName, status, r.Message, strings.Join(r.Details, "\n")})
	}
	counts := validate.Summary(results)
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d passed, %d failed", counts.Passed, counts.Failed), ""})
	t.Render()
}
