// record command: snapshots spans from one provider into an NDJSON file
// for later offline validation, optionally mirroring them into Elasticsearch
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrewh/spancheck/pkg/logging"
	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/provider/elastic"
	"github.com/andrewh/spancheck/pkg/spanfile"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type recordOptions struct {
	configPath   string
	providerName string
	query        string
	from, to     string
	out          string
	elasticSink  string
	logLevel     string
	logFormat    string
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record spans from a provider to an NDJSON file",
		Long: "Record spans from a provider to an NDJSON file.\n\n" +
			"The file can be validated later with 'spancheck validate --spans'.\n" +
			"Use --out - to write to stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := flagEnv(cmd.Flags())
			if err != nil {
				return err
			}
			opts := recordOptions{
				configPath:   v.GetString("config"),
				providerName: v.GetString("provider-name"),
				query:        v.GetString("query"),
				from:         v.GetString("from"),
				to:           v.GetString("to"),
				out:          v.GetString("out"),
				elasticSink:  v.GetString("elastic-sink"),
				logLevel:     v.GetString("log-level"),
				logFormat:    v.GetString("log-format"),
			}
			if opts.providerName == "" || opts.out == "" || opts.from == "" || opts.to == "" {
				return fmt.Errorf("--provider-name, --from, --to, and --out are required\n\n" +
					`Usage: spancheck record --config <path> --provider-name <name> --query "..." --from <RFC3339> --to <RFC3339> --out <file.ndjson>`)
			}
			return runRecord(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().String("config", defaultConfigPath, "telemetry config YAML file")
	cmd.Flags().String("provider-name", "", "configured provider to record from")
	cmd.Flags().String("query", "", "filter query selecting the spans to record")
	cmd.Flags().String("from", "", "window start, RFC 3339")
	cmd.Flags().String("to", "", "window end, RFC 3339")
	cmd.Flags().String("out", "", "output NDJSON file, or - for stdout")
	cmd.Flags().String("elastic-sink", "", "also index the recorded spans into this configured elastic provider")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, or error")
	cmd.Flags().String("log-format", "console", "log format: console or json")

	return cmd
}

func runRecord(ctx context.Context, w io.Writer, opts recordOptions) error {
	from, err := parseTime("from", opts.from)
	if err != nil {
		return err
	}
	to, err := parseTime("to", opts.to)
	if err != nil {
		return err
	}
	if from.After(to) {
		return fmt.Errorf("--from must not be after --to")
	}

	logger, err := logging.New(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := provider.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	sources, err := buildProviders(cfg, opts.providerName, logger)
	if err != nil {
		return fmt.Errorf("%w in %s", err, opts.configPath)
	}
	source := sources[0]

	spans, err := source.FetchSpans(ctx, opts.query, from, to)
	if err != nil {
		return fmt.Errorf("fetching spans from %s: %w", source.Name(), err)
	}
	logger.Info("fetched spans",
		zap.String("provider", source.Name()),
		zap.String("query", opts.query),
		zap.Int("spans", len(spans)))

	if err := writeSpans(w, opts.out, spans); err != nil {
		return err
	}
	if opts.out != "-" {
		_, _ = fmt.Fprintf(w, "Wrote %d spans to %s\n", len(spans), opts.out)
	}

	if opts.elasticSink != "" {
		if err := sinkSpans(ctx, cfg, opts.elasticSink, spans, logger); err != nil {
			return err
		}
		if opts.out != "-" {
			_, _ = fmt.Fprintf(w, "Indexed %d spans into %s\n", len(spans), opts.elasticSink)
		}
	}
	return nil
}

func writeSpans(stdout io.Writer, path string, spans []telemetry.Span) error {
	if path == "-" {
		return spanfile.Write(stdout, spans)
	}
	f, err := os.Create(path) //nolint:gosec // user-supplied output path is expected
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := spanfile.Write(f, spans); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// sinkSpans indexes spans into the elastic provider called name, creating
// its index first when missing.
func sinkSpans(ctx context.Context, cfg *provider.Config, name string, spans []telemetry.Span, logger *zap.Logger) error {
	pc, ok := cfg.Find(name)
	if !ok {
		return fmt.Errorf("elastic sink %q not found in telemetry config", name)
	}
	if !strings.EqualFold(pc.Type, elastic.Type) {
		return provider.NewConfigError(pc.Name, "elastic sink must have type %q, got %q", elastic.Type, pc.Type)
	}
	sink, err := elastic.FromConfig(pc, nil, logger)
	if err != nil {
		return err
	}
	if err := sink.EnsureIndex(ctx); err != nil {
		return err
	}
	if err := sink.IndexSpans(ctx, spans); err != nil {
		return err
	}
	logger.Info("indexed spans",
		zap.String("provider", pc.Name),
		zap.String("index", sink.Index()),
		zap.Int("spans", len(spans)))
	return nil
}
