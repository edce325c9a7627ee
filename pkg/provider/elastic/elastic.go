// Elasticsearch adapter over an index of span records
// Translated conditions become a bool filter query; hits decode as span records
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/query"
	"github.com/andrewh/spancheck/pkg/spanfile"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/caarlos0/env/v11"
	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Type is the telemetry config type name for this adapter.
const Type = "elastic"

const (
	DefaultIndex     = "spans"
	DefaultSize      = 100
	DefaultEnvPrefix = "ELASTIC_"
)

// Config holds the connection and index settings.
type Config struct {
	Name      string
	Addresses []string
	Username  string
	Password  string
	Index     string
	Size      int
	Transport http.RoundTripper
	Logger    *zap.Logger
}

type credentials struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Provider searches a span index.
type Provider struct {
	name   string
	index  string
	size   int
	es     *elasticsearch.Client
	logger *zap.Logger
}

// New builds a Provider and its Elasticsearch client.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = Type
	}
	if len(cfg.Addresses) == 0 {
		return nil, provider.NewConfigError(cfg.Name, "at least one address is required")
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Transport == nil {
		cfg.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, &provider.ConfigError{Provider: cfg.Name, Err: fmt.Errorf("creating elasticsearch client: %w", err)}
	}

	return &Provider{name: cfg.Name, index: cfg.Index, size: cfg.Size, es: es, logger: cfg.Logger}, nil
}

// FromConfig builds a Provider from telemetry config settings. Credentials are
// optional and read from environ (the process environment when nil).
func FromConfig(pc provider.ProviderConfig, environ map[string]string, logger *zap.Logger) (*Provider, error) {
	addrs, err := pc.RequiredSetting("addresses")
	if err != nil {
		return nil, err
	}
	var creds credentials
	prefix := pc.Setting("env_prefix", DefaultEnvPrefix)
	if err := env.ParseWithOptions(&creds, env.Options{Prefix: prefix, Environment: environ}); err != nil {
		return nil, &provider.ConfigError{Provider: pc.Name, Err: err}
	}
	size, err := pc.IntSetting("size", DefaultSize)
	if err != nil {
		return nil, err
	}

	var addresses []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}

	return New(Config{
		Name:      pc.Name,
		Addresses: addresses,
		Username:  creds.Username,
		Password:  creds.Password,
		Index:     pc.Setting("index", DefaultIndex),
		Size:      size,
		Logger:    logger,
	})
}

func (p *Provider) Name() string { return p.name }

// Index returns the index searched by the provider.
func (p *Provider) Index() string { return p.index }

// BuildQuery renders conditions as a bool filter over span records, bounded
// to [from, to] on startTime. Service and name filters ignore case; attribute
// terms are exact because attribute fields may be mapped as numbers.
func BuildQuery(conds []query.Condition, from, to time.Time) map[string]any {
	filters := []any{
		map[string]any{"range": map[string]any{"startTime": map[string]any{
			"gte": from.UTC().Format(time.RFC3339Nano),
			"lte": to.UTC().Format(time.RFC3339Nano),
		}}},
	}
	for _, c := range conds {
		switch {
		case c.Column == query.ColumnService:
			filters = append(filters, map[string]any{"term": map[string]any{"service": map[string]any{
				"value":            c.Value,
				"case_insensitive": true,
			}}})
		case c.Op == query.OpContains:
			filters = append(filters, map[string]any{"wildcard": map[string]any{"name": map[string]any{
				"value":            "*" + escapeWildcard(c.Value) + "*",
				"case_insensitive": true,
			}}})
		default:
			field := "attributes." + query.AttributeKey(c.Column)
			filters = append(filters, map[string]any{"term": map[string]any{field: c.Value}})
		}
	}
	return map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": filters}},
		"sort":  []any{map[string]any{"startTime": "asc"}},
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string { return wildcardEscaper.Replace(s) }

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source spanfile.Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// FetchSpans searches the index, returning at most the configured size.
func (p *Provider) FetchSpans(ctx context.Context, q string, from, to time.Time) ([]telemetry.Span, error) {
	body, err := json.Marshal(BuildQuery(query.TranslateQuery(q), from, to))
	if err != nil {
		return nil, &provider.FetchError{Provider: p.name, Err: fmt.Errorf("encoding query: %w", err)}
	}

	res, err := p.es.Search(
		p.es.Search.WithContext(ctx),
		p.es.Search.WithIndex(p.index),
		p.es.Search.WithBody(bytes.NewReader(body)),
		p.es.Search.WithSize(p.size),
	)
	if err != nil {
		return nil, &provider.FetchError{Provider: p.name, Err: err}
	}
	defer res.Body.Close() //nolint:errcheck // response body

	if res.IsError() {
		return nil, &provider.FetchError{Provider: p.name, StatusCode: res.StatusCode, Err: fmt.Errorf("search failed: %s", res.String())}
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, &provider.FetchError{Provider: p.name, StatusCode: res.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	spans := make([]telemetry.Span, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		s := hit.Source.Span()
		if s.ID == "" {
			s.ID = hit.ID
		}
		spans = append(spans, s)
	}
	p.logger.Debug("elasticsearch search",
		zap.String("provider", p.name),
		zap.String("index", p.index),
		zap.Int("hits", len(spans)))
	return spans, nil
}

// FetchMetrics is not supported by this adapter and returns no points.
func (p *Provider) FetchMetrics(context.Context, string, time.Time, time.Time) ([]telemetry.MetricPoint, error) {
	return nil, nil
}
