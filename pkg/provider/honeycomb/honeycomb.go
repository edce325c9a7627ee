// Honeycomb query adapter
// Sends translated filter conditions as Honeycomb query filters and maps result rows to spans
package honeycomb

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/query"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/caarlos0/env/v11"
)

// Type is the telemetry config type name for this adapter.
const Type = "honeycomb"

const (
	DefaultAPIURL    = "https://api.honeycomb.io"
	DefaultEnvPrefix = "HONEYCOMB_"
	DefaultLimit     = 100
)

// Config holds everything needed to query one Honeycomb dataset.
type Config struct {
	Name    string
	APIURL  string
	APIKey  string
	Dataset string
	Limit   int
	Client  *http.Client
}

type credentials struct {
	APIKey string `env:"API_KEY,required"`
}

// Provider runs queries against a Honeycomb dataset.
type Provider struct {
	cfg Config
}

// New builds a Provider, filling defaults for unset fields.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = Type
	}
	if cfg.APIKey == "" {
		return nil, provider.NewConfigError(cfg.Name, "API key is required")
	}
	if cfg.Dataset == "" {
		return nil, provider.NewConfigError(cfg.Name, "dataset is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Client == nil {
		cfg.Client = provider.NewHTTPClient()
	}
	return &Provider{cfg: cfg}, nil
}

// FromConfig builds a Provider from telemetry config settings, reading the
// API key from environ (the process environment when nil).
func FromConfig(pc provider.ProviderConfig, environ map[string]string) (*Provider, error) {
	dataset, err := pc.RequiredSetting("dataset")
	if err != nil {
		return nil, err
	}
	var creds credentials
	prefix := pc.Setting("env_prefix", DefaultEnvPrefix)
	if err := env.ParseWithOptions(&creds, env.Options{Prefix: prefix, Environment: environ}); err != nil {
		return nil, &provider.ConfigError{Provider: pc.Name, Err: err}
	}
	limit, err := pc.IntSetting("limit", DefaultLimit)
	if err != nil {
		return nil, err
	}
	return New(Config{
		Name:    pc.Name,
		APIURL:  pc.Setting("api_url", DefaultAPIURL),
		APIKey:  creds.APIKey,
		Dataset: dataset,
		Limit:   limit,
	})
}

func (p *Provider) Name() string { return p.cfg.Name }

type queryRequest struct {
	StartTime         int64    `json:"start_time"`
	EndTime           int64    `json:"end_time"`
	Filters           []filter `json:"filters"`
	FilterCombination string   `json:"filter_combination"`
	Limit             int      `json:"limit"`
	Orders            []order  `json:"orders"`
}

type filter struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  string `json:"value"`
}

type order struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type queryResponse struct {
	Results []struct {
		Data *telemetry.Attributes `json:"data"`
	} `json:"results"`
}

// filters converts translated conditions into Honeycomb query filters.
func filters(conds []query.Condition) []filter {
	out := make([]filter, 0, len(conds))
	for _, c := range conds {
		out = append(out, filter{Column: c.Column, Op: string(c.Op), Value: c.Value})
	}
	return out
}

// FetchSpans runs one query over [from, to]; Honeycomb takes whole seconds.
func (p *Provider) FetchSpans(ctx context.Context, q string, from, to time.Time) ([]telemetry.Span, error) {
	body := queryRequest{
		StartTime:         from.Unix(),
		EndTime:           to.Unix(),
		Filters:           filters(query.TranslateQuery(q)),
		FilterCombination: "AND",
		Limit:             p.cfg.Limit,
		Orders:            []order{{Column: "timestamp", Order: "descending"}},
	}
	endpoint := p.cfg.APIURL + "/1/queries/" + url.PathEscape(p.cfg.Dataset) + "/run"
	headers := map[string]string{"X-Honeycomb-Team": p.cfg.APIKey}

	var resp queryResponse
	if err := provider.PostJSON(ctx, p.cfg.Client, p.cfg.Name, endpoint, headers, body, &resp); err != nil {
		return nil, err
	}

	spans := make([]telemetry.Span, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Data == nil {
			continue
		}
		spans = append(spans, rowSpan(*r.Data))
	}
	return spans, nil
}

// FetchMetrics is not supported by this adapter and returns no points.
func (p *Provider) FetchMetrics(context.Context, string, time.Time, time.Time) ([]telemetry.MetricPoint, error) {
	return nil, nil
}

// rowSpan maps a result row to a span; every column is kept as an attribute.
func rowSpan(row telemetry.Attributes) telemetry.Span {
	s := telemetry.Span{
		ID:         firstString(row, "trace.span_id", "span_id", "id"),
		TraceID:    firstString(row, "trace.trace_id", "trace_id"),
		Name:       firstString(row, "name", "span.name"),
		Service:    firstString(row, "service.name", "service_name"),
		Attributes: row,
	}
	for _, k := range []string{"duration_ms", "duration"} {
		if ms, ok := number(row, k); ok {
			s.Duration = time.Duration(ms * float64(time.Millisecond))
			break
		}
	}
	if ts := firstString(row, "time", "timestamp"); ts != "" {
		if t, ok := telemetry.ParseTime(ts); ok {
			s.StartTime = t
		}
	}
	return s
}

func firstString(row telemetry.Attributes, keys ...string) string {
	for _, k := range keys {
		if v, ok := row.Get(k); ok {
			if s, ok := v.AsString(); ok {
				return s
			}
		}
	}
	return ""
}

func number(row telemetry.Attributes, key string) (float64, bool) {
	v, ok := row.Get(key)
	if !ok {
		return 0, false
	}
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if i, ok := v.AsInt(); ok {
		return float64(i), true
	}
	return 0, false
}
