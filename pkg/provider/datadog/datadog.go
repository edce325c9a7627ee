// Datadog spans search adapter
// Renders translated filter conditions as a Datadog span query and maps search hits to spans
package datadog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/andrewh/spancheck/pkg/provider"
	"github.com/andrewh/spancheck/pkg/query"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"github.com/caarlos0/env/v11"
)

// Type is the telemetry config type name for this adapter.
const Type = "datadog"

const (
	DefaultAPIURL    = "https://api.datadoghq.com"
	DefaultEnvPrefix = "DD_"
	DefaultLimit     = 100

	searchPath = "/api/v2/spans/events/search"
)

// Config holds everything needed to query Datadog.
type Config struct {
	Name   string
	APIURL string
	APIKey string
	AppKey string
	Limit  int
	Client *http.Client
}

type credentials struct {
	APIKey string `env:"API_KEY,required"`
	AppKey string `env:"APP_KEY,required"`
}

// Provider queries the Datadog spans search API.
type Provider struct {
	cfg Config
}

// New builds a Provider, filling defaults for unset fields.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = Type
	}
	if cfg.APIKey == "" || cfg.AppKey == "" {
		return nil, provider.NewConfigError(cfg.Name, "API key and application key are required")
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

// FromConfig builds a Provider from telemetry config settings, reading keys
// from environ (the process environment when nil) under the env_prefix setting.
func FromConfig(pc provider.ProviderConfig, environ map[string]string) (*Provider, error) {
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
		Name:   pc.Name,
		APIURL: pc.Setting("api_url", DefaultAPIURL),
		APIKey: creds.APIKey,
		AppKey: creds.AppKey,
		Limit:  limit,
	})
}

func (p *Provider) Name() string { return p.cfg.Name }

type searchRequest struct {
	Data searchData `json:"data"`
}

type searchData struct {
	Type       string           `json:"type"`
	Attributes searchAttributes `json:"attributes"`
}

type searchAttributes struct {
	Filter searchFilter `json:"filter"`
	Page   searchPage   `json:"page"`
	Sort   string       `json:"sort"`
}

type searchFilter struct {
	Query string `json:"query"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type searchPage struct {
	Limit int `json:"limit"`
}

type searchResponse struct {
	Data []spanEvent `json:"data"`
}

type spanEvent struct {
	ID         string `json:"id"`
	Attributes struct {
		Service        string               `json:"service"`
		ResourceName   string               `json:"resource_name"`
		OperationName  string               `json:"operation_name"`
		TraceID        string               `json:"trace_id"`
		SpanID         string               `json:"span_id"`
		StartTimestamp time.Time            `json:"start_timestamp"`
		EndTimestamp   time.Time            `json:"end_timestamp"`
		Custom         telemetry.Attributes `json:"custom"`
		Attributes     telemetry.Attributes `json:"attributes"`
	} `json:"attributes"`
}

// FetchSpans runs one search over [from, to]. Pagination is not followed;
// at most Limit spans are returned.
func (p *Provider) FetchSpans(ctx context.Context, q string, from, to time.Time) ([]telemetry.Span, error) {
	body := searchRequest{Data: searchData{
		Type: "search_request",
		Attributes: searchAttributes{
			Filter: searchFilter{
				Query: BuildQuery(query.TranslateQuery(q)),
				From:  from.UTC().Format(time.RFC3339Nano),
				To:    to.UTC().Format(time.RFC3339Nano),
			},
			Page: searchPage{Limit: p.cfg.Limit},
			Sort: "timestamp",
		},
	}}

	headers := map[string]string{
		"DD-API-KEY":         p.cfg.APIKey,
		"DD-APPLICATION-KEY": p.cfg.AppKey,
	}

	var resp searchResponse
	if err := provider.PostJSON(ctx, p.cfg.Client, p.cfg.Name, p.cfg.APIURL+searchPath, headers, body, &resp); err != nil {
		return nil, err
	}

	spans := make([]telemetry.Span, 0, len(resp.Data))
	for _, ev := range resp.Data {
		spans = append(spans, ev.span())
	}
	return spans, nil
}

// FetchMetrics is not supported by this adapter and returns no points.
func (p *Provider) FetchMetrics(context.Context, string, time.Time, time.Time) ([]telemetry.MetricPoint, error) {
	return nil, nil
}

func (ev spanEvent) span() telemetry.Span {
	a := ev.Attributes

	attrs := a.Custom.Clone()
	for _, k := range a.Attributes.Keys() {
		v, _ := a.Attributes.Get(k)
		attrs.Set(k, v)
	}

	name := a.ResourceName
	if name == "" {
		name = a.OperationName
	}
	id := a.SpanID
	if id == "" {
		id = ev.ID
	}

	duration := a.EndTimestamp.Sub(a.StartTimestamp)
	if v, ok := attrs.Get("duration"); ok {
		if ns, ok := v.AsInt(); ok {
			duration = time.Duration(ns)
		}
	}

	return telemetry.Span{
		ID:         id,
		TraceID:    a.TraceID,
		Name:       name,
		Service:    a.Service,
		Duration:   duration,
		StartTime:  a.StartTimestamp,
		Attributes: attrs,
	}
}

// BuildQuery renders conditions in Datadog span search syntax. Name
// conditions become resource_name wildcards; other columns become facets.
func BuildQuery(conds []query.Condition) string {
	if len(conds) == 0 {
		return "*"
	}
	terms := make([]string, 0, len(conds))
	for _, c := range conds {
		switch {
		case c.Column == query.ColumnService:
			terms = append(terms, "service:"+escape(c.Value))
		case c.Op == query.OpContains:
			terms = append(terms, "resource_name:*"+escape(c.Value)+"*")
		default:
			terms = append(terms, "@"+query.AttributeKey(c.Column)+":"+escape(c.Value))
		}
	}
	return strings.Join(terms, " ")
}

var escaper = strings.NewReplacer(
	`\`, `\\`, ` `, `\ `, `:`, `\:`, `"`, `\"`,
	`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`,
	`{`, `\{`, `}`, `\}`, `*`, `\*`, `?`, `\?`,
)

func escape(v string) string {
	if v == "" {
		return `""`
	}
	return escaper.Replace(v)
}
