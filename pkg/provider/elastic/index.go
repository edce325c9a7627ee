// Span index management: mapping bootstrap and bulk loading of span records
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/andrewh/spancheck/pkg/spanfile"
	"github.com/andrewh/spancheck/pkg/telemetry"
	"go.uber.org/zap"
)

// spanIndexMapping stores strings as keywords so term filters match exact values.
var spanIndexMapping = map[string]any{
	"mappings": map[string]any{
		"dynamic_templates": []any{
			map[string]any{"strings_as_keywords": map[string]any{
				"match_mapping_type": "string",
				"mapping":            map[string]any{"type": "keyword"},
			}},
		},
		"properties": map[string]any{
			"id":         map[string]any{"type": "keyword"},
			"traceId":    map[string]any{"type": "keyword"},
			"name":       map[string]any{"type": "keyword"},
			"service":    map[string]any{"type": "keyword"},
			"durationMs": map[string]any{"type": "double"},
			"startTime":  map[string]any{"type": "date"},
			"attributes": map[string]any{"type": "object"},
		},
	},
}

// EnsureIndex creates the span index with its mapping if it does not exist.
func (p *Provider) EnsureIndex(ctx context.Context) error {
	res, err := p.es.Indices.Exists([]string{p.index}, p.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", p.index, err)
	}
	res.Body.Close() //nolint:errcheck,gosec // empty HEAD body
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(spanIndexMapping)
	if err != nil {
		return fmt.Errorf("encoding index mapping: %w", err)
	}
	res, err = p.es.Indices.Create(
		p.index,
		p.es.Indices.Create.WithContext(ctx),
		p.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", p.index, err)
	}
	defer res.Body.Close() //nolint:errcheck // response body

	if res.IsError() {
		return fmt.Errorf("error response for index %s: %s", p.index, res.String())
	}
	p.logger.Info("created span index", zap.String("index", p.index))
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  struct {
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// IndexSpans bulk-writes spans as records, keyed by span ID when present,
// and refreshes the index so they are immediately searchable.
func (p *Provider) IndexSpans(ctx context.Context, spans []telemetry.Span) error {
	if len(spans) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, s := range spans {
		action := map[string]any{"index": map[string]any{}}
		if s.ID != "" {
			action["index"] = map[string]any{"_id": s.ID}
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(spanfile.NewRecord(s)); err != nil {
			return fmt.Errorf("encoding span %s: %w", s.ID, err)
		}
	}

	res, err := p.es.Bulk(
		&buf,
		p.es.Bulk.WithContext(ctx),
		p.es.Bulk.WithIndex(p.index),
		p.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk indexing: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck // response body

	if res.IsError() {
		return fmt.Errorf("bulk indexing: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, result := range item {
				if result.Error.Reason != "" {
					return fmt.Errorf("bulk indexing: status %d: %s", result.Status, result.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk indexing reported errors")
	}

	p.logger.Info("indexed spans", zap.String("index", p.index), zap.Int("spans", len(spans)))
	return nil
}
