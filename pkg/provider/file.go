// File-backed provider: a span file read once into a Static provider
package provider

import (
	"github.com/andrewh/spancheck/pkg/spanfile"
	"go.uber.org/zap"
)

// DefaultFileName is used when LoadFile is given an empty name.
const DefaultFileName = "file"

// LoadFile reads the span file at path and serves it as a Static provider.
// Malformed NDJSON lines are skipped and counted in the log.
func LoadFile(name, path string, format spanfile.Format, logger *zap.Logger) (*Static, error) {
	if name == "" {
		name = DefaultFileName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	res, err := spanfile.ReadFile(path, format)
	if err != nil {
		return nil, &ConfigError{Provider: name, Err: err}
	}
	if res.Skipped > 0 {
		logger.Warn("skipped malformed span records",
			zap.String("provider", name),
			zap.String("path", path),
			zap.Int("skipped", res.Skipped))
	}
	logger.Debug("loaded span file",
		zap.String("provider", name),
		zap.String("path", path),
		zap.Int("spans", len(res.Spans)))

	return NewStatic(name, res.Spans), nil
}
