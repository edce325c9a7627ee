// Observability contract model: expected spans, tags, and query windows
// Loaded from camelCase YAML once per run and never mutated afterwards
package contract

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultWindowMinutes is the query window applied when a contract omits one.
const DefaultWindowMinutes = 15

// File is the top-level contracts document.
type File struct {
	Version   string     `yaml:"version"`
	Contracts []Contract `yaml:"contracts"`
}

// Contract declares the spans a system is expected to emit for a query.
type Contract struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description,omitempty"`
	Query         string         `yaml:"query"`
	Window        *TimeWindow    `yaml:"window,omitempty"`
	ExpectedSpans []ExpectedSpan `yaml:"expectedSpans"`
}

// TimeWindow is the lookback period for a contract's query.
type TimeWindow struct {
	Minutes int `yaml:"minutes"`
}

// UnmarshalYAML fills Minutes with the default when the key is absent.
func (w *TimeWindow) UnmarshalYAML(node *yaml.Node) error {
	type plain TimeWindow
	raw := plain{Minutes: DefaultWindowMinutes}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*w = TimeWindow(raw)
	return nil
}

// ExpectedSpan is one span expectation within a contract.
type ExpectedSpan struct {
	Name         string        `yaml:"name"`
	Service      string        `yaml:"service,omitempty"`
	MinCount     *int          `yaml:"minCount,omitempty"`
	MaxLatencyMs *int          `yaml:"maxLatencyMs,omitempty"`
	Tags         []ExpectedTag `yaml:"tags,omitempty"`
}

// ExpectedTag is an attribute expectation on an expected span.
// Expected and ExpectedAnyOf may both be set and are checked independently.
type ExpectedTag struct {
	Key           string   `yaml:"key"`
	Expected      *string  `yaml:"expected,omitempty"`
	ExpectedAnyOf []string `yaml:"expectedAnyOf,omitempty"`
	Required      *bool    `yaml:"required,omitempty"`
}

// IsRequired reports whether the tag must be present. Tags are required
// unless explicitly marked otherwise.
func (t ExpectedTag) IsRequired() bool {
	return t.Required == nil || *t.Required
}

// WindowMinutes returns the contract's window in minutes, defaulting to 15.
func (c Contract) WindowMinutes() int {
	if c.Window == nil {
		return DefaultWindowMinutes
	}
	return c.Window.Minutes
}

// WindowDuration returns the contract's window as a duration.
func (c Contract) WindowDuration() time.Duration {
	return time.Duration(c.WindowMinutes()) * time.Minute
}

// ServiceLabel returns the expected service, or "*" when any service is accepted.
func (s ExpectedSpan) ServiceLabel() string {
	if s.Service == "" {
		return "*"
	}
	return s.Service
}

// Load reads and parses a contracts file. A missing file is an error; an
// empty document yields an empty File with version "1".
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied contracts path is expected
	if err != nil {
		return nil, fmt.Errorf("reading contracts: %w", err)
	}
	return Parse(data)
}

// Parse decodes a contracts document from YAML.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing contracts: %w", err)
	}
	if f.Version == "" {
		f.Version = "1"
	}
	return f, nil
}

// Find returns the contract with the given name.
func (f *File) Find(name string) (Contract, bool) {
	for _, c := range f.Contracts {
		if c.Name == name {
			return c, true
		}
	}
	return Contract{}, false
}

// Ptr returns a pointer to v, for building optional contract fields in code.
func Ptr[T any](v T) *T {
	return &v
}
