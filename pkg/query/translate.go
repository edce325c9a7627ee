// Backend-neutral translation of filter pairs into column conditions
// Live-backend adapters render these conditions in their own query language
package query

import "strings"

// Op is the comparison a backend should apply to a column.
type Op string

const (
	OpEquals   Op = "="
	OpContains Op = "contains"
)

// Well-known columns produced by Translate.
const (
	ColumnService = "service.name"
	ColumnName    = "name"

	// AttributePrefix marks columns that address span attributes.
	AttributePrefix = "attributes."
)

// Condition is one translated filter term.
type Condition struct {
	Column string
	Op     Op
	Value  string
}

// Translate maps pairs to backend conditions using the shared key remapping:
// service and service.name address the service column; operation_name,
// operation.name and name address the span name with a substring match; any
// other dotted key is kept as-is and bare keys are prefixed with "attributes.".
func Translate(pairs []Pair) []Condition {
	conds := make([]Condition, 0, len(pairs))
	for _, p := range pairs {
		conds = append(conds, translatePair(p))
	}
	return conds
}

// TranslateQuery parses q and translates it in one step.
func TranslateQuery(q string) []Condition {
	return Translate(Parse(q))
}

func translatePair(p Pair) Condition {
	key := strings.TrimSpace(p.Key)
	switch strings.ToLower(key) {
	case "service", "service.name":
		return Condition{Column: ColumnService, Op: OpEquals, Value: p.Value}
	case "operation_name", "operation.name", "name":
		return Condition{Column: ColumnName, Op: OpContains, Value: p.Value}
	}
	if strings.Contains(key, ".") {
		return Condition{Column: key, Op: OpEquals, Value: p.Value}
	}
	return Condition{Column: AttributePrefix + key, Op: OpEquals, Value: p.Value}
}

// AttributeKey returns the attribute key addressed by a column, stripping the
// "attributes." prefix when present.
func AttributeKey(column string) string {
	return strings.TrimPrefix(column, AttributePrefix)
}
