// Static checks for contract files that catch mistakes before a backend is queried
package contract

import "fmt"

// Issue is one lint finding.
type Issue struct {
	Contract string
	Message  string
}

func (i Issue) String() string {
	if i.Contract == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Contract, i.Message)
}

// Lint reports structural problems in f. An empty result means the file is clean.
func Lint(f *File) []Issue {
	var issues []Issue
	if len(f.Contracts) == 0 {
		return []Issue{{Message: "no contracts defined"}}
	}
	seen := make(map[string]bool)

	for i, c := range f.Contracts {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("contracts[%d]", i)
			issues = append(issues, Issue{Contract: label, Message: "name is empty"})
		} else if seen[c.Name] {
			issues = append(issues, Issue{Contract: label, Message: "duplicate contract name"})
		}
		seen[c.Name] = true

		if c.Query == "" {
			issues = append(issues, Issue{Contract: label, Message: "query is empty"})
		}
		if c.Window != nil && c.Window.Minutes <= 0 {
			issues = append(issues, Issue{Contract: label, Message: fmt.Sprintf("window minutes must be positive, got %d", c.Window.Minutes)})
		}

		for j, es := range c.ExpectedSpans {
			span := es.Name
			if span == "" {
				span = fmt.Sprintf("expectedSpans[%d]", j)
				issues = append(issues, Issue{Contract: label, Message: span + ": name is empty"})
			}
			if es.MinCount != nil && *es.MinCount < 0 {
				issues = append(issues, Issue{Contract: label, Message: fmt.Sprintf("span %q: minCount must not be negative", span)})
			}
			if es.MaxLatencyMs != nil && *es.MaxLatencyMs < 0 {
				issues = append(issues, Issue{Contract: label, Message: fmt.Sprintf("span %q: maxLatencyMs must not be negative", span)})
			}
			for k, tag := range es.Tags {
				if tag.Key == "" {
					issues = append(issues, Issue{Contract: label, Message: fmt.Sprintf("span %q: tags[%d] key is empty", span, k)})
				}
			}
		}
	}

	return issues
}
