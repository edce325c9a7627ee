// Validation results and run summaries
package validate

// Result is the outcome of one contract against one provider.
type Result struct {
	ProviderName string   `json:"provider"`
	ContractName string   `json:"contract"`
	Passed       bool     `json:"passed"`
	Message      string   `json:"message"`
	Details      []string `json:"details"`
}

const passedMessage = "All expected spans/tags satisfied."

// Counts tallies passed and failed results.
type Counts struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Total returns the number of results counted.
func (c Counts) Total() int { return c.Passed + c.Failed }

// Summary counts passed and failed results.
func Summary(results []Result) Counts {
	var c Counts
	for _, r := range results {
		if r.Passed {
			c.Passed++
		} else {
			c.Failed++
		}
	}
	return c
}

// AllPassed reports whether every result passed. An empty run passes.
func AllPassed(results []Result) bool {
	return Summary(results).Failed == 0
}
