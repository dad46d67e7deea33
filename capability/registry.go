package capability

import (
	"fmt"
	"strings"

	"github.com/contractguard/contractguard/core"
)

// Registry is the immutable lookup table of capabilities. Initialization
// validates names are unique and tool lists non-empty; afterwards the
// registry is read-only and safe for unsynchronized concurrent use.
type Registry struct {
	ordered []core.Capability
	byName  map[string]core.Capability
}

// NewRegistry builds a registry from explicit descriptors.
func NewRegistry(caps ...core.Capability) (*Registry, error) {
	r := &Registry{byName: make(map[string]core.Capability, len(caps))}
	for _, c := range caps {
		if c.Name == "" {
			return nil, fmt.Errorf("capability with empty name")
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate capability %q", c.Name)
		}
		if len(c.Tools) == 0 {
			return nil, fmt.Errorf("capability %q permits no tools", c.Name)
		}
		r.byName[c.Name] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// Get looks up a capability by name.
func (r *Registry) Get(name string) (core.Capability, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns the capabilities in registration order. The slice is a copy.
func (r *Registry) All() []core.Capability {
	out := make([]core.Capability, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Catalog renders the compact natural-language catalog handed to the routing
// reasoning call: one line per capability, name then description.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, c := range r.ordered {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	return b.String()
}

// Default returns the standard ContractGuard registry: retrieval Q&A (the
// routing fallback), risk analysis, document comparison and reporting.
func Default() *Registry {
	r, err := NewRegistry(
		core.Capability{
			Name:        core.CapabilityQA,
			Description: "Answer questions about contract contents by retrieving relevant clauses and citing their sources. The default for general, ambiguous or off-topic queries.",
			Tools:       []string{"search_contracts", "get_contract_context", "list_documents"},
		},
		core.Capability{
			Name:         core.CapabilityRisk,
			Description:  "Identify risky clauses, unusual terms and one-sided obligations in a contract and explain their severity.",
			Tools:        []string{"search_contracts", "analyze_clause", "identify_risks", "extract_obligations"},
			MinDocuments: 1,
		},
		core.Capability{
			Name:         core.CapabilityCompare,
			Description:  "Compare two or more contracts side by side, highlighting differing terms, missing clauses and divergent obligations.",
			Tools:        []string{"search_contracts", "get_contract_context", "generate_comparison_report"},
			MinDocuments: 2,
		},
		core.Capability{
			Name:         core.CapabilityReport,
			Description:  "Produce structured summaries and written reports about a contract or an analysis that was already performed.",
			Tools:        []string{"search_contracts", "generate_summary", "generate_risk_report"},
			MinDocuments: 1,
		},
	)
	if err != nil {
		// The default table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}
