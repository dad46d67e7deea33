package core

// Capability is a static descriptor binding a routable name to the ordered
// set of tools it may invoke. Capabilities are immutable after registry
// initialization; they are looked up by name, never mutated at runtime.
type Capability struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`

	// MinDocuments is the smallest document scope this capability can work
	// with. A session below it makes the capability report insufficient
	// scope during routing.
	MinDocuments int `json:"min_documents,omitempty"`
}

// Permits reports whether the named tool is in this capability's permitted
// set. The dispatcher rejects anything outside it with ErrUnauthorized.
func (c Capability) Permits(tool string) bool {
	for _, t := range c.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// Capability names routable by the orchestrator. QA is the deterministic
// fallback for off-topic, ambiguous and degraded queries.
const (
	CapabilityQA      = "retrieval_qa"
	CapabilityRisk    = "risk_analysis"
	CapabilityCompare = "comparison"
	CapabilityReport  = "reporting"
)
