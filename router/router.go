// Package router selects the capability that should answer a query. It asks
// a reasoning model to pick from the capability catalog and falls back to
// retrieval QA whenever the choice is unusable.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/logging"
)

const routingSystem = "You route user questions about contracts to the " +
	"single best capability. Reply with the capability name only, nothing else."

// Options configures the router.
type Options struct {
	Logger *logging.ContractGuardLogger
}

// Decision is the outcome of routing one query.
type Decision struct {
	Capability core.Capability
	// Degraded is set when the preferred capability could not serve the
	// session (not enough documents in scope) and the query was re-routed
	// to retrieval QA.
	Degraded bool
	// Reason records why the decision deviated from the model's first
	// choice, empty otherwise.
	Reason string
}

// Router picks capabilities for queries using a reasoning model over the
// registry catalog.
type Router struct {
	gen      core.Generator
	registry *capability.Registry
	logger   *logging.ContractGuardLogger
}

// New creates a router over the given generator and capability registry.
func New(gen core.Generator, registry *capability.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{
		Logger: logging.NewLogger(logging.DefaultLoggerConfig()).WithComponent("router"),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{gen: gen, registry: registry, logger: opts.Logger}
}

// Route decides which capability should answer the query for this session.
//
// The model is asked once. An unparseable or failed reply falls back to
// retrieval QA. A parseable choice whose document requirements exceed the
// session's scope is re-routed to retrieval QA exactly once, with the
// decision marked degraded so the answer can say so.
func (r *Router) Route(ctx context.Context, session *core.Session, query string) Decision {
	fallback, _ := r.registry.Get(core.CapabilityQA)

	prompt := fmt.Sprintf(
		"Capabilities:\n%s\nDocuments in scope: %d\n\nQuestion: %s\n\nCapability:",
		r.registry.Catalog(), len(session.Documents()), query,
	)

	reply, err := r.gen.Generate(ctx, core.GenerateRequest{System: routingSystem, Prompt: prompt})
	if err != nil {
		r.logger.Warn("routing call failed, using retrieval QA", "error", err)
		return Decision{Capability: fallback, Reason: "routing call failed"}
	}

	chosen, ok := r.parse(reply)
	if !ok {
		r.logger.Warn("unparseable routing reply, using retrieval QA", "reply", reply)
		return Decision{Capability: fallback, Reason: "unrecognized capability"}
	}

	if docs := len(session.Documents()); docs < chosen.MinDocuments {
		r.logger.Info("re-routing to retrieval QA",
			"chosen", chosen.Name, "needs", chosen.MinDocuments, "have", docs)
		return Decision{
			Capability: fallback,
			Degraded:   true,
			Reason:     fmt.Sprintf("%s needs %d documents, session has %d", chosen.Name, chosen.MinDocuments, docs),
		}
	}

	return Decision{Capability: chosen}
}

// parse extracts a registered capability name from a model reply. The reply
// may carry whitespace or surrounding prose; the first registered name found
// wins.
func (r *Router) parse(reply string) (core.Capability, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(reply))
	if c, ok := r.registry.Get(cleaned); ok {
		return c, true
	}
	for _, c := range r.registry.All() {
		if strings.Contains(cleaned, c.Name) {
			return c, true
		}
	}
	return core.Capability{}, false
}
