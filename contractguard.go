// Package contractguard provides a high-level façade over the task engine
// and its collaborators (sessions, retrieval, tool dispatch, routing and
// generation) for constructing contract-analysis agents. Most applications
// interact with this package by:
//  1. Creating a ContractGuard via New() (optionally overriding the default
//     in-memory services and the mock generator)
//  2. Ingesting contract documents into the index
//  3. Asking questions synchronously (Ask) or submitting long-running tasks
//     (Submit/Execute) and watching their progress events
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable task store and
// a real model provider.
package contractguard

import (
	"context"

	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/dispatch"
	"github.com/contractguard/contractguard/engine"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/model"
	"github.com/contractguard/contractguard/retrieval"
	"github.com/contractguard/contractguard/router"
	"github.com/contractguard/contractguard/session"
	"github.com/contractguard/contractguard/store"
	"github.com/contractguard/contractguard/tool"
)

// Options configures the ContractGuard instance.
type Options struct {
	// Generator produces prose for routing, analysis and synthesis.
	// Defaults to a mock generator suitable for tests and local runs.
	Generator core.Generator

	// Stores (default to in-memory implementations if not provided).
	SessionStore core.SessionStore
	TaskStore    core.TaskStore

	// Index holds ingested documents and serves retrieval. Defaults to an
	// empty in-memory index.
	Index *retrieval.InMemoryIndex

	// Logger (defaults to a stderr text logger at info level).
	Logger *logging.ContractGuardLogger

	// Engine tuning, applied on top of engine defaults.
	EngineOptions []func(o *engine.Options)

	// Dispatch tuning, applied on top of dispatch defaults.
	DispatchOptions []func(o *dispatch.Options)
}

// ContractGuard aggregates the engine and the services it runs on.
type ContractGuard struct {
	opts       Options
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	registry   *capability.Registry
	index      *retrieval.InMemoryIndex
	sessions   core.SessionStore
}

// New creates a ContractGuard instance with optional overrides. Any unset
// service is initialized with an in-memory implementation, and the full
// tool set is registered on the dispatcher.
func New(optFns ...func(o *Options)) (*ContractGuard, error) {
	opts := Options{
		Generator:    model.NewMockGenerator("mock", "local"),
		SessionStore: session.NewInMemoryStore(),
		TaskStore:    store.NewInMemoryStore(),
		Index:        retrieval.NewInMemoryIndex(),
		Logger:       logging.NewLogger(logging.DefaultLoggerConfig()),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	dispatcher := dispatch.NewDispatcher(func(o *dispatch.Options) {
		o.Logger = opts.Logger.WithComponent("dispatch")
		for _, fn := range opts.DispatchOptions {
			fn(o)
		}
	})
	if err := dispatcher.Register(dispatch.ClassSearch,
		tool.NewSearchContracts(opts.Index),
		tool.NewGetContractContext(opts.Index, opts.Index),
		tool.NewListDocuments(opts.Index)); err != nil {
		return nil, err
	}
	if err := dispatcher.Register(dispatch.ClassGeneration,
		tool.NewAnalyzeClause(opts.Generator),
		tool.NewIdentifyRisks(opts.Generator),
		tool.NewExtractObligations(opts.Generator),
		tool.NewGenerateSummary(opts.Generator),
		tool.NewGenerateRiskReport(opts.Generator),
		tool.NewGenerateComparisonReport(opts.Generator)); err != nil {
		return nil, err
	}

	registry := capability.Default()
	rt := router.New(opts.Generator, registry, func(o *router.Options) {
		o.Logger = opts.Logger.WithComponent("router")
	})

	eng, err := engine.New(engine.Deps{
		Tasks:      opts.TaskStore,
		Sessions:   opts.SessionStore,
		Dispatcher: dispatcher,
		Router:     rt,
		Registry:   registry,
		Generator:  opts.Generator,
	}, append([]func(o *engine.Options){func(o *engine.Options) {
		o.Logger = opts.Logger.WithComponent("engine")
	}}, opts.EngineOptions...)...)
	if err != nil {
		return nil, err
	}

	return &ContractGuard{
		opts:       opts,
		engine:     eng,
		dispatcher: dispatcher,
		registry:   registry,
		index:      opts.Index,
		sessions:   opts.SessionStore,
	}, nil
}

// Engine exposes the underlying task engine, e.g. for mounting an HTTP
// transport on top.
func (g *ContractGuard) Engine() *engine.Engine { return g.engine }

// Dispatcher exposes the tool dispatcher for direct tool invocation.
func (g *ContractGuard) Dispatcher() *dispatch.Dispatcher { return g.dispatcher }

// Registry exposes the capability catalog.
func (g *ContractGuard) Registry() *capability.Registry { return g.registry }

// Sessions exposes the session store.
func (g *ContractGuard) Sessions() core.SessionStore { return g.sessions }

// AddDocument ingests a contract into the index and makes it searchable.
func (g *ContractGuard) AddDocument(meta core.DocumentMeta, fragments ...retrieval.Fragment) {
	g.index.AddDocument(meta, fragments...)
}

// CreateSession starts a conversation scoped to the given documents.
func (g *ContractGuard) CreateSession(userID string, documents []string) (*core.Session, error) {
	return g.sessions.Create(userID, documents)
}

// Ask answers a question synchronously within a session, grounding the reply
// in retrieved contract fragments.
func (g *ContractGuard) Ask(ctx context.Context, sessionID, query string) (core.Message, error) {
	return g.engine.Answer(ctx, sessionID, query)
}

// Submit creates a long-running task bound to a session without starting it.
func (g *ContractGuard) Submit(ctx context.Context, sessionID string, input core.TaskInput) (*core.Task, error) {
	return g.engine.Submit(ctx, sessionID, input)
}

// Execute starts a submitted task. Progress is observable through Watch and
// the task store.
func (g *ContractGuard) Execute(ctx context.Context, taskID string) (*core.Task, error) {
	return g.engine.Execute(ctx, taskID)
}

// Watch subscribes to a task's progress events. The returned cancel func
// must be called when the caller stops listening.
func (g *ContractGuard) Watch(taskID string) (<-chan core.ProgressEvent, func()) {
	return g.engine.Publisher().Subscribe(taskID)
}

// Close waits for running task executors to settle.
func (g *ContractGuard) Close(ctx context.Context) error {
	return g.engine.Close(ctx)
}
