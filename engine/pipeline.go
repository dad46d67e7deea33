package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/tool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline step names. Step results are persisted under these names; a
// resumed task skips any step that already has a result.
const (
	StepLoadScope  = "load_scope"
	StepRetrieve   = "retrieve"
	StepAnalyze    = "analyze"
	StepSynthesize = "synthesize"
)

var pipeline = []string{StepLoadScope, StepRetrieve, StepAnalyze, StepSynthesize}

const answerSystem = "You are a contract analysis assistant. Answer using " +
	"only the supplied contract material and say so when it does not cover " +
	"the question."

// scopeDecision is the persisted output of the load_scope step. It pins the
// routing decision and document scope, so a resumed task keeps the choice
// made on its first run.
type scopeDecision struct {
	Capability string   `json:"capability"`
	Degraded   bool     `json:"degraded,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Documents  []string `json:"documents,omitempty"`
}

// run drives a task through the pipeline. It owns the task's revision from
// the Running transition onward; any revision conflict means another writer
// interfered and the executor stands down.
func (e *Engine) run(task *core.Task, ctl *control) {
	defer e.wg.Done()
	defer e.dropControl(task.ID)

	ctx, span := e.opts.Tracer.Start(context.Background(), "task.run",
		trace.WithAttributes(attribute.String("task.id", task.ID)))
	defer span.End()
	logger := e.opts.Logger.WithSession(task.SessionID, task.ID)

	for i, step := range pipeline {
		if _, done := task.CompletedStep(step); done {
			continue
		}
		if ctl.cancel.Load() {
			e.settle(ctx, task, core.TaskCancelled, "", logger)
			return
		}
		if ctl.pause.Load() {
			e.settle(ctx, task, core.TaskPaused, "", logger)
			return
		}

		result, err := e.runStep(ctx, task, step)
		if err != nil {
			logger.Error("task step failed", "step", step, "error", err)
			e.settle(ctx, task, core.TaskFailed, err.Error(), logger)
			return
		}
		result.Name = step
		result.CompletedAt = time.Now().UTC()
		task.Steps = append(task.Steps, result)
		task.Progress = i + 1

		if step == StepSynthesize {
			break
		}
		rev := task.Revision
		if err := e.deps.Tasks.Update(ctx, task, rev); err != nil {
			logger.Error("lost task revision race, stopping executor", "error", err)
			return
		}
		e.publish(core.NewProgressEvent(task.ID, step, task.Progress*25))
	}

	task.Result = e.buildResult(task)
	e.settle(ctx, task, core.TaskCompleted, "", logger)
}

// settle persists the task's closing (or paused) state and publishes the
// matching event. Completion also appends the answer to the session.
func (e *Engine) settle(ctx context.Context, task *core.Task, state core.TaskState, errMsg string, logger *logging.ContractGuardLogger) {
	prior := task.State
	task.State = state
	task.Error = errMsg
	rev := task.Revision
	if err := e.deps.Tasks.Update(ctx, task, rev); err != nil {
		logger.Error("failed to persist task state", "state", state, "error", err)
		return
	}
	logger.LogTaskTransition(task.ID, string(prior), string(state), task.Revision)

	if state == core.TaskPaused {
		e.publish(core.NewProgressEvent(task.ID, "paused", task.Progress*25))
		return
	}
	e.publishTerminal(task)

	if state == core.TaskCompleted && task.Result != nil {
		msg := core.NewMessage(core.RoleAgent, task.Result.Answer)
		msg.Sources = task.Result.Sources
		if _, err := e.deps.Sessions.Append(task.SessionID, msg); err != nil {
			logger.Warn("failed to append task answer to session", "error", err)
		}
	}
}

// buildResult assembles the terminal payload from persisted step results.
func (e *Engine) buildResult(task *core.Task) *core.TaskResult {
	result := &core.TaskResult{Capability: core.CapabilityQA}
	if scope, err := taskScope(task); err == nil {
		result.Capability = scope.Capability
		result.Degraded = scope.Degraded
	}
	if retrieve, ok := task.CompletedStep(StepRetrieve); ok {
		result.Sources = retrieve.Sources
	}
	if synth, ok := task.CompletedStep(StepSynthesize); ok {
		result.Answer = synth.Output
	}
	return result
}

// runStep executes one pipeline step against the collaborators.
func (e *Engine) runStep(ctx context.Context, task *core.Task, step string) (core.StepResult, error) {
	switch step {
	case StepLoadScope:
		return e.loadScope(ctx, task)
	case StepRetrieve:
		return e.retrieve(ctx, task)
	case StepAnalyze:
		return e.analyze(ctx, task)
	case StepSynthesize:
		return e.synthesize(ctx, task)
	}
	return core.StepResult{}, fmt.Errorf("unknown pipeline step %q", step)
}

// loadScope resolves the document scope and routes the query to a capability.
func (e *Engine) loadScope(ctx context.Context, task *core.Task) (core.StepResult, error) {
	session, err := e.deps.Sessions.Get(task.SessionID)
	if err != nil {
		return core.StepResult{}, fmt.Errorf("session gone: %w", err)
	}

	decision := e.deps.Router.Route(ctx, session, task.Input.Query)
	scope := scopeDecision{
		Capability: decision.Capability.Name,
		Degraded:   decision.Degraded,
		Reason:     decision.Reason,
		Documents:  task.Input.DocumentIDs,
	}
	out, err := json.Marshal(scope)
	if err != nil {
		return core.StepResult{}, err
	}
	return core.StepResult{Output: string(out)}, nil
}

// retrieve gathers contract material for the query. Comparison tasks fetch
// whole-document contexts; everything else searches the scope.
func (e *Engine) retrieve(ctx context.Context, task *core.Task) (core.StepResult, error) {
	scope, err := taskScope(task)
	if err != nil {
		return core.StepResult{}, err
	}
	capability, ok := e.deps.Registry.Get(scope.Capability)
	if !ok {
		return core.StepResult{}, fmt.Errorf("capability %q: %w", scope.Capability, core.ErrNotFound)
	}

	if scope.Capability == core.CapabilityCompare {
		contexts := make([]string, 0, len(scope.Documents))
		var sources []core.Source
		for _, docID := range scope.Documents {
			res, err := e.deps.Dispatcher.Invoke(ctx, capability, "get_contract_context",
				map[string]any{"document_id": docID})
			if err != nil {
				return core.StepResult{}, err
			}
			if res.Failure != nil {
				return core.StepResult{}, res.Failure
			}
			out, ok := res.Output.(tool.SearchOutput)
			if !ok {
				return core.StepResult{}, fmt.Errorf("unexpected get_contract_context output %T", res.Output)
			}
			texts := make([]string, 0, len(out.Results))
			for _, r := range out.Results {
				texts = append(texts, r.Text)
				sources = append(sources, r.Source)
			}
			contexts = append(contexts, strings.Join(texts, "\n\n"))
		}
		encoded, err := json.Marshal(contexts)
		if err != nil {
			return core.StepResult{}, err
		}
		return core.StepResult{Output: string(encoded), Sources: sources}, nil
	}

	res, err := e.deps.Dispatcher.Invoke(ctx, capability, "search_contracts", map[string]any{
		"query":        task.Input.Query,
		"document_ids": scope.Documents,
		"top_k":        e.opts.TopK,
	})
	if err != nil {
		return core.StepResult{}, err
	}
	if res.Failure != nil {
		return core.StepResult{}, res.Failure
	}
	out, ok := res.Output.(tool.SearchOutput)
	if !ok {
		return core.StepResult{}, fmt.Errorf("unexpected search_contracts output %T", res.Output)
	}

	texts := make([]string, 0, len(out.Results))
	sources := make([]core.Source, 0, len(out.Results))
	for _, r := range out.Results {
		texts = append(texts, r.Text)
		sources = append(sources, r.Source)
	}
	return core.StepResult{Output: strings.Join(texts, "\n\n"), Sources: sources}, nil
}

// analyze applies the capability's analysis tool to the retrieved material.
// Retrieval QA has no analysis tool, so the step records an empty result.
func (e *Engine) analyze(ctx context.Context, task *core.Task) (core.StepResult, error) {
	scope, err := taskScope(task)
	if err != nil {
		return core.StepResult{}, err
	}
	capability, ok := e.deps.Registry.Get(scope.Capability)
	if !ok {
		return core.StepResult{}, fmt.Errorf("capability %q: %w", scope.Capability, core.ErrNotFound)
	}
	retrieved, _ := task.CompletedStep(StepRetrieve)

	var toolName string
	var args map[string]any
	switch scope.Capability {
	case core.CapabilityRisk:
		toolName = "identify_risks"
		args = map[string]any{"context": retrieved.Output}
	case core.CapabilityCompare:
		var contexts []string
		if err := json.Unmarshal([]byte(retrieved.Output), &contexts); err != nil {
			return core.StepResult{}, fmt.Errorf("corrupt retrieve output: %w", err)
		}
		toolName = "generate_comparison_report"
		args = map[string]any{"contexts": contexts}
	case core.CapabilityReport:
		toolName = "generate_summary"
		args = map[string]any{"context": retrieved.Output}
	default:
		return core.StepResult{}, nil
	}

	res, err := e.deps.Dispatcher.Invoke(ctx, capability, toolName, args)
	if err != nil {
		return core.StepResult{}, err
	}
	if res.Failure != nil {
		return core.StepResult{}, res.Failure
	}
	text, ok := res.Output.(string)
	if !ok {
		return core.StepResult{}, fmt.Errorf("unexpected %s output %T", toolName, res.Output)
	}
	return core.StepResult{Output: text}, nil
}

// synthesize produces the final answer. Capabilities whose analysis step
// already yields a finished report pass it through; the rest get a grounded
// generation over the retrieved material.
func (e *Engine) synthesize(ctx context.Context, task *core.Task) (core.StepResult, error) {
	scope, err := taskScope(task)
	if err != nil {
		return core.StepResult{}, err
	}
	analysis, _ := task.CompletedStep(StepAnalyze)
	retrieved, _ := task.CompletedStep(StepRetrieve)

	switch scope.Capability {
	case core.CapabilityCompare, core.CapabilityReport:
		return core.StepResult{Output: analysis.Output}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nContract material:\n%s\n", task.Input.Query, retrieved.Output)
	if analysis.Output != "" {
		fmt.Fprintf(&sb, "\nAnalysis:\n%s\n", analysis.Output)
	}
	if scope.Degraded {
		fmt.Fprintf(&sb, "\nNote: %s. Answer with what is available and state the limitation.\n", scope.Reason)
	}

	genCtx, cancel := context.WithTimeout(ctx, e.opts.SynthesisTimeout)
	defer cancel()
	start := time.Now()
	answer, err := e.deps.Generator.Generate(genCtx, core.GenerateRequest{
		System: answerSystem,
		Prompt: sb.String(),
	})
	e.opts.Logger.LogGenerateCall(e.deps.Generator.Info().Name, time.Since(start), err == nil, err)
	if err != nil {
		return core.StepResult{}, fmt.Errorf("synthesis failed: %w", err)
	}
	return core.StepResult{Output: answer}, nil
}

// taskScope recovers the persisted routing decision.
func taskScope(task *core.Task) (scopeDecision, error) {
	step, ok := task.CompletedStep(StepLoadScope)
	if !ok {
		return scopeDecision{}, fmt.Errorf("load_scope step not completed")
	}
	var scope scopeDecision
	if err := json.Unmarshal([]byte(step.Output), &scope); err != nil {
		return scopeDecision{}, fmt.Errorf("corrupt scope decision: %w", err)
	}
	return scope, nil
}
