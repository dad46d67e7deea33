package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/dispatch"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/progress"
	"github.com/contractguard/contractguard/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the collaborators an Engine requires.
type Deps struct {
	Tasks      core.TaskStore
	Sessions   core.SessionStore
	Dispatcher *dispatch.Dispatcher
	Router     *router.Router
	Registry   *capability.Registry
	Generator  core.Generator
}

// Options tune engine behavior.
type Options struct {
	Logger    *logging.ContractGuardLogger
	Tracer    trace.Tracer
	Publisher *progress.Publisher
	// TopK bounds how many fragments the retrieve step asks for.
	TopK int
	// SynthesisTimeout bounds the final generation call of a task.
	SynthesisTimeout time.Duration
}

// control carries the cooperative pause and cancel flags of one running
// executor. Flags are observed at step boundaries only; an in-flight
// collaborator call always runs to completion first.
type control struct {
	pause  atomic.Bool
	cancel atomic.Bool
}

// Engine runs tasks and answers session queries.
type Engine struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	controls map[string]*control
	wg       sync.WaitGroup
}

// New validates deps and creates an engine.
func New(deps Deps, optFns ...func(o *Options)) (*Engine, error) {
	if deps.Tasks == nil || deps.Sessions == nil || deps.Dispatcher == nil ||
		deps.Router == nil || deps.Registry == nil || deps.Generator == nil {
		return nil, fmt.Errorf("engine: all deps must be set")
	}

	opts := Options{
		Logger:           logging.NewLogger(logging.DefaultLoggerConfig()).WithComponent("engine"),
		Tracer:           otel.Tracer("contractguard/engine"),
		Publisher:        progress.NewPublisher(),
		TopK:             5,
		SynthesisTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		deps:     deps,
		opts:     opts,
		controls: make(map[string]*control),
	}, nil
}

// Publisher exposes the progress fan-out so transports can subscribe.
func (e *Engine) Publisher() *progress.Publisher { return e.opts.Publisher }

// Submit creates a Pending task bound to a session. The session must exist;
// submitting refreshes its expiry.
func (e *Engine) Submit(ctx context.Context, sessionID string, input core.TaskInput) (*core.Task, error) {
	if input.Query == "" {
		return nil, fmt.Errorf("task query must not be empty: %w", core.ErrInvalidState)
	}
	session, err := e.deps.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	task := core.NewTask(session.ID, input)
	if len(task.Input.DocumentIDs) == 0 {
		task.Input.DocumentIDs = session.Documents()
	}
	if err := e.deps.Tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	e.publish(core.NewProgressEvent(task.ID, "submitted", 0))
	return task.Clone(), nil
}

// Execute transitions a Pending task to Running and starts its pipeline in
// the background. The returned snapshot is the Running task; progress is
// observable through the publisher and the task store. A concurrent Execute
// on the same task loses the revision race and reports ErrConflict.
func (e *Engine) Execute(ctx context.Context, taskID string) (*core.Task, error) {
	task, err := e.deps.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.State.CanTransition(core.TaskRunning) {
		return nil, fmt.Errorf("cannot execute task in state %s: %w", task.State, core.ErrInvalidState)
	}

	rev := task.Revision
	task.State = core.TaskRunning
	if err := e.deps.Tasks.Update(ctx, task, rev); err != nil {
		return nil, err
	}
	e.publish(core.NewProgressEvent(task.ID, "running", task.Progress*25))

	e.start(task.Clone())
	return task.Clone(), nil
}

// Pause requests a cooperative pause of a Running task. The executor makes
// the Running -> Paused transition at the next step boundary; any in-flight
// collaborator call completes first and its step result is kept.
func (e *Engine) Pause(ctx context.Context, taskID string) (*core.Task, error) {
	task, err := e.deps.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.State != core.TaskRunning {
		return nil, fmt.Errorf("cannot pause task in state %s: %w", task.State, core.ErrInvalidState)
	}

	e.mu.Lock()
	ctl, ok := e.controls[taskID]
	e.mu.Unlock()
	if !ok {
		// Running in the store but no executor here means the process
		// restarted mid-run; the task can only be cancelled.
		return nil, fmt.Errorf("task %s has no live executor: %w", taskID, core.ErrInvalidState)
	}
	ctl.pause.Store(true)
	return task, nil
}

// Resume restarts a Paused task. Completed steps are skipped, so work done
// before the pause is never repeated. Exactly one of several concurrent
// resumes wins the revision race; the rest report ErrConflict.
func (e *Engine) Resume(ctx context.Context, taskID string) (*core.Task, error) {
	task, err := e.deps.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.State != core.TaskPaused {
		return nil, fmt.Errorf("cannot resume task in state %s: %w", task.State, core.ErrInvalidState)
	}

	rev := task.Revision
	task.State = core.TaskRunning
	if err := e.deps.Tasks.Update(ctx, task, rev); err != nil {
		return nil, err
	}
	e.publish(core.NewProgressEvent(task.ID, "resumed", task.Progress*25))

	e.start(task.Clone())
	return task.Clone(), nil
}

// Cancel stops a task. Pending and Paused tasks are cancelled immediately;
// Running tasks are cancelled cooperatively at the next step boundary.
// Terminal tasks cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, taskID string) (*core.Task, error) {
	task, err := e.deps.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.State.Terminal() {
		return nil, fmt.Errorf("cannot cancel task in state %s: %w", task.State, core.ErrInvalidState)
	}

	if task.State == core.TaskRunning {
		e.mu.Lock()
		ctl, ok := e.controls[taskID]
		e.mu.Unlock()
		if ok {
			ctl.cancel.Store(true)
			return task, nil
		}
		// No live executor; fall through to a direct transition.
	}

	rev := task.Revision
	prior := task.State
	task.State = core.TaskCancelled
	if err := e.deps.Tasks.Update(ctx, task, rev); err != nil {
		return nil, err
	}
	e.opts.Logger.LogTaskTransition(task.ID, string(prior), string(core.TaskCancelled), task.Revision)
	e.publishTerminal(task)
	return task.Clone(), nil
}

// Get returns a task snapshot.
func (e *Engine) Get(ctx context.Context, taskID string) (*core.Task, error) {
	return e.deps.Tasks.Get(ctx, taskID)
}

// List returns task snapshots matching the filter, newest first.
func (e *Engine) List(ctx context.Context, filter core.TaskFilter) ([]*core.Task, error) {
	return e.deps.Tasks.List(ctx, filter)
}

// Delete removes a terminal task.
func (e *Engine) Delete(ctx context.Context, taskID string) error {
	task, err := e.deps.Tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.State.Terminal() {
		return fmt.Errorf("cannot delete task in state %s: %w", task.State, core.ErrInvalidState)
	}
	return e.deps.Tasks.Delete(ctx, taskID)
}

// ReapExpired deletes terminal tasks whose last update is older than the
// retention window. It reports how many tasks were removed.
func (e *Engine) ReapExpired(ctx context.Context, retention time.Duration) (int, error) {
	tasks, err := e.deps.Tasks.List(ctx, core.TaskFilter{})
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for _, task := range tasks {
		if !task.State.Terminal() || task.Updated.After(cutoff) {
			continue
		}
		if err := e.deps.Tasks.Delete(ctx, task.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close waits for running executors to reach a step boundary and finish or
// persist their state, or for ctx to expire.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start registers a control for the task and launches its executor.
func (e *Engine) start(task *core.Task) {
	ctl := &control{}
	e.mu.Lock()
	e.controls[task.ID] = ctl
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(task, ctl)
}

func (e *Engine) dropControl(taskID string) {
	e.mu.Lock()
	delete(e.controls, taskID)
	e.mu.Unlock()
}

func (e *Engine) publish(event core.ProgressEvent) {
	e.opts.Publisher.Publish(event)
}

// publishTerminal emits the closing event for a task topic.
func (e *Engine) publishTerminal(task *core.Task) {
	event := core.NewProgressEvent(task.ID, string(task.State), task.Progress*25)
	if task.State == core.TaskCompleted {
		event.Progress = 100
	}
	event.Terminal = true
	e.opts.Publisher.Publish(event)
}
