package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/dispatch"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/model"
	"github.com/contractguard/contractguard/retrieval"
	"github.com/contractguard/contractguard/router"
	"github.com/contractguard/contractguard/session"
	"github.com/contractguard/contractguard/store"
	"github.com/contractguard/contractguard/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	engine   *Engine
	sessions core.SessionStore
	tasks    core.TaskStore
	gen      *model.MockGenerator
	session  *core.Session
}

// newHarness wires an engine over in-memory collaborators. extraTools are
// registered in place of the default retrieval tools when given.
func newHarness(t *testing.T, extraTools ...tool.Tool) *harness {
	t.Helper()

	quiet := func() *logging.ContractGuardLogger {
		return logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelError})
	}

	ix := retrieval.NewInMemoryIndex()
	ix.AddDocument(core.DocumentMeta{ID: "msa", Name: "Master Services Agreement"},
		retrieval.Fragment{Section: "9.1", Page: 12, Text: "Liability of either party shall be capped at the fees paid in the preceding twelve months."},
		retrieval.Fragment{Section: "3.2", Page: 4, Text: "Payment is due within thirty days of invoice."},
	)
	ix.AddDocument(core.DocumentMeta{ID: "nda", Name: "Mutual NDA"},
		retrieval.Fragment{Section: "2", Page: 1, Text: "Confidential information must not be disclosed to third parties."},
	)

	gen := model.NewMockGenerator("mock", "test")

	d := dispatch.NewDispatcher(func(o *dispatch.Options) {
		o.Logger = quiet()
		o.BackoffBase = time.Millisecond
	})
	if len(extraTools) > 0 {
		require.NoError(t, d.Register(dispatch.ClassSearch, extraTools...))
	} else {
		require.NoError(t, d.Register(dispatch.ClassSearch,
			tool.NewSearchContracts(ix),
			tool.NewGetContractContext(ix, ix),
			tool.NewListDocuments(ix)))
	}
	require.NoError(t, d.Register(dispatch.ClassGeneration,
		tool.NewAnalyzeClause(gen),
		tool.NewIdentifyRisks(gen),
		tool.NewExtractObligations(gen),
		tool.NewGenerateSummary(gen),
		tool.NewGenerateRiskReport(gen),
		tool.NewGenerateComparisonReport(gen)))

	registry := capability.Default()
	rt := router.New(gen, registry, func(o *router.Options) { o.Logger = quiet() })

	sessions := session.NewInMemoryStore()
	tasks := store.NewInMemoryStore()

	eng, err := New(Deps{
		Tasks:      tasks,
		Sessions:   sessions,
		Dispatcher: d,
		Router:     rt,
		Registry:   registry,
		Generator:  gen,
	}, func(o *Options) { o.Logger = quiet() })
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, eng.Close(ctx))
	})

	sess, err := sessions.Create("u1", []string{"msa"})
	require.NoError(t, err)

	return &harness{engine: eng, sessions: sessions, tasks: tasks, gen: gen, session: sess}
}

// waitState polls until the task reaches the wanted state.
func waitState(t *testing.T, h *harness, taskID string, want core.TaskState) *core.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := h.tasks.Get(context.Background(), taskID)
		require.NoError(t, err)
		if task.State == want {
			return task
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task %s never reached state %s", taskID, want)
	return nil
}

func TestExecute_CompletesTask(t *testing.T) {
	h := newHarness(t)
	h.gen.AddResponse("Capability:", core.CapabilityQA)
	h.gen.AddResponse("Contract material:", "Liability is capped at twelve months of fees.")

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "what is the liability cap"})
	require.NoError(t, err)
	assert.Equal(t, core.TaskPending, task.State)
	assert.Equal(t, []string{"msa"}, task.Input.DocumentIDs, "scope defaults to the session's documents")

	running, err := h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskRunning, running.State)

	done := waitState(t, h, task.ID, core.TaskCompleted)
	assert.Equal(t, 4, done.Progress)
	require.Len(t, done.Steps, 4)
	assert.Equal(t, StepLoadScope, done.Steps[0].Name)
	assert.Equal(t, StepSynthesize, done.Steps[3].Name)
	require.NotNil(t, done.Result)
	assert.Equal(t, "Liability is capped at twelve months of fees.", done.Result.Answer)
	assert.Equal(t, core.CapabilityQA, done.Result.Capability)
	assert.NotEmpty(t, done.Result.Sources)

	sess, err := h.sessions.Get(h.session.ID)
	require.NoError(t, err)
	msgs := sess.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, core.RoleAgent, msgs[len(msgs)-1].Role)
}

func TestExecute_StatePreconditions(t *testing.T) {
	h := newHarness(t)
	h.gen.AddResponse("Capability:", core.CapabilityQA)

	ctx := context.Background()
	_, err := h.engine.Execute(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)
	_, err = h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)
	waitState(t, h, task.ID, core.TaskCompleted)

	_, err = h.engine.Execute(ctx, task.ID)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = h.engine.Pause(ctx, task.ID)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = h.engine.Cancel(ctx, task.ID)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestSubmit_RequiresSessionAndQuery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Submit(ctx, "missing", core.TaskInput{Query: "q"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.engine.Submit(ctx, h.session.ID, core.TaskInput{})
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

// blockingSearch is a search_contracts stand-in that blocks until released
// and counts invocations.
func blockingSearch(release <-chan struct{}, calls *atomic.Int32) tool.Tool {
	return tool.NewFunctionTool("search_contracts", "blocking search",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (any, error) {
			calls.Add(1)
			<-release
			return tool.SearchOutput{Results: []core.SearchResult{{
				Text:   "Liability is capped.",
				Source: core.Source{DocumentID: "msa", Section: "9.1"},
			}}}, nil
		})
}

func TestPauseWaitsForInFlightStepThenResumeSkipsIt(t *testing.T) {
	release := make(chan struct{})
	var searchCalls atomic.Int32
	h := newHarness(t, blockingSearch(release, &searchCalls))
	h.gen.AddResponse("Capability:", core.CapabilityQA)
	h.gen.AddResponse("Contract material:", "done")

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "cap?"})
	require.NoError(t, err)
	_, err = h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)

	// Wait until the retrieve step is in flight, then request the pause.
	for searchCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	_, err = h.engine.Pause(ctx, task.ID)
	require.NoError(t, err)

	close(release)
	paused := waitState(t, h, task.ID, core.TaskPaused)

	// The in-flight retrieve ran to completion and its result was kept.
	_, ok := paused.CompletedStep(StepRetrieve)
	assert.True(t, ok)
	assert.Equal(t, 2, paused.Progress)
	assert.Equal(t, int32(1), searchCalls.Load())

	_, err = h.engine.Resume(ctx, task.ID)
	require.NoError(t, err)
	done := waitState(t, h, task.ID, core.TaskCompleted)

	// Resume executed only the remaining steps.
	assert.Equal(t, int32(1), searchCalls.Load(), "retrieve step must not run twice")
	require.NotNil(t, done.Result)
	assert.Equal(t, "done", done.Result.Answer)
}

func TestCancelPendingAndPaused(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	h := newHarness(t, blockingSearch(release, &calls))
	h.gen.AddResponse("Capability:", core.CapabilityQA)

	ctx := context.Background()

	pending, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)
	cancelled, err := h.engine.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskCancelled, cancelled.State)

	_, err = h.engine.Resume(ctx, pending.ID)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	paused, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)
	_, err = h.engine.Execute(ctx, paused.ID)
	require.NoError(t, err)
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	_, err = h.engine.Pause(ctx, paused.ID)
	require.NoError(t, err)
	close(release)
	waitState(t, h, paused.ID, core.TaskPaused)

	_, err = h.engine.Cancel(ctx, paused.ID)
	require.NoError(t, err)
	waitState(t, h, paused.ID, core.TaskCancelled)
}

func TestCancelRunningAtStepBoundary(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	h := newHarness(t, blockingSearch(release, &calls))
	h.gen.AddResponse("Capability:", core.CapabilityQA)

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)
	_, err = h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)

	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	_, err = h.engine.Cancel(ctx, task.ID)
	require.NoError(t, err)

	close(release)
	done := waitState(t, h, task.ID, core.TaskCancelled)
	_, ok := done.CompletedStep(StepRetrieve)
	assert.True(t, ok, "in-flight step completes before the cancel lands")
}

func TestConcurrentExecuteSingleWinner(t *testing.T) {
	h := newHarness(t)
	h.gen.AddResponse("Capability:", core.CapabilityQA)
	h.gen.AddResponse("Contract material:", "answer")

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.engine.Execute(ctx, task.ID)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one Execute wins the revision race")
	waitState(t, h, task.ID, core.TaskCompleted)
}

func TestExecute_ProgressEventsRiseToTerminal(t *testing.T) {
	h := newHarness(t)
	h.gen.AddResponse("Capability:", core.CapabilityQA)
	h.gen.AddResponse("Contract material:", "answer")

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)

	events, cancel := h.engine.Publisher().Subscribe(task.ID)
	defer cancel()

	_, err = h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)

	var seen []core.ProgressEvent
	for ev := range events {
		seen = append(seen, ev)
		if ev.Terminal {
			break
		}
	}
	require.GreaterOrEqual(t, len(seen), 2)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Progress, seen[i-1].Progress, "progress never decreases")
	}
	last := seen[len(seen)-1]
	assert.True(t, last.Terminal)
	assert.Equal(t, 100, last.Progress)
}

func TestDegradedRouteCompletesWithQA(t *testing.T) {
	h := newHarness(t)
	// comparison needs two documents, the session has one
	h.gen.AddResponse("Capability:", core.CapabilityCompare)
	h.gen.AddResponse("Contract material:", "Cannot fully compare; only one contract is in scope.")

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "compare my contracts"})
	require.NoError(t, err)
	_, err = h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)

	done := waitState(t, h, task.ID, core.TaskCompleted)
	require.NotNil(t, done.Result)
	assert.Equal(t, core.CapabilityQA, done.Result.Capability)
	assert.True(t, done.Result.Degraded)
}

func TestDeleteAndReap(t *testing.T) {
	h := newHarness(t)
	h.gen.AddResponse("Capability:", core.CapabilityQA)
	h.gen.AddResponse("Contract material:", "answer")

	ctx := context.Background()
	task, err := h.engine.Submit(ctx, h.session.ID, core.TaskInput{Query: "q"})
	require.NoError(t, err)

	assert.ErrorIs(t, h.engine.Delete(ctx, task.ID), core.ErrInvalidState)

	_, err = h.engine.Execute(ctx, task.ID)
	require.NoError(t, err)
	waitState(t, h, task.ID, core.TaskCompleted)

	removed, err := h.engine.ReapExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "fresh tasks are retained")

	removed, err = h.engine.ReapExpired(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = h.engine.Get(ctx, task.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAnswer_AppendsGroundedMessage(t *testing.T) {
	h := newHarness(t)
	h.gen.AddResponse("Capability:", core.CapabilityQA)
	h.gen.AddResponse("Contract material:", "Payment is due within thirty days.")

	msg, err := h.engine.Answer(context.Background(), h.session.ID, "when is payment due")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAgent, msg.Role)
	assert.Equal(t, "Payment is due within thirty days.", msg.Content)
	assert.NotEmpty(t, msg.Sources)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "search_contracts", msg.ToolCalls[0].Tool)

	sess, err := h.sessions.Get(h.session.ID)
	require.NoError(t, err)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, core.RoleAgent, msgs[1].Role)

	_, err = h.engine.Answer(context.Background(), "missing", "q")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
