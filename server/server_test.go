package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	server *Server
	gen    *model.MockGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	quiet := func() *logging.ContractGuardLogger {
		return logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelError})
	}

	ix := retrieval.NewInMemoryIndex()
	ix.AddDocument(core.DocumentMeta{ID: "msa", Name: "Master Services Agreement"},
		retrieval.Fragment{Section: "9.1", Page: 12, Text: "Liability of either party shall be capped at the fees paid in the preceding twelve months."},
	)

	gen := model.NewMockGenerator("mock", "test")
	gen.AddResponse("Capability:", core.CapabilityQA)
	gen.AddResponse("Contract material:", "Liability is capped at twelve months of fees.")

	d := dispatch.NewDispatcher(func(o *dispatch.Options) {
		o.Logger = quiet()
		o.BackoffBase = time.Millisecond
	})
	require.NoError(t, d.Register(dispatch.ClassSearch,
		tool.NewSearchContracts(ix),
		tool.NewGetContractContext(ix, ix),
		tool.NewListDocuments(ix)))
	require.NoError(t, d.Register(dispatch.ClassGeneration,
		tool.NewIdentifyRisks(gen),
		tool.NewGenerateSummary(gen)))

	registry := capability.Default()
	rt := router.New(gen, registry, func(o *router.Options) { o.Logger = quiet() })
	sessions := session.NewInMemoryStore()

	eng, err := engine.New(engine.Deps{
		Tasks:      store.NewInMemoryStore(),
		Sessions:   sessions,
		Dispatcher: d,
		Router:     rt,
		Registry:   registry,
		Generator:  gen,
	}, func(o *engine.Options) { o.Logger = quiet() })
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, eng.Close(ctx))
	})

	srv := New(eng, sessions, d, registry, func(o *Options) { o.Logger = quiet() })
	return &testServer{server: srv, gen: gen}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) createSession(t *testing.T) string {
	rec := ts.do(t, http.MethodPost, "/api/v1/sessions",
		map[string]any{"user_id": "u1", "documents": []string{"msa"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[sessionResponse](t, rec).ID
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	id := ts.createSession(t)
	require.NotEmpty(t, id)

	rec := ts.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[sessionResponse](t, rec)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, []string{"msa"}, sess.Documents)

	rec = ts.do(t, http.MethodGet, "/api/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryReturnsGroundedAnswer(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/query", id),
		map[string]any{"query": "what is the liability cap"})
	require.Equal(t, http.StatusOK, rec.Code)

	msg := decode[core.Message](t, rec)
	assert.Equal(t, core.RoleAgent, msg.Role)
	assert.Equal(t, "Liability is capped at twelve months of fees.", msg.Content)
	assert.NotEmpty(t, msg.Sources)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/tasks",
		map[string]any{"session_id": id, "query": "what is the liability cap"})
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decode[core.Task](t, rec)
	assert.Equal(t, core.TaskPending, task.State)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/execute", task.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	deadline := time.Now().Add(5 * time.Second)
	var done core.Task
	for time.Now().Before(deadline) {
		rec = ts.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		done = decode[core.Task](t, rec)
		if done.State.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, core.TaskCompleted, done.State)
	require.NotNil(t, done.Result)
	assert.Equal(t, "Liability is capped at twelve months of fees.", done.Result.Answer)

	// Terminal tasks reject further transitions.
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/cancel", task.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/tasks?session_id="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]core.Task](t, rec)
	assert.Len(t, list["tasks"], 1)

	rec = ts.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPendingTask(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/tasks",
		map[string]any{"session_id": id, "query": "q"})
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decode[core.Task](t, rec)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/cancel", task.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.TaskCancelled, decode[core.Task](t, rec).State)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/resume", task.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentCardAndTools(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/.well-known/agent-card.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	card := decode[AgentCard](t, rec)
	assert.Equal(t, "ContractGuard", card.Name)
	assert.Len(t, card.Skills, 4)
	assert.True(t, card.Capabilities["longRunningTasks"])

	rec = ts.do(t, http.MethodGet, "/api/v1/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tools := decode[map[string][]toolView](t, rec)
	assert.Len(t, tools["tools"], 5)
}

func TestInvokeTool(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/tools/search_contracts/invoke",
		map[string]any{"args": map[string]any{"query": "liability cap"}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[invokeToolResponse](t, rec)
	assert.Equal(t, "search_contracts", resp.Tool)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Result)

	// identify_risks is not part of retrieval QA.
	rec = ts.do(t, http.MethodPost, "/api/v1/tools/identify_risks/invoke",
		map[string]any{"args": map[string]any{"context": "x"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/tools/identify_risks/invoke",
		map[string]any{"capability": core.CapabilityRisk, "args": map[string]any{"context": "x"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/tools/no_such_tool/invoke",
		map[string]any{"args": map[string]any{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskEventStreamRejectsUnknownTask(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/tasks/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
