package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/tool"
)

// Answer handles a synchronous session query: route, retrieve, generate.
// Both the question and the answer are appended to the session history. A
// failed retrieval degrades to an ungrounded answer that says so rather than
// failing the query.
func (e *Engine) Answer(ctx context.Context, sessionID, query string) (core.Message, error) {
	if query == "" {
		return core.Message{}, fmt.Errorf("query must not be empty: %w", core.ErrInvalidState)
	}
	session, err := e.deps.Sessions.Get(sessionID)
	if err != nil {
		return core.Message{}, err
	}
	logger := e.opts.Logger.WithSession(sessionID, "")

	if _, err := e.deps.Sessions.Append(sessionID, core.NewMessage(core.RoleUser, query)); err != nil {
		return core.Message{}, err
	}

	decision := e.deps.Router.Route(ctx, session, query)

	var calls []core.ToolCall
	var sources []core.Source
	var contextText string
	res, err := e.deps.Dispatcher.Invoke(ctx, decision.Capability, "search_contracts", map[string]any{
		"query":        query,
		"document_ids": session.Documents(),
		"top_k":        e.opts.TopK,
	})
	if err != nil {
		return core.Message{}, err
	}
	calls = append(calls, res.Record())
	if res.Failure != nil {
		logger.Warn("retrieval failed, answering without context", "error", res.Failure)
	} else if out, ok := res.Output.(tool.SearchOutput); ok {
		texts := make([]string, 0, len(out.Results))
		for _, r := range out.Results {
			texts = append(texts, r.Text)
			sources = append(sources, r.Source)
		}
		contextText = strings.Join(texts, "\n\n")
	}

	prompt := e.answerPrompt(session, query, contextText, decision.Reason, decision.Degraded)

	genCtx, cancel := context.WithTimeout(ctx, e.opts.SynthesisTimeout)
	defer cancel()
	start := time.Now()
	answer, err := e.deps.Generator.Generate(genCtx, core.GenerateRequest{
		System: answerSystem,
		Prompt: prompt,
	})
	e.opts.Logger.LogGenerateCall(e.deps.Generator.Info().Name, time.Since(start), err == nil, err)
	if err != nil {
		return core.Message{}, fmt.Errorf("answer generation failed: %w", err)
	}

	msg := core.NewMessage(core.RoleAgent, answer)
	msg.Sources = sources
	msg.ToolCalls = calls
	if _, err := e.deps.Sessions.Append(sessionID, msg); err != nil {
		return core.Message{}, err
	}
	return msg, nil
}

// answerPrompt folds recent history, retrieved material and any degradation
// note into the generation prompt.
func (e *Engine) answerPrompt(session *core.Session, query, contextText, reason string, degraded bool) string {
	var sb strings.Builder
	if history := session.LastMessages(6); len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("\n")
	}
	if contextText != "" {
		fmt.Fprintf(&sb, "Contract material:\n%s\n\n", contextText)
	} else {
		sb.WriteString("No contract material was retrieved for this question.\n\n")
	}
	if degraded {
		fmt.Fprintf(&sb, "Note: %s. Answer with what is available and state the limitation.\n\n", reason)
	}
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}
