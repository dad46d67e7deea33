package tool

import (
	"context"
	"fmt"

	"github.com/contractguard/contractguard/core"
)

const analysisSystem = "You are a contract analyst. Ground every statement " +
	"in the clause text you are given and answer in plain prose."

// NewAnalyzeClause explains a single clause: meaning, obligations and
// anything unusual about its wording.
func NewAnalyzeClause(gen core.Generator) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"clause_text": map[string]any{"type": "string", "description": "Verbatim clause text to analyze"},
			"focus":       map[string]any{"type": "string", "description": "Optional aspect to focus on, e.g. liability"},
		},
		"required": []string{"clause_text"},
	}
	return NewFunctionTool(
		"analyze_clause",
		"Explain what a contract clause means, the obligations it creates and anything unusual about it.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			clause := argString(args, "clause_text", "")
			focus := argString(args, "focus", "")

			prompt := fmt.Sprintf("Analyze the following contract clause.\n\nClause:\n%s", clause)
			if focus != "" {
				prompt += fmt.Sprintf("\n\nFocus on: %s", focus)
			}
			return gen.Generate(ctx, core.GenerateRequest{System: analysisSystem, Prompt: prompt})
		},
	)
}

// NewIdentifyRisks flags risky or one-sided terms in the provided contract
// context.
func NewIdentifyRisks(gen core.Generator) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"context": map[string]any{"type": "string", "description": "Contract excerpts to scan for risks"},
		},
		"required": []string{"context"},
	}
	return NewFunctionTool(
		"identify_risks",
		"Identify risky, unusual or one-sided terms in contract excerpts and rate their severity.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			excerpts := argString(args, "context", "")
			prompt := fmt.Sprintf(
				"List the risks in the following contract excerpts. For each risk name the clause, describe the exposure and rate severity as low, medium or high.\n\n%s",
				excerpts,
			)
			return gen.Generate(ctx, core.GenerateRequest{System: analysisSystem, Prompt: prompt})
		},
	)
}

// NewExtractObligations pulls out who must do what, by when.
func NewExtractObligations(gen core.Generator) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"context": map[string]any{"type": "string", "description": "Contract excerpts to extract obligations from"},
			"party":   map[string]any{"type": "string", "description": "Optional party to filter obligations for"},
		},
		"required": []string{"context"},
	}
	return NewFunctionTool(
		"extract_obligations",
		"Extract the obligations a contract imposes: which party must do what, and any deadlines.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			excerpts := argString(args, "context", "")
			party := argString(args, "party", "")

			prompt := fmt.Sprintf("Extract every obligation from the following contract excerpts as 'party: obligation (deadline)'.\n\n%s", excerpts)
			if party != "" {
				prompt += fmt.Sprintf("\n\nOnly include obligations of: %s", party)
			}
			return gen.Generate(ctx, core.GenerateRequest{System: analysisSystem, Prompt: prompt})
		},
	)
}
