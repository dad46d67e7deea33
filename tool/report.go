package tool

import (
	"context"
	"fmt"

	"github.com/contractguard/contractguard/core"
)

const reportSystem = "You write concise, well-structured reports about " +
	"contract analyses. Use headings and keep every claim tied to the " +
	"supplied material."

// NewGenerateSummary produces an executive summary of a contract.
func NewGenerateSummary(gen core.Generator) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"context":   map[string]any{"type": "string", "description": "Contract content to summarize"},
			"max_words": map[string]any{"type": "integer", "description": "Target length of the summary"},
		},
		"required": []string{"context"},
	}
	return NewFunctionTool(
		"generate_summary",
		"Produce an executive summary of a contract: parties, purpose, key terms and notable clauses.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			content := argString(args, "context", "")
			maxWords := argInt(args, "max_words", 250)
			prompt := fmt.Sprintf(
				"Summarize the following contract in at most %d words, covering parties, purpose, key terms and notable clauses.\n\n%s",
				maxWords, content,
			)
			return gen.Generate(ctx, core.GenerateRequest{System: reportSystem, Prompt: prompt})
		},
	)
}

// NewGenerateRiskReport turns identified risks into a written report.
func NewGenerateRiskReport(gen core.Generator) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"risks": map[string]any{"type": "string", "description": "The identified risks to report on"},
		},
		"required": []string{"risks"},
	}
	return NewFunctionTool(
		"generate_risk_report",
		"Turn a set of identified contract risks into a structured written risk report.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			risks := argString(args, "risks", "")
			prompt := fmt.Sprintf(
				"Write a risk report from the following findings. Group by severity and end with recommended actions.\n\n%s",
				risks,
			)
			return gen.Generate(ctx, core.GenerateRequest{System: reportSystem, Prompt: prompt})
		},
	)
}

// NewGenerateComparisonReport contrasts two or more contracts.
func NewGenerateComparisonReport(gen core.Generator) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contexts": map[string]any{"type": "array", "description": "One context string per contract, in comparison order"},
		},
		"required": []string{"contexts"},
	}
	return NewFunctionTool(
		"generate_comparison_report",
		"Compare two or more contracts: differing terms, missing clauses and divergent obligations.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			contexts := argStrings(args, "contexts")
			if len(contexts) < 2 {
				return nil, NewToolError("generate_comparison_report", "need at least two contracts to compare", CodeValidation)
			}

			prompt := "Compare the following contracts. Call out differing terms, clauses present in one but missing in another, and divergent obligations.\n"
			for i, c := range contexts {
				prompt += fmt.Sprintf("\n--- Contract %d ---\n%s\n", i+1, c)
			}
			return gen.Generate(ctx, core.GenerateRequest{System: reportSystem, Prompt: prompt})
		},
	)
}
