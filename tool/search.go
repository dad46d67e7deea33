package tool

import (
	"context"
	"fmt"

	"github.com/contractguard/contractguard/core"
)

const (
	defaultTopK = 5
	// contextTopK bounds how many fragments a whole-document context fetch
	// returns.
	contextTopK = 50
)

// SearchOutput is the structured result of the retrieval tools.
type SearchOutput struct {
	Query   string              `json:"query,omitempty"`
	Results []core.SearchResult `json:"results"`
}

// NewSearchContracts exposes semantic search over ingested contracts. The
// document_ids argument narrows the search to the session's document scope.
func NewSearchContracts(retriever core.Retriever) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":        map[string]any{"type": "string", "description": "Natural language search query"},
			"top_k":        map[string]any{"type": "integer", "description": "Number of results to return"},
			"document_ids": map[string]any{"type": "array", "description": "Restrict the search to these document ids"},
		},
		"required": []string{"query"},
	}
	return NewFunctionTool(
		"search_contracts",
		"Search contract documents for clauses relevant to a query, ranked by similarity.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			query := argString(args, "query", "")
			topK := argInt(args, "top_k", defaultTopK)
			scope := argStrings(args, "document_ids")

			results, err := retriever.Search(ctx, query, scope, topK)
			if err != nil {
				return nil, err
			}
			return SearchOutput{Query: query, Results: results}, nil
		},
	)
}

// NewGetContractContext retrieves the stored fragments of one document,
// giving a capability the full context of a single contract. An empty query
// against a single-document scope returns the document's fragments in stored
// order.
func NewGetContractContext(retriever core.Retriever, docs core.DocumentStore) *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"document_id": map[string]any{"type": "string", "description": "Document to fetch context for"},
		},
		"required": []string{"document_id"},
	}
	return NewFunctionTool(
		"get_contract_context",
		"Fetch the full stored context of a single contract document.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			docID := argString(args, "document_id", "")

			meta, err := docs.DocumentMeta(ctx, docID)
			if err != nil {
				return nil, NewToolError("get_contract_context", fmt.Sprintf("unknown document %s", docID), CodeNotFound)
			}
			if meta.Status != core.DocumentReady {
				return nil, NewToolError("get_contract_context", fmt.Sprintf("document %s is %s, not ready", docID, meta.Status), CodeExecution)
			}

			results, err := retriever.Search(ctx, "", []string{docID}, contextTopK)
			if err != nil {
				return nil, err
			}
			return SearchOutput{Results: results}, nil
		},
	)
}

// NewListDocuments lists ingested documents with their processing status.
func NewListDocuments(docs core.DocumentStore) *FunctionTool {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	return NewFunctionTool(
		"list_documents",
		"List the documents available for analysis and their processing status.",
		params,
		func(ctx context.Context, _ map[string]any) (any, error) {
			return docs.ListDocuments(ctx)
		},
	)
}
