package core

import "context"

// SearchResult is one ranked fragment returned by the retrieval collaborator.
type SearchResult struct {
	Text   string  `json:"text"`
	Source Source  `json:"source"`
	Score  float64 `json:"score"`
}

// Retriever is the retrieval collaborator: semantic search over ingested
// documents. Scope narrows the search to the given document ids; empty scope
// searches everything.
type Retriever interface {
	Search(ctx context.Context, query string, scope []string, topK int) ([]SearchResult, error)
}

// GenerateRequest is the normalized input to the generation collaborator.
type GenerateRequest struct {
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
}

// GeneratorInfo carries metadata about a generator implementation.
type GeneratorInfo struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Generator is the generation collaborator: it turns a prompt plus retrieved
// context into prose. Implementations must honor the context deadline.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Info() GeneratorInfo
}

// DocumentStatus values mirror the ingestion pipeline's lifecycle.
const (
	DocumentQueued     = "queued"
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentFailed     = "failed"
)

// DocumentMeta is the narrow view of a stored document the engine needs.
type DocumentMeta struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// DocumentStore is the document metadata collaborator.
type DocumentStore interface {
	DocumentMeta(ctx context.Context, id string) (DocumentMeta, error)
	ListDocuments(ctx context.Context) ([]DocumentMeta, error)
}
