package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/contractguard/contractguard/core"
)

// Fragment is one indexed piece of a document, typically a clause.
type Fragment struct {
	Section string
	Page    int
	Text    string
}

type indexedDoc struct {
	meta      core.DocumentMeta
	fragments []Fragment
}

// InMemoryIndex implements core.Retriever and core.DocumentStore over a
// process-local map. Safe for concurrent use.
type InMemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]*indexedDoc
	// order preserves insertion order for stable listings.
	order []string
}

// NewInMemoryIndex constructs an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{docs: make(map[string]*indexedDoc)}
}

// AddDocument registers a document and its fragments. A document with
// fragments is immediately ready; one without stays in its given status.
func (ix *InMemoryIndex) AddDocument(meta core.DocumentMeta, fragments ...Fragment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if meta.Status == "" {
		meta.Status = core.DocumentQueued
	}
	if len(fragments) > 0 {
		meta.Status = core.DocumentReady
	}
	if _, exists := ix.docs[meta.ID]; !exists {
		ix.order = append(ix.order, meta.ID)
	}
	ix.docs[meta.ID] = &indexedDoc{meta: meta, fragments: fragments}
}

// SetStatus updates a document's processing status.
func (ix *InMemoryIndex) SetStatus(id, status string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if d, ok := ix.docs[id]; ok {
		d.meta.Status = status
	}
}

// DocumentMeta implements core.DocumentStore.
func (ix *InMemoryIndex) DocumentMeta(_ context.Context, id string) (core.DocumentMeta, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d, ok := ix.docs[id]
	if !ok {
		return core.DocumentMeta{}, core.ErrNotFound
	}
	return d.meta, nil
}

// ListDocuments implements core.DocumentStore.
func (ix *InMemoryIndex) ListDocuments(_ context.Context) ([]core.DocumentMeta, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]core.DocumentMeta, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.docs[id].meta)
	}
	return out, nil
}

// Search implements core.Retriever. An empty query returns fragments in
// stored order (used for whole-document context fetches); otherwise
// fragments are ranked by term overlap with the query.
func (ix *InMemoryIndex) Search(ctx context.Context, query string, scope []string, topK int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	inScope := func(id string) bool {
		if len(scope) == 0 {
			return true
		}
		for _, s := range scope {
			if s == id {
				return true
			}
		}
		return false
	}

	terms := tokenize(query)
	var results []core.SearchResult
	for _, id := range ix.order {
		d := ix.docs[id]
		if !inScope(id) || d.meta.Status != core.DocumentReady {
			continue
		}
		for _, f := range d.fragments {
			score := overlap(terms, tokenize(f.Text))
			if len(terms) > 0 && score == 0 {
				continue
			}
			results = append(results, core.SearchResult{
				Text:  f.Text,
				Score: score,
				Source: core.Source{
					DocumentID:   d.meta.ID,
					DocumentName: d.meta.Name,
					Section:      f.Section,
					Page:         f.Page,
					Score:        score,
				},
			})
		}
	}

	if len(terms) > 0 {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func tokenize(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:()\"'?!")
		if len(w) > 2 {
			tokens[w] = true
		}
	}
	return tokens
}

func overlap(query, text map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for t := range query {
		if text[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
