// Package retrieval provides the in-memory implementation of the retrieval
// and document metadata collaborators. The real system delegates embedding
// and similarity search to an external vector service; this index keeps the
// same narrow contract (query in, ranked fragments out) with a term-overlap
// scorer, which is deterministic and plenty for tests, examples and local
// runs.
package retrieval
