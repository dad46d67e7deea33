package retrieval

import (
	"context"
	"testing"

	"github.com/contractguard/contractguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ core.Retriever     = (*InMemoryIndex)(nil)
	_ core.DocumentStore = (*InMemoryIndex)(nil)
)

func seededIndex() *InMemoryIndex {
	ix := NewInMemoryIndex()
	ix.AddDocument(core.DocumentMeta{ID: "msa", Name: "Master Services Agreement"},
		Fragment{Section: "9.1", Page: 12, Text: "Liability of either party shall be capped at the fees paid in the preceding twelve months."},
		Fragment{Section: "3.2", Page: 4, Text: "Payment is due within thirty days of invoice."},
	)
	ix.AddDocument(core.DocumentMeta{ID: "nda", Name: "Mutual NDA"},
		Fragment{Section: "2", Page: 1, Text: "Confidential information must not be disclosed to third parties."},
	)
	ix.AddDocument(core.DocumentMeta{ID: "pending", Name: "Unprocessed", Status: core.DocumentProcessing})
	return ix
}

func TestSearch_RanksByOverlap(t *testing.T) {
	ix := seededIndex()
	results, err := ix.Search(context.Background(), "liability cap", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "msa", results[0].Source.DocumentID)
	assert.Equal(t, "9.1", results[0].Source.Section)
}

func TestSearch_ScopeFilters(t *testing.T) {
	ix := seededIndex()
	results, err := ix.Search(context.Background(), "disclosed confidential", []string{"msa"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results, "nda fragment is out of scope")
}

func TestSearch_EmptyQueryReturnsStoredOrder(t *testing.T) {
	ix := seededIndex()
	results, err := ix.Search(context.Background(), "", []string{"msa"}, 50)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "9.1", results[0].Source.Section)
	assert.Equal(t, "3.2", results[1].Source.Section)
}

func TestSearch_SkipsUnreadyDocuments(t *testing.T) {
	ix := seededIndex()
	results, err := ix.Search(context.Background(), "", []string{"pending"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	ix.SetStatus("pending", core.DocumentReady)
	meta, err := ix.DocumentMeta(context.Background(), "pending")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentReady, meta.Status)
}

func TestListDocuments_InsertionOrder(t *testing.T) {
	ix := seededIndex()
	metas, err := ix.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, "msa", metas[0].ID)
	assert.Equal(t, "nda", metas[1].ID)
}

func TestDocumentMeta_Unknown(t *testing.T) {
	ix := NewInMemoryIndex()
	_, err := ix.DocumentMeta(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
