package capability

import (
	"strings"
	"testing"

	"github.com/contractguard/contractguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		core.Capability{Name: "a", Tools: []string{"t"}},
		core.Capability{Name: "a", Tools: []string{"t"}},
	)
	assert.Error(t, err)
}

func TestNewRegistry_RejectsEmptyToolList(t *testing.T) {
	_, err := NewRegistry(core.Capability{Name: "a"})
	assert.Error(t, err)
}

func TestDefault_Lookup(t *testing.T) {
	r := Default()

	qa, ok := r.Get(core.CapabilityQA)
	require.True(t, ok)
	assert.True(t, qa.Permits("search_contracts"))
	assert.False(t, qa.Permits("identify_risks"))

	compare, ok := r.Get(core.CapabilityCompare)
	require.True(t, ok)
	assert.Equal(t, 2, compare.MinDocuments)

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestCatalog_ListsEveryCapability(t *testing.T) {
	r := Default()
	catalog := r.Catalog()
	for _, c := range r.All() {
		assert.True(t, strings.Contains(catalog, c.Name), "catalog missing %s", c.Name)
	}
}
