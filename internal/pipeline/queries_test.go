package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateQueriesDefaultsToAllCategories(t *testing.T) {
	queries := GenerateQueries(nil)
	require.Len(t, queries, 22)
	assert.Equal(t, "UK EU export controls update sanctions trade impact", queries[0])

	again := GenerateQueries(nil)
	assert.Equal(t, queries, again)
}

func TestGenerateQueriesSelectsCategories(t *testing.T) {
	queries := GenerateQueries([]string{"energy inputs", "FX/payments"})
	require.Len(t, queries, 4)
	assert.Contains(t, queries, "gas supply risk Europe industrial costs")
	assert.Contains(t, queries, "GBP EUR volatility trade payments risk")
}

func TestGenerateQueriesIgnoresUnknownCategories(t *testing.T) {
	assert.Empty(t, GenerateQueries([]string{"no such category"}))
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 11)
	cats[0] = "mutated"
	assert.Equal(t, "sanctions/export-controls", Categories()[0])
}
