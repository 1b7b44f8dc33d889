package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRanksMoreRelevantDocHigher(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "1", Text: "golang concurrency patterns with channels and goroutines"},
		{ID: "2", Text: "a recipe for chocolate chip cookies"},
		{ID: "3", Text: "golang goroutines golang channels golang concurrency"},
	})

	results := idx.Search("golang concurrency", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "3", results[0].ID)

	var cookieScore float64
	for _, r := range results {
		if r.ID == "2" {
			cookieScore = r.Score
		}
	}
	assert.Zero(t, cookieScore)
}

func TestSearchRespectsTopK(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "1", Text: "apple banana"},
		{ID: "2", Text: "apple cherry"},
		{ID: "3", Text: "apple date"},
	})
	results := idx.Search("apple", 2)
	assert.Len(t, results, 2)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	assert.Empty(t, idx.Search("anything", 5))
}
