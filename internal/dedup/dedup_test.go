package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeIsDeterministic(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	assert.Equal(t, Compute(text), Compute(text))
}

func TestSimilarDetectsNearDuplicateText(t *testing.T) {
	a := Compute("the quick brown fox jumps over the lazy dog in the park")
	b := Compute("the quick brown fox jumps over the lazy dog at the park")
	assert.True(t, Similar(a, b, 3))
}

func TestSimilarRejectsUnrelatedText(t *testing.T) {
	a := Compute("the quick brown fox jumps over the lazy dog")
	b := Compute("quantum computing relies on superposition and entanglement")
	assert.False(t, Similar(a, b, 3))
}

func TestClustererGroupsNearDuplicates(t *testing.T) {
	c := NewClusterer(3)
	c.Add(Item{ID: "1", Sig: Compute("breaking news: stock market rallies today on strong earnings")})
	c.Add(Item{ID: "2", Sig: Compute("breaking news: stock market rallies today on strong earnings reports")})
	c.Add(Item{ID: "3", Sig: Compute("recipe for a three-layer chocolate birthday cake with ganache")})

	clusters := c.Clusters()
	assert.Len(t, clusters, 2)

	reps := c.Representatives()
	assert.Len(t, reps, 2)
}
