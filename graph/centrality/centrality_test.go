package centrality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_StarGraphHubHasHighestCentrality(t *testing.T) {
	nodeIDs := []string{"hub", "a", "b", "c", "d"}
	edges := [][2]string{{"hub", "a"}, {"hub", "b"}, {"hub", "c"}, {"hub", "d"}}

	results := Compute(nodeIDs, edges)

	hub := results["hub"]
	require.True(t, hub.HasPageRank)
	require.True(t, hub.HasBetweenness)

	for _, leaf := range []string{"a", "b", "c", "d"} {
		assert.GreaterOrEqual(t, hub.PageRank, results[leaf].PageRank)
		assert.GreaterOrEqual(t, hub.Betweenness, results[leaf].Betweenness)
	}
}

func TestCompute_NormalizedToZeroOneRange(t *testing.T) {
	nodeIDs := []string{"hub", "a", "b", "c"}
	edges := [][2]string{{"hub", "a"}, {"hub", "b"}, {"hub", "c"}}

	results := Compute(nodeIDs, edges)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.PageRank, 0.0)
		assert.LessOrEqual(t, r.PageRank, 1.0)
		assert.GreaterOrEqual(t, r.Betweenness, 0.0)
		assert.LessOrEqual(t, r.Betweenness, 1.0)
	}
}

func TestCompute_EmptyGraph(t *testing.T) {
	results := Compute(nil, nil)
	assert.Empty(t, results)
}

func TestCompute_IsolatedNodesGetZeroScores(t *testing.T) {
	results := Compute([]string{"lonely"}, nil)
	r := results["lonely"]
	assert.Equal(t, 0.0, r.PageRank)
}

func TestCompute_ImportanceIsMeanOfPresentMetrics(t *testing.T) {
	nodeIDs := []string{"a", "b", "c"}
	edges := [][2]string{{"a", "b"}, {"b", "c"}}

	results := Compute(nodeIDs, edges)
	for _, r := range results {
		if r.HasPageRank && r.HasBetweenness {
			assert.InDelta(t, (r.PageRank+r.Betweenness)/2, r.Importance, 1e-9)
		}
	}
}
