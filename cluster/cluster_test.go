package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

type fakeStore struct {
	store.Store
	nodes       []model.Node
	edges       []model.Edge
	memberships []model.ClusterMembership
	summaries   map[string]model.ClusterSummary
	nodeCount   int
}

func (f *fakeStore) ScanNodes(ctx context.Context, filter store.NodeFilter) ([]model.Node, error) {
	if len(filter.IDs) == 0 {
		return f.nodes, nil
	}
	wanted := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []model.Node
	for _, n := range f.nodes {
		if wanted[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) ScanEdges(ctx context.Context, filter store.EdgeFilter) ([]model.Edge, error) {
	return f.edges, nil
}

func (f *fakeStore) ReplaceClusterMemberships(ctx context.Context, namespace, algorithm string, memberships []model.ClusterMembership) error {
	f.memberships = memberships
	return nil
}

func (f *fakeStore) ListClusterMemberships(ctx context.Context, namespace, algorithm string) ([]model.ClusterMembership, error) {
	return f.memberships, nil
}

func (f *fakeStore) UpsertClusterSummary(ctx context.Context, summary model.ClusterSummary) error {
	if f.summaries == nil {
		f.summaries = make(map[string]model.ClusterSummary)
	}
	f.summaries[summary.ClusterID] = summary
	return nil
}

func (f *fakeStore) GetClusterSummary(ctx context.Context, namespace, clusterID, algorithm string) (*model.ClusterSummary, error) {
	if s, ok := f.summaries[clusterID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStore) CountNodes(ctx context.Context, namespace string) (int, error) {
	return f.nodeCount, nil
}

func twoCliquesStore() *fakeStore {
	nodes := []model.Node{
		{ID: "a1", Namespace: "default", Name: "Alpha One"},
		{ID: "a2", Namespace: "default", Name: "Alpha Two"},
		{ID: "a3", Namespace: "default", Name: "Alpha Three"},
		{ID: "b1", Namespace: "default", Name: "Beta One"},
		{ID: "b2", Namespace: "default", Name: "Beta Two"},
		{ID: "b3", Namespace: "default", Name: "Beta Three"},
	}
	edges := []model.Edge{
		{SourceID: "a1", TargetID: "a2", Relation: model.RelRelatedTo, Confidence: 1},
		{SourceID: "a2", TargetID: "a3", Relation: model.RelRelatedTo, Confidence: 1},
		{SourceID: "a1", TargetID: "a3", Relation: model.RelRelatedTo, Confidence: 1},
		{SourceID: "b1", TargetID: "b2", Relation: model.RelRelatedTo, Confidence: 1},
		{SourceID: "b2", TargetID: "b3", Relation: model.RelRelatedTo, Confidence: 1},
		{SourceID: "b1", TargetID: "b3", Relation: model.RelRelatedTo, Confidence: 1},
		{SourceID: "a3", TargetID: "b1", Relation: model.RelRelatedTo, Confidence: 0.1},
	}
	return &fakeStore{nodes: nodes, edges: edges}
}

func TestGetClusters_SeparatesTwoDenseCliques(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 15, 20000)

	result, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)
	require.Len(t, result.Clusters, 2)
	assert.Equal(t, 3, result.Clusters[0].Size)
	assert.Equal(t, 3, result.Clusters[1].Size)
	require.NotNil(t, result.Modularity)
	assert.Greater(t, *result.Modularity, 0.0)
}

func TestGetClusters_EmptyNamespaceReturnsEmptyResult(t *testing.T) {
	svc := New(&fakeStore{}, 15, 20000)

	result, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)
	assert.Empty(t, result.Clusters)
	assert.Equal(t, float64(0), result.Stats["nodes"])
}

func TestGetClusters_CachesWithinTTL(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 15, 20000)

	first, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	s.nodes = append(s.nodes, model.Node{ID: "c1", Namespace: "default", Name: "Gamma"})
	second, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
}

func TestGetClusters_ForceRecomputes(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 15, 20000)

	first, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	second, err := svc.GetClusters(context.Background(), "default", true)
	require.NoError(t, err)
	assert.True(t, second.GeneratedAt.After(first.GeneratedAt))
}

func TestSummarizeClusters_FallsBackToHeuristicWithNilLLM(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 15, 20000)

	_, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	summaries, err := svc.SummarizeClusters(context.Background(), "default", []string{"c1"}, 100, nil, 400)
	require.NoError(t, err)
	require.Contains(t, summaries, "c1")
	assert.NotEmpty(t, summaries["c1"].Label)
}

func TestSummarizeClusters_RateLimitExceeded(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 1, 20000)

	_, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	_, err = svc.SummarizeClusters(context.Background(), "default", []string{"c1"}, 100, nil, 400)
	require.NoError(t, err)

	summaries, err := svc.SummarizeClusters(context.Background(), "default", []string{"c2"}, 100, nil, 400)
	require.NoError(t, err)
	assert.Equal(t, "Rate limit exceeded; try later.", summaries["c2"].Summary)
}

func TestSummarizeClusters_BudgetExhausted(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 15, 0)

	_, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	summaries, err := svc.SummarizeClusters(context.Background(), "default", []string{"c1"}, 100, nil, 400)
	require.NoError(t, err)
	assert.Equal(t, "Budget exhausted; skipping summary.", summaries["c1"].Summary)
}

func TestSummarizeClusters_CacheHitOnMatchingTopTermsHash(t *testing.T) {
	s := twoCliquesStore()
	svc := New(s, 15, 20000)

	_, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	calls := 0
	llmFn := func(ctx context.Context, topTerms, sampleEntities []string, maxTokens int) (string, string, error) {
		calls++
		return "Label", "Summary", nil
	}

	_, err = svc.SummarizeClusters(context.Background(), "default", []string{"c1"}, 100, llmFn, 400)
	require.NoError(t, err)
	_, err = svc.SummarizeClusters(context.Background(), "default", []string{"c1"}, 100, llmFn, 400)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTopTermsOf_FiltersByLengthAndRanksByFrequency(t *testing.T) {
	nodes := []model.Node{
		{Name: "kubernetes kubernetes docker"},
		{Name: "kubernetes a"},
	}
	terms := topTermsOf(nodes)
	require.NotEmpty(t, terms)
	assert.Equal(t, "kubernetes", terms[0])
	for _, term := range terms {
		assert.NotEqual(t, "a", term)
	}
}

func TestTriggerBackgroundRecompute_SkipsWhenNoGrowth(t *testing.T) {
	s := twoCliquesStore()
	s.nodeCount = 6
	svc := New(s, 15, 20000)

	first, err := svc.GetClusters(context.Background(), "default", false)
	require.NoError(t, err)

	svc.TriggerBackgroundRecompute(context.Background(), "default")
	time.Sleep(10 * time.Millisecond)

	svc.mu.Lock()
	cached := svc.cache["default"]
	svc.mu.Unlock()
	assert.Equal(t, first.GeneratedAt, cached.GeneratedAt, "no growth must not recompute")
}

func TestNewWithRedis_EmptyURLFallsBackToInProcess(t *testing.T) {
	svc, err := NewWithRedis(twoCliquesStore(), 15, 20000, "")
	require.NoError(t, err)

	_, ok := svc.rates.(*rateWindow)
	assert.True(t, ok, "expected the in-process rateWindow when redisURL is empty")
}

func TestNewWithRedis_InvalidURLErrors(t *testing.T) {
	_, err := NewWithRedis(twoCliquesStore(), 15, 20000, "not a redis url")
	assert.Error(t, err)
}
