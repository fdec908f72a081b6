package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/retrieval"
	"github.com/siherrmann/graphrag/store"
)

func artifactSource(art *Artifact) ArtifactSource {
	return func(ctx context.Context, namespace string) (*Artifact, error) {
		return art, nil
	}
}

func TestQuery_AutoResolvesToGlobalForShortQuery(t *testing.T) {
	art := &Artifact{
		Version: "v1",
		Entities: []ArtifactEntity{
			{ID: "e1", Name: "Kubernetes"},
		},
	}
	a := New(nil, artifactSource(art), nil)

	result, err := a.Query(context.Background(), model.QueryConfig{Query: "kubernetes", Mode: model.ModeAuto, TopK: 5, Namespace: "default"})
	require.NoError(t, err)
	assert.Equal(t, model.ModeGlobal, result.ModeUsed)
	assert.NotEmpty(t, result.ReasoningChain)
}

func TestQuery_AutoResolvesToLocalForLongQuery(t *testing.T) {
	art := &Artifact{Version: "v1"}
	a := New(nil, artifactSource(art), nil)

	result, err := a.Query(context.Background(), model.QueryConfig{
		Query: "what is the relationship between kubernetes and docker containers today",
		Mode:  model.ModeAuto, TopK: 5, Namespace: "default",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModeLocal, result.ModeUsed)
}

func TestQuery_ScoresByOverlapAndDegree(t *testing.T) {
	art := &Artifact{
		Version: "v1",
		Entities: []ArtifactEntity{
			{ID: "e1", Name: "Kubernetes"},
			{ID: "e2", Name: "Unrelated Thing"},
		},
		Relations: []ArtifactRelation{
			{SourceID: "e1", TargetID: "e2", Relation: model.RelRelatedTo},
		},
	}
	a := New(nil, artifactSource(art), nil)

	result, err := a.Query(context.Background(), model.QueryConfig{Query: "kubernetes", Mode: model.ModeGlobal, TopK: 5, Namespace: "default"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "e1", result.Results[0].Node.ID)
	assert.Greater(t, result.Results[0].Overlap, 0.0)
}

func TestQuery_TruncatesToTopK(t *testing.T) {
	art := &Artifact{
		Version: "v1",
		Entities: []ArtifactEntity{
			{ID: "e1", Name: "Alpha"},
			{ID: "e2", Name: "Alpha Two"},
			{ID: "e3", Name: "Alpha Three"},
		},
	}
	a := New(nil, artifactSource(art), nil)

	result, err := a.Query(context.Background(), model.QueryConfig{Query: "alpha", Mode: model.ModeGlobal, TopK: 1, Namespace: "default"})
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
}

func TestQuery_FallsBackToRetrieverWhenNoArtifactSource(t *testing.T) {
	s := &fakeRetrieverStore{
		nodes: []model.Node{{ID: "n1", Namespace: "default", Label: "Entity", Name: "Kubernetes"}},
	}
	engine := retrieval.New(s, nil, nil)
	a := New(engine, nil, nil)

	result, err := a.Query(context.Background(), model.QueryConfig{Query: "Kubernetes", Mode: model.ModeGlobal, TopK: 5, Namespace: "default"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
}

type fakeRetrieverStore struct {
	store.Store
	nodes []model.Node
}

func (f *fakeRetrieverStore) ScanNodes(ctx context.Context, filter store.NodeFilter) ([]model.Node, error) {
	return f.nodes, nil
}

func (f *fakeRetrieverStore) IncidentEdges(ctx context.Context, namespace string, nodeIDs []string, limit int) ([]model.Edge, error) {
	return nil, nil
}
