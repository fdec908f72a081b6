package path

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

type fakeStore struct {
	store.Store
	nodes map[string]model.Node
	edges []model.Edge
}

func (f *fakeStore) ScanEdges(ctx context.Context, filter store.EdgeFilter) ([]model.Edge, error) {
	return f.edges, nil
}

func (f *fakeStore) ScanNodes(ctx context.Context, filter store.NodeFilter) ([]model.Node, error) {
	if len(filter.IDs) == 0 {
		return nil, nil
	}
	node, ok := f.nodes[filter.IDs[0]]
	if !ok {
		return nil, nil
	}
	return []model.Node{node}, nil
}

func node(id string) model.Node { return model.Node{ID: id, Namespace: "default"} }

func edge(from, to string) model.Edge { return model.Edge{SourceID: from, TargetID: to} }

func TestShortestPath_DirectNeighbor(t *testing.T) {
	s := &fakeStore{
		nodes: map[string]model.Node{"a": node("a"), "b": node("b")},
		edges: []model.Edge{edge("a", "b")},
	}
	pf := New(s, nil)

	nodes, ok, err := pf.ShortestPath(context.Background(), "default", "a", "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids(nodes))
}

func TestShortestPath_MultiHop(t *testing.T) {
	s := &fakeStore{
		nodes: map[string]model.Node{"a": node("a"), "b": node("b"), "c": node("c")},
		edges: []model.Edge{edge("a", "b"), edge("b", "c")},
	}
	pf := New(s, nil)

	nodes, ok, err := pf.ShortestPath(context.Background(), "default", "a", "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, ids(nodes))
}

func TestShortestPath_NoPath(t *testing.T) {
	s := &fakeStore{
		nodes: map[string]model.Node{"a": node("a"), "z": node("z")},
		edges: nil,
	}
	pf := New(s, nil)

	_, ok, err := pf.ShortestPath(context.Background(), "default", "a", "z")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShortestPath_SameNode(t *testing.T) {
	s := &fakeStore{nodes: map[string]model.Node{"a": node("a")}}
	pf := New(s, nil)

	nodes, ok, err := pf.ShortestPath(context.Background(), "default", "a", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ids(nodes))
}

func TestShortestPath_UsesNativeProbeWhenAvailable(t *testing.T) {
	s := &fakeStore{nodes: map[string]model.Node{}}
	called := false
	probe := func(ctx context.Context, namespace, fromID, toID string) ([]model.Node, bool, error) {
		called = true
		return []model.Node{node("a"), node("b")}, true, nil
	}
	pf := New(s, probe)

	nodes, ok, err := pf.ShortestPath(context.Background(), "default", "a", "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, called)
	assert.Equal(t, []string{"a", "b"}, ids(nodes))
}

func ids(nodes []model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
