package snapshot

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
	nodeCount int
	edgeCount int
	snapshots map[string]model.Snapshot
	nextID    int
}

func (f *fakeStore) CountNodes(ctx context.Context, namespace string) (int, error) { return f.nodeCount, nil }
func (f *fakeStore) CountEdges(ctx context.Context, namespace string) (int, error) { return f.edgeCount, nil }

func (f *fakeStore) InsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if f.snapshots == nil {
		f.snapshots = make(map[string]model.Snapshot)
	}
	f.nextID++
	snap.ID = "snap" + string(rune('0'+f.nextID))
	f.snapshots[snap.ID] = snap
	return snap, nil
}

func (f *fakeStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	s, ok := f.snapshots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) ListSnapshots(ctx context.Context, namespace string, limit int) ([]model.Snapshot, error) {
	var out []model.Snapshot
	for _, s := range f.snapshots {
		out = append(out, s)
	}
	return out, nil
}

func TestCreateSnapshot_CountsNodesAndEdges(t *testing.T) {
	s := &fakeStore{nodeCount: 10, edgeCount: 20}
	svc := New(s, nil)

	snap, err := svc.CreateSnapshot(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.NodeCount)
	assert.Equal(t, 20, snap.EdgeCount)
	assert.Nil(t, snap.Modularity)
	assert.NotEmpty(t, snap.ID)
}

func TestDiffSnapshots_ReturnsNotFoundForMissingID(t *testing.T) {
	s := &fakeStore{}
	svc := New(s, nil)

	_, err := svc.DiffSnapshots(context.Background(), "missing-a", "missing-b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiffSnapshots_ComputesDeltas(t *testing.T) {
	s := &fakeStore{nodeCount: 10, edgeCount: 20}
	svc := New(s, nil)
	a, err := svc.CreateSnapshot(context.Background(), "default")
	require.NoError(t, err)

	s.nodeCount = 15
	s.edgeCount = 22
	b, err := svc.CreateSnapshot(context.Background(), "default")
	require.NoError(t, err)

	diff, err := svc.DiffSnapshots(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, diff.DeltaNodes)
	assert.Equal(t, 2, diff.DeltaEdges)
}

func TestDiffSnapshots_SymmetricByNegation(t *testing.T) {
	s := &fakeStore{nodeCount: 10, edgeCount: 20}
	svc := New(s, nil)
	a, err := svc.CreateSnapshot(context.Background(), "default")
	require.NoError(t, err)

	s.nodeCount = 15
	s.edgeCount = 22
	b, err := svc.CreateSnapshot(context.Background(), "default")
	require.NoError(t, err)

	forward, err := svc.DiffSnapshots(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	backward, err := svc.DiffSnapshots(context.Background(), b.ID, a.ID)
	require.NoError(t, err)

	assert.Equal(t, forward.DeltaNodes, -backward.DeltaNodes)
	assert.Equal(t, forward.DeltaEdges, -backward.DeltaEdges)
}

func TestListSnapshots_ReturnsStoredSnapshots(t *testing.T) {
	s := &fakeStore{nodeCount: 1, edgeCount: 1}
	svc := New(s, nil)
	_, err := svc.CreateSnapshot(context.Background(), "default")
	require.NoError(t, err)

	list, err := svc.ListSnapshots(context.Background(), "default", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
