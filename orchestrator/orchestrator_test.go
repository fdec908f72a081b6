package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

type fakeStore struct {
	store.Store

	staleDocs      []model.IngestLogEntry
	totalDocs      int
	nodes          []model.Node
	edges          []model.Edge
	upsertedNodes  []model.Node
	upsertedEdges  []model.Edge
	indexedDocIDs  []string
	memberships    []model.ClusterMembership
	summaries      map[string]model.ClusterSummary
}

func (f *fakeStore) ListStaleDocs(ctx context.Context, namespace string) ([]model.IngestLogEntry, error) {
	return f.staleDocs, nil
}

func (f *fakeStore) CountDocs(ctx context.Context, namespace string) (int, error) {
	return f.totalDocs, nil
}

func (f *fakeStore) MarkIndexed(ctx context.Context, namespace, docID string, at time.Time) error {
	f.indexedDocIDs = append(f.indexedDocIDs, docID)
	return nil
}

func (f *fakeStore) ScanNodes(ctx context.Context, filter store.NodeFilter) ([]model.Node, error) {
	return f.nodes, nil
}

func (f *fakeStore) IncidentEdges(ctx context.Context, namespace string, nodeIDs []string, limit int) ([]model.Edge, error) {
	return f.edges, nil
}

func (f *fakeStore) FindNodeByName(ctx context.Context, namespace, name string) (*model.Node, error) {
	return nil, nil
}

func (f *fakeStore) UpsertNodes(ctx context.Context, nodes []model.Node) error {
	f.upsertedNodes = append(f.upsertedNodes, nodes...)
	return nil
}

func (f *fakeStore) UpsertEdges(ctx context.Context, edges []model.Edge) error {
	f.upsertedEdges = append(f.upsertedEdges, edges...)
	return nil
}

func (f *fakeStore) ReplaceClusterMemberships(ctx context.Context, namespace, algorithm string, memberships []model.ClusterMembership) error {
	f.memberships = memberships
	return nil
}

func (f *fakeStore) ListClusterMemberships(ctx context.Context, namespace, algorithm string) ([]model.ClusterMembership, error) {
	return nil, nil
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

func oneEntityStore() *fakeStore {
	return &fakeStore{
		staleDocs: []model.IngestLogEntry{{DocID: "doc-1", Namespace: "default"}},
		totalDocs: 1,
		nodes: []model.Node{
			{ID: "n1", Label: model.LabelEntity, Name: "Acme Corp", Namespace: "default"},
		},
	}
}

func TestOrchestrate_NoopWhenNoStaleDocsAndNotForced(t *testing.T) {
	s := &fakeStore{}
	o := New(s, t.TempDir(), nil)

	result := o.Orchestrate(context.Background(), "default", Options{})
	assert.Equal(t, StatusNoop, result.Status)
}

func TestOrchestrate_DryRunShortCircuitsBeforeStaging(t *testing.T) {
	s := oneEntityStore()
	o := New(s, t.TempDir(), nil)

	result := o.Orchestrate(context.Background(), "default", Options{DryRun: true})
	assert.Equal(t, StatusDryRun, result.Status)
	assert.Empty(t, result.StagingDir)
}

func TestOrchestrate_LockedWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	s := oneEntityStore()
	o := New(s, dir, nil)

	holder := flock.New(filepath.Join(dir, lockFileName))
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.Unlock()

	result := o.Orchestrate(context.Background(), "default", Options{})
	assert.Equal(t, StatusLocked, result.Status)
}

func TestOrchestrate_FallbackImportsEntitiesAndMarksIndexed(t *testing.T) {
	s := oneEntityStore()
	o := New(s, t.TempDir(), nil)

	result := o.Orchestrate(context.Background(), "default", Options{GeminiFallback: true})
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []string{"doc-1"}, s.indexedDocIDs)
	assert.Len(t, s.upsertedNodes, 1)
	assert.Equal(t, "Acme Corp", s.upsertedNodes[0].Name)
	assert.Equal(t, 1, result.DeltaNodes)
}

func TestOrchestrate_FailsWhenNoPipelineAvailable(t *testing.T) {
	s := oneEntityStore()
	o := New(s, t.TempDir(), nil)

	result := o.Orchestrate(context.Background(), "default", Options{GeminiFallback: false})
	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestOrchestrate_PruneKeepsOnlyMostRecentRuns(t *testing.T) {
	dir := t.TempDir()
	s := oneEntityStore()
	o := New(s, dir, nil)

	for i := 0; i < 3; i++ {
		s.staleDocs = []model.IngestLogEntry{{DocID: "doc-1", Namespace: "default"}}
		result := o.Orchestrate(context.Background(), "default", Options{GeminiFallback: true, Keep: 2})
		require.Equal(t, StatusSuccess, result.Status)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	runCount := 0
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) > 4 && e.Name()[:4] == "run-" {
			runCount++
		}
	}
	assert.LessOrEqual(t, runCount, 2)
}

type stubRunner struct {
	available bool
	write     func(stagingDir string) error
}

func (r *stubRunner) Available() bool { return r.available }
func (r *stubRunner) Run(ctx context.Context, stagingDir string, docIDs []string) error {
	return r.write(stagingDir)
}

func TestOrchestrate_PartialWhenOptionalArtifactsMissing(t *testing.T) {
	s := oneEntityStore()
	runner := &stubRunner{
		available: true,
		write: func(stagingDir string) error {
			return WriteArtifactSet(stagingDir, ArtifactSet{
				Entities:      []ArtifactEntity{{ID: "n1", Name: "Acme Corp", Label: model.LabelEntity}},
				Relationships: []ArtifactRelationship{},
			})
		},
	}
	o := New(s, t.TempDir(), runner)

	result := o.Orchestrate(context.Background(), "default", Options{})
	assert.Equal(t, StatusPartial, result.Status)
}

func TestOrchestrate_ImportFailedWhenArtifactUnreadable(t *testing.T) {
	s := oneEntityStore()
	runner := &stubRunner{
		available: true,
		write: func(stagingDir string) error {
			return nil // no artifact files written at all
		},
	}
	o := New(s, t.TempDir(), runner)

	result := o.Orchestrate(context.Background(), "default", Options{})
	assert.Equal(t, StatusImportFailed, result.Status)
}
