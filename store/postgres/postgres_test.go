package postgres

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/siherrmann/graphrag/internal/testdb"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

var dbPort string

func TestMain(m *testing.M) {
	teardown, port, err := testdb.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}
	dbPort = port

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background(), testcontainers.StopTimeout(0)); err != nil {
			log.Fatalf("error tearing down postgres container: %v", err)
		}
	}

	if code != 0 {
		log.Fatalf("tests failed with code %d", code)
	}
}

func newStore(t *testing.T) *Store {
	testdb.SetTestDatabaseConfigEnvs(t, dbPort)
	cfg, err := testdb.NewDatabaseConfiguration()
	require.NoError(t, err)

	db := testdb.NewTestDatabase(t, cfg)
	s, err := New(context.Background(), db, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.BulkReset(context.Background())
	})

	return s
}

func TestStore_UpsertAndScanNodes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	n := model.Node{
		ID: "doc-1::chunk::0", Label: model.LabelChunk, Name: "chunk 0", Namespace: "default",
		Properties: model.Properties{"text": "hello world"},
	}
	require.NoError(t, s.UpsertNodes(ctx, []model.Node{n}))

	got, err := s.ScanNodes(ctx, store.NodeFilter{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "hello world", got[0].Properties["text"])
	require.Equal(t, "default", got[0].Properties["namespace"])
}

func TestStore_UpsertNodes_MergesPropertiesAndFillsEmbeddingOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := model.Node{ID: "e1", Label: model.LabelEntity, Name: "Acme", Namespace: "default", Properties: model.Properties{"a": "1"}}
	require.NoError(t, s.UpsertNodes(ctx, []model.Node{base}))

	withEmbedding := model.Node{ID: "e1", Label: model.LabelEntity, Name: "Acme", Namespace: "default", Properties: model.Properties{"b": "2"}, Embedding: []float32{0.1, 0.2}}
	require.NoError(t, s.UpsertNodes(ctx, []model.Node{withEmbedding}))

	got, err := s.ScanNodes(ctx, store.NodeFilter{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "1", got[0].Properties["a"])
	require.Equal(t, "2", got[0].Properties["b"])
	require.Len(t, got[0].Embedding, 2)

	// second write with a different embedding must not overwrite the first.
	other := model.Node{ID: "e1", Label: model.LabelEntity, Name: "Acme", Namespace: "default", Embedding: []float32{0.9, 0.9}}
	require.NoError(t, s.UpsertNodes(ctx, []model.Node{other}))

	got, err = s.ScanNodes(ctx, store.NodeFilter{Namespace: "default"})
	require.NoError(t, err)
	require.InDelta(t, 0.1, got[0].Embedding[0], 0.0001)
}

func TestStore_DeleteDocScoped(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	chunk := model.Node{ID: "doc-1::chunk::0", Label: model.LabelChunk, Name: "c0", Namespace: "default"}
	entity := model.Node{ID: "e1", Label: model.LabelEntity, Name: "Acme", Namespace: "default"}
	require.NoError(t, s.UpsertNodes(ctx, []model.Node{chunk, entity}))

	edge := model.Edge{ID: "ed1", SourceID: "e1", TargetID: "doc-1::chunk::0", Relation: model.RelMentionedIn, Properties: model.Properties{"namespace": "default"}}
	require.NoError(t, s.UpsertEdges(ctx, []model.Edge{edge}))

	require.NoError(t, s.DeleteDocScoped(ctx, "default", "doc-1"))

	nodes, err := s.ScanNodes(ctx, store.NodeFilter{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "e1", nodes[0].ID)

	edges, err := s.ScanEdges(ctx, store.EdgeFilter{Namespace: "default"})
	require.NoError(t, err)
	require.Len(t, edges, 0)
}

func TestStore_IngestLog_StatusTransitions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	entry := model.IngestLogEntry{DocID: "doc-1", Namespace: "default", ContentHash: "h1", Status: model.IngestStatusIngested}
	require.NoError(t, s.UpsertIngestLogEntry(ctx, entry))

	got, err := s.GetIngestLogEntry(ctx, "default", "doc-1")
	require.NoError(t, err)
	require.Equal(t, model.IngestStatusIngested, got.Status)

	entry.Status = model.IngestStatusStale
	entry.ContentHash = "h2"
	require.NoError(t, s.UpsertIngestLogEntry(ctx, entry))

	stale, err := s.ListStaleDocs(ctx, "default")
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "h2", stale[0].ContentHash)
}
