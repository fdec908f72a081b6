// Package graphnative is the placeholder store.Store implementation for a
// property-graph backend (spec §4.1: "a graph-native implementation MUST
// expose the same operations"). No example repo in the corpus imports a
// Neo4j/Gremlin/AGE driver, and nothing in this codebase currently forces
// one open, so every method here returns an explicit "unconfigured" error
// instead of vendoring an unexercised client (see DESIGN.md).
package graphnative

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

// Store satisfies store.Store so it can be selected by configuration, but
// every method fails until a real graph-native client is wired in.
type Store struct{}

// New returns a Store stub.
func New() *Store {
	return &Store{}
}

var errUnconfigured = fmt.Errorf("graphnative: no graph-native backend configured")

func (s *Store) UpsertNodes(ctx context.Context, nodes []model.Node) error { return errUnconfigured }
func (s *Store) UpsertEdges(ctx context.Context, edges []model.Edge) error { return errUnconfigured }
func (s *Store) DeleteDocScoped(ctx context.Context, namespace, docID string) error {
	return errUnconfigured
}
func (s *Store) ScanNodes(ctx context.Context, filter store.NodeFilter) ([]model.Node, error) {
	return nil, errUnconfigured
}
func (s *Store) ScanEdges(ctx context.Context, filter store.EdgeFilter) ([]model.Edge, error) {
	return nil, errUnconfigured
}
func (s *Store) CountNodes(ctx context.Context, namespace string) (int, error) {
	return 0, errUnconfigured
}
func (s *Store) CountEdges(ctx context.Context, namespace string) (int, error) {
	return 0, errUnconfigured
}
func (s *Store) BulkReset(ctx context.Context) error { return errUnconfigured }
func (s *Store) IncidentEdges(ctx context.Context, namespace string, nodeIDs []string, limit int) ([]model.Edge, error) {
	return nil, errUnconfigured
}
func (s *Store) FindNodeByName(ctx context.Context, namespace, name string) (*model.Node, error) {
	return nil, errUnconfigured
}
func (s *Store) UpsertIngestLogEntry(ctx context.Context, entry model.IngestLogEntry) error {
	return errUnconfigured
}
func (s *Store) GetIngestLogEntry(ctx context.Context, namespace, docID string) (*model.IngestLogEntry, error) {
	return nil, errUnconfigured
}
func (s *Store) ListStaleDocs(ctx context.Context, namespace string) ([]model.IngestLogEntry, error) {
	return nil, errUnconfigured
}
func (s *Store) CountDocs(ctx context.Context, namespace string) (int, error) {
	return 0, errUnconfigured
}
func (s *Store) MarkIndexed(ctx context.Context, namespace, docID string, at time.Time) error {
	return errUnconfigured
}
func (s *Store) ReplaceClusterMemberships(ctx context.Context, namespace, algorithm string, memberships []model.ClusterMembership) error {
	return errUnconfigured
}
func (s *Store) ListClusterMemberships(ctx context.Context, namespace, algorithm string) ([]model.ClusterMembership, error) {
	return nil, errUnconfigured
}
func (s *Store) UpsertClusterSummary(ctx context.Context, summary model.ClusterSummary) error {
	return errUnconfigured
}
func (s *Store) GetClusterSummary(ctx context.Context, namespace, clusterID, algorithm string) (*model.ClusterSummary, error) {
	return nil, errUnconfigured
}
func (s *Store) InsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	return model.Snapshot{}, errUnconfigured
}
func (s *Store) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	return nil, errUnconfigured
}
func (s *Store) ListSnapshots(ctx context.Context, namespace string, limit int) ([]model.Snapshot, error) {
	return nil, errUnconfigured
}

var _ store.Store = (*Store)(nil)
