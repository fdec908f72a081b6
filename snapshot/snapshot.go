// Package snapshot implements the Snapshot Service (spec §4.10): append-only
// point-in-time graph metric records and their pairwise diff, a thin
// store.Store-backed service analogous in shape to the teacher's small
// *DBHandler wrappers.
package snapshot

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/siherrmann/graphrag/cluster"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

// ErrNotFound is returned by Diff when either snapshot id is unknown.
var ErrNotFound = fmt.Errorf("snapshot not found")

// Service is the Snapshot Service.
type Service struct {
	store    store.Store
	clusters *cluster.Service
}

// New builds a Service. clusters may be nil, in which case CreateSnapshot
// persists a nil modularity and an empty cluster-size histogram.
func New(s store.Store, clusters *cluster.Service) *Service {
	return &Service{store: s, clusters: clusters}
}

// CreateSnapshot implements create_snapshot(namespace) (spec §4.10): counts
// namespace nodes/edges, takes the last known modularity and cluster-size
// histogram from the cluster cache (without forcing a recompute), and
// persists the result.
func (s *Service) CreateSnapshot(ctx context.Context, namespace string) (model.Snapshot, error) {
	nodeCount, err := s.store.CountNodes(ctx, namespace)
	if err != nil {
		return model.Snapshot{}, err
	}
	edgeCount, err := s.store.CountEdges(ctx, namespace)
	if err != nil {
		return model.Snapshot{}, err
	}

	var modularity *float64
	clusterSizes := map[string]interface{}{}
	if s.clusters != nil {
		if result, err := s.clusters.GetClusters(ctx, namespace, false); err == nil {
			modularity = result.Modularity
			for _, c := range result.Clusters {
				clusterSizes[c.ID] = c.Size
			}
		}
	}

	snap := model.Snapshot{
		ID:         uuid.NewString(),
		Namespace:  namespace,
		NodeCount:  nodeCount,
		EdgeCount:  edgeCount,
		Modularity: modularity,
		Metadata:   model.Properties{"cluster_sizes": clusterSizes},
	}

	return s.store.InsertSnapshot(ctx, snap)
}

// ListSnapshots implements list_snapshots(namespace, limit) (spec §4.10):
// most recent first.
func (s *Service) ListSnapshots(ctx context.Context, namespace string, limit int) ([]model.Snapshot, error) {
	return s.store.ListSnapshots(ctx, namespace, limit)
}

// DiffSnapshots implements diff_snapshots(a, b) (spec §4.10).
func (s *Service) DiffSnapshots(ctx context.Context, idA, idB string) (model.SnapshotDiff, error) {
	a, err := s.store.GetSnapshot(ctx, idA)
	if err != nil {
		return model.SnapshotDiff{}, err
	}
	if a == nil {
		return model.SnapshotDiff{}, ErrNotFound
	}

	b, err := s.store.GetSnapshot(ctx, idB)
	if err != nil {
		return model.SnapshotDiff{}, err
	}
	if b == nil {
		return model.SnapshotDiff{}, ErrNotFound
	}

	return a.Diff(*b), nil
}
