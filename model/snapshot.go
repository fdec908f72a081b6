package model

import "time"

// Snapshot is an append-only record of a namespace's graph metrics at a
// point in time, used to compute diffs between two points in history.
type Snapshot struct {
	ID         string     `json:"id"`
	Namespace  string     `json:"namespace"`
	NodeCount  int        `json:"node_count"`
	EdgeCount  int        `json:"edge_count"`
	Modularity *float64   `json:"modularity,omitempty"`
	Metadata   Properties `json:"metadata,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ClusterSizes reads metadata["cluster_sizes"] as a cluster-id -> size map.
func (s Snapshot) ClusterSizes() map[string]int {
	out := map[string]int{}
	raw, ok := s.Metadata["cluster_sizes"]
	if !ok {
		return out
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return out
	}
	for cid, v := range m {
		switch n := v.(type) {
		case int:
			out[cid] = n
		case float64:
			out[cid] = int(n)
		}
	}
	return out
}

// SnapshotDiff is the pairwise comparison of two snapshots (spec §4.10).
type SnapshotDiff struct {
	DeltaNodes      int                 `json:"delta_nodes"`
	DeltaEdges      int                 `json:"delta_edges"`
	DeltaModularity float64             `json:"delta_modularity"`
	ClustersAdded   map[string]int      `json:"clusters_added"`
	ClustersRemoved map[string]int      `json:"clusters_removed"`
	ClusterSizeDiff map[string]int      `json:"cluster_size_delta"`
}

// Diff computes the symmetric-by-negation diff of b relative to a: calling
// a.Diff(b) and b.Diff(a) must produce delta fields that are exact negations
// of one another (spec property "snapshot diff symmetry").
func (a Snapshot) Diff(b Snapshot) SnapshotDiff {
	d := SnapshotDiff{
		DeltaNodes:      b.NodeCount - a.NodeCount,
		DeltaEdges:      b.EdgeCount - a.EdgeCount,
		ClustersAdded:   map[string]int{},
		ClustersRemoved: map[string]int{},
		ClusterSizeDiff: map[string]int{},
	}
	if a.Modularity != nil && b.Modularity != nil {
		d.DeltaModularity = *b.Modularity - *a.Modularity
	}

	sizesA := a.ClusterSizes()
	sizesB := b.ClusterSizes()
	for cid, size := range sizesB {
		if _, ok := sizesA[cid]; !ok {
			d.ClustersAdded[cid] = size
		}
	}
	for cid, size := range sizesA {
		if _, ok := sizesB[cid]; !ok {
			d.ClustersRemoved[cid] = size
		}
	}
	for cid, sizeA := range sizesA {
		if sizeB, ok := sizesB[cid]; ok {
			if delta := sizeB - sizeA; delta != 0 {
				d.ClusterSizeDiff[cid] = delta
			}
		}
	}
	return d
}
