// Package store defines the persistence contract (C1) shared by every
// backend: the relational implementation in store/postgres and the
// optional graph-native one in store/graphnative.
package store

import (
	"context"
	"time"

	"github.com/siherrmann/graphrag/model"
)

// NodeFilter narrows scan_nodes. A zero-value field means "no filter on
// that dimension".
type NodeFilter struct {
	Namespace     string
	Labels        []string
	IDs           []string
	NameSubstring string
	Limit         int
}

// EdgeFilter narrows scan_edges.
type EdgeFilter struct {
	Namespace  string
	Relations  []string
	NodeIDs    []string // either endpoint matches
	Limit      int
}

// Store is the durable graph backend contract (spec §4.1).
type Store interface {
	// UpsertNodes merges nodes by primary id: properties merge shallowly,
	// embedding fills only when previously empty, namespace is set.
	UpsertNodes(ctx context.Context, nodes []model.Node) error

	// UpsertEdges inserts/updates edges by primary id. The caller is
	// responsible for not generating blind duplicates of canonical
	// derived relations.
	UpsertEdges(ctx context.Context, edges []model.Edge) error

	// DeleteDocScoped atomically removes every Chunk/Section node (and
	// incident edge) whose id is prefixed by docID's chunk/section ids.
	DeleteDocScoped(ctx context.Context, namespace, docID string) error

	ScanNodes(ctx context.Context, filter NodeFilter) ([]model.Node, error)
	ScanEdges(ctx context.Context, filter EdgeFilter) ([]model.Edge, error)

	CountNodes(ctx context.Context, namespace string) (int, error)
	CountEdges(ctx context.Context, namespace string) (int, error)

	// BulkReset wipes all graph tables; used only by the explicit reset
	// operation.
	BulkReset(ctx context.Context) error

	// IncidentEdges returns up to limit edges touching any of nodeIDs,
	// namespace-scoped (used by the Retriever to attach edges to a
	// candidate node set).
	IncidentEdges(ctx context.Context, namespace string, nodeIDs []string, limit int) ([]model.Edge, error)

	// FindNodeByName looks up a node by (lower(name), namespace) — an entity
	// is uniquely identified inside a namespace by its lowercased name alone,
	// independent of label, used for entity dedup during ingest.
	FindNodeByName(ctx context.Context, namespace, name string) (*model.Node, error)

	IngestLog
	ClusterStore
	SnapshotStore
}

// IngestLog tracks per-document indexing status (spec §3 Ingest Log).
type IngestLog interface {
	UpsertIngestLogEntry(ctx context.Context, entry model.IngestLogEntry) error
	GetIngestLogEntry(ctx context.Context, namespace, docID string) (*model.IngestLogEntry, error)
	ListStaleDocs(ctx context.Context, namespace string) ([]model.IngestLogEntry, error)
	CountDocs(ctx context.Context, namespace string) (int, error)
	MarkIndexed(ctx context.Context, namespace, docID string, at time.Time) error
}

// ClusterStore persists cluster memberships and cached summaries.
type ClusterStore interface {
	ReplaceClusterMemberships(ctx context.Context, namespace, algorithm string, memberships []model.ClusterMembership) error
	ListClusterMemberships(ctx context.Context, namespace, algorithm string) ([]model.ClusterMembership, error)
	UpsertClusterSummary(ctx context.Context, summary model.ClusterSummary) error
	GetClusterSummary(ctx context.Context, namespace, clusterID, algorithm string) (*model.ClusterSummary, error)
}

// SnapshotStore persists append-only graph snapshots.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, namespace string, limit int) ([]model.Snapshot, error)
}
