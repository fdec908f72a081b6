// Package postgres implements store.Store on top of a single relational
// instance, following the teacher's handler-wraps-*sql.DB idiom: every
// group of SQL functions is loaded and verified once at construction, then
// called by name from Go methods instead of building SQL ad hoc.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/siherrmann/graphrag/internal/errs"
	"github.com/siherrmann/graphrag/internal/pgdb"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

// Store is the relational implementation of store.Store.
type Store struct {
	db *pgdb.Database
}

// New loads and verifies every concern's SQL functions against db, then
// returns a ready-to-use Store.
func New(ctx context.Context, db *pgdb.Database, force bool) (*Store, error) {
	if db == nil {
		return nil, errs.New(errs.ConfigError, "new postgres store", fmt.Errorf("nil database"))
	}
	if err := loadAll(db.Instance, force, db.Logger); err != nil {
		return nil, errs.New(errs.ConfigError, "load store sql", err)
	}
	return &Store{db: db}, nil
}

func embeddingParam(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func scanNode(row interface{ Scan(...interface{}) error }) (model.Node, error) {
	var n model.Node
	var sourceIDs pq.StringArray
	var embedding *pgvector.Vector
	err := row.Scan(&n.ID, &n.Label, &n.Name, &n.Namespace, &n.Properties, &sourceIDs, &embedding, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, err
	}
	n.SourceIDs = []string(sourceIDs)
	if embedding != nil {
		n.Embedding = embedding.Slice()
	}
	return n, nil
}

func scanEdge(row interface{ Scan(...interface{}) error }) (model.Edge, error) {
	var e model.Edge
	var namespace string
	err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Confidence, &namespace, &e.Properties, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	if e.Properties == nil {
		e.Properties = model.Properties{}
	}
	e.Properties["namespace"] = namespace
	return e, nil
}

func (s *Store) UpsertNodes(ctx context.Context, nodes []model.Node) error {
	tx, err := s.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreFailure, "begin upsert_nodes", err)
	}
	defer tx.Rollback()

	for _, n := range nodes {
		props := n.Properties.Clone()
		props["namespace"] = n.Namespace
		row := tx.QueryRowContext(ctx,
			`SELECT * FROM upsert_node($1, $2, $3, $4, $5, $6, $7)`,
			n.ID, n.Label, n.Name, n.Namespace, props, pq.Array(n.SourceIDs), embeddingParam(n.Embedding),
		)
		if _, err := scanNode(row); err != nil {
			return errs.New(errs.StoreFailure, "upsert_node", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreFailure, "commit upsert_nodes", err)
	}
	return nil
}

func (s *Store) UpsertEdges(ctx context.Context, edges []model.Edge) error {
	tx, err := s.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreFailure, "begin upsert_edges", err)
	}
	defer tx.Rollback()

	for _, e := range edges {
		row := tx.QueryRowContext(ctx,
			`SELECT * FROM upsert_edge($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.SourceID, e.TargetID, e.Relation, e.Confidence, e.Namespace(), e.Properties,
		)
		if _, err := scanEdge(row); err != nil {
			return errs.New(errs.StoreFailure, "upsert_edge", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreFailure, "commit upsert_edges", err)
	}
	return nil
}

func (s *Store) DeleteDocScoped(ctx context.Context, namespace, docID string) error {
	tx, err := s.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreFailure, "begin delete_doc_scoped", err)
	}
	defer tx.Rollback()

	var removed pq.StringArray
	row := tx.QueryRowContext(ctx, `SELECT delete_nodes_by_prefix($1)`, docID)
	if err := row.Scan(&removed); err != nil {
		return errs.New(errs.StoreFailure, "delete_nodes_by_prefix", err)
	}

	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx, `SELECT delete_edges_touching($1)`, pq.Array([]string(removed))); err != nil {
			return errs.New(errs.StoreFailure, "delete_edges_touching", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreFailure, "commit delete_doc_scoped", err)
	}
	return nil
}

func (s *Store) FindNodeByName(ctx context.Context, namespace, name string) (*model.Node, error) {
	row := s.db.Instance.QueryRowContext(ctx, `SELECT * FROM find_node_by_name($1, $2)`, namespace, name)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "find_node_by_name", err)
	}
	return &n, nil
}

func (s *Store) ScanNodes(ctx context.Context, filter store.NodeFilter) ([]model.Node, error) {
	var namespace, nameSub interface{}
	if filter.Namespace != "" {
		namespace = filter.Namespace
	}
	if filter.NameSubstring != "" {
		nameSub = filter.NameSubstring
	}

	rows, err := s.db.Instance.QueryContext(ctx,
		`SELECT * FROM scan_nodes($1, $2, $3, $4, $5)`,
		namespace, nullableArray(filter.Labels), nullableArray(filter.IDs), nameSub, filter.Limit,
	)
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "scan_nodes", err)
	}
	defer rows.Close()

	var out []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errs.New(errs.StoreFailure, "scan_nodes scan", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) ScanEdges(ctx context.Context, filter store.EdgeFilter) ([]model.Edge, error) {
	var namespace interface{}
	if filter.Namespace != "" {
		namespace = filter.Namespace
	}

	rows, err := s.db.Instance.QueryContext(ctx,
		`SELECT * FROM scan_edges($1, $2, $3, $4)`,
		namespace, nullableArray(filter.Relations), nullableArray(filter.NodeIDs), filter.Limit,
	)
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "scan_edges", err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, errs.New(errs.StoreFailure, "scan_edges scan", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) IncidentEdges(ctx context.Context, namespace string, nodeIDs []string, limit int) ([]model.Edge, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM incident_edges($1, $2, $3)`, namespace, pq.Array(nodeIDs), limit)
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "incident_edges", err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, errs.New(errs.StoreFailure, "incident_edges scan", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountNodes(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.Instance.QueryRowContext(ctx, `SELECT count_nodes($1)`, namespace).Scan(&n)
	if err != nil {
		return 0, errs.New(errs.StoreFailure, "count_nodes", err)
	}
	return n, nil
}

func (s *Store) CountEdges(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.Instance.QueryRowContext(ctx, `SELECT count_edges($1)`, namespace).Scan(&n)
	if err != nil {
		return 0, errs.New(errs.StoreFailure, "count_edges", err)
	}
	return n, nil
}

func (s *Store) BulkReset(ctx context.Context) error {
	tx, err := s.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreFailure, "begin bulk_reset", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`SELECT bulk_reset_edges()`, `SELECT bulk_reset_nodes()`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errs.New(errs.StoreFailure, "bulk_reset", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `TRUNCATE graphrag_cluster_memberships, graphrag_cluster_summaries, graphrag_snapshots, graphrag_ingest_log`); err != nil {
		return errs.New(errs.StoreFailure, "bulk_reset auxiliary tables", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreFailure, "commit bulk_reset", err)
	}
	return nil
}

func nullableArray(items []string) interface{} {
	if len(items) == 0 {
		return nil
	}
	return pq.Array(items)
}

// --- Ingest log ---

func (s *Store) UpsertIngestLogEntry(ctx context.Context, entry model.IngestLogEntry) error {
	_, err := s.db.Instance.ExecContext(ctx,
		`SELECT upsert_ingest_log_entry($1, $2, $3, $4, $5)`,
		entry.DocID, entry.Namespace, entry.ContentHash, entry.Status, entry.Meta,
	)
	if err != nil {
		return errs.New(errs.StoreFailure, "upsert_ingest_log_entry", err)
	}
	return nil
}

func (s *Store) GetIngestLogEntry(ctx context.Context, namespace, docID string) (*model.IngestLogEntry, error) {
	row := s.db.Instance.QueryRowContext(ctx, `SELECT * FROM get_ingest_log_entry($1, $2)`, namespace, docID)
	var e model.IngestLogEntry
	err := row.Scan(&e.DocID, &e.Namespace, &e.ContentHash, &e.Status, &e.FirstSeenAt, &e.LastIngestAt, &e.LastIndexedAt, &e.Meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "get_ingest_log_entry", err)
	}
	return &e, nil
}

func (s *Store) ListStaleDocs(ctx context.Context, namespace string) ([]model.IngestLogEntry, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM list_stale_docs($1)`, namespace)
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "list_stale_docs", err)
	}
	defer rows.Close()

	var out []model.IngestLogEntry
	for rows.Next() {
		var e model.IngestLogEntry
		if err := rows.Scan(&e.DocID, &e.Namespace, &e.ContentHash, &e.Status, &e.FirstSeenAt, &e.LastIngestAt, &e.LastIndexedAt, &e.Meta); err != nil {
			return nil, errs.New(errs.StoreFailure, "list_stale_docs scan", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountDocs(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.Instance.QueryRowContext(ctx, `SELECT count_docs($1)`, namespace).Scan(&n)
	if err != nil {
		return 0, errs.New(errs.StoreFailure, "count_docs", err)
	}
	return n, nil
}

func (s *Store) MarkIndexed(ctx context.Context, namespace, docID string, at time.Time) error {
	_, err := s.db.Instance.ExecContext(ctx, `SELECT mark_indexed($1, $2, $3)`, namespace, docID, at)
	if err != nil {
		return errs.New(errs.StoreFailure, "mark_indexed", err)
	}
	return nil
}

// --- Clusters ---

func (s *Store) ReplaceClusterMemberships(ctx context.Context, namespace, algorithm string, memberships []model.ClusterMembership) error {
	nodeIDs := make([]string, len(memberships))
	clusterIDs := make([]string, len(memberships))
	scores := make([]float64, len(memberships))
	for i, m := range memberships {
		nodeIDs[i] = m.NodeID
		clusterIDs[i] = m.ClusterID
		scores[i] = m.Score
	}

	_, err := s.db.Instance.ExecContext(ctx,
		`SELECT replace_cluster_memberships($1, $2, $3, $4, $5)`,
		namespace, algorithm, pq.Array(nodeIDs), pq.Array(clusterIDs), pq.Array(scores),
	)
	if err != nil {
		return errs.New(errs.StoreFailure, "replace_cluster_memberships", err)
	}
	return nil
}

func (s *Store) ListClusterMemberships(ctx context.Context, namespace, algorithm string) ([]model.ClusterMembership, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM list_cluster_memberships($1, $2)`, namespace, algorithm)
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "list_cluster_memberships", err)
	}
	defer rows.Close()

	var out []model.ClusterMembership
	for rows.Next() {
		var id int64
		var m model.ClusterMembership
		var score sql.NullFloat64
		if err := rows.Scan(&id, &m.NodeID, &m.ClusterID, &m.Namespace, &m.Algorithm, &score); err != nil {
			return nil, errs.New(errs.StoreFailure, "list_cluster_memberships scan", err)
		}
		if score.Valid {
			m.Score = score.Float64
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) UpsertClusterSummary(ctx context.Context, summary model.ClusterSummary) error {
	summary = summary.Truncated()
	_, err := s.db.Instance.ExecContext(ctx,
		`SELECT upsert_cluster_summary($1, $2, $3, $4, $5, $6, $7)`,
		summary.ClusterID, summary.Namespace, summary.Algorithm, summary.TopTermsHash,
		summary.Label, summary.Summary, summary.TokenCount,
	)
	if err != nil {
		return errs.New(errs.StoreFailure, "upsert_cluster_summary", err)
	}
	return nil
}

func (s *Store) GetClusterSummary(ctx context.Context, namespace, clusterID, algorithm string) (*model.ClusterSummary, error) {
	row := s.db.Instance.QueryRowContext(ctx, `SELECT * FROM get_cluster_summary($1, $2, $3)`, namespace, clusterID, algorithm)
	var id int64
	var sum model.ClusterSummary
	var createdAt time.Time
	err := row.Scan(&id, &sum.ClusterID, &sum.Namespace, &sum.Algorithm, &sum.TopTermsHash, &sum.Label, &sum.Summary, &sum.TokenCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "get_cluster_summary", err)
	}
	return &sum, nil
}

// --- Snapshots ---

func (s *Store) InsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	row := s.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM insert_snapshot($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.Namespace, snap.NodeCount, snap.EdgeCount, snap.Modularity, snap.Metadata,
	)
	var out model.Snapshot
	err := row.Scan(&out.ID, &out.Namespace, &out.NodeCount, &out.EdgeCount, &out.Modularity, &out.Metadata, &out.CreatedAt)
	if err != nil {
		return model.Snapshot{}, errs.New(errs.StoreFailure, "insert_snapshot", err)
	}
	return out, nil
}

func (s *Store) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.db.Instance.QueryRowContext(ctx, `SELECT * FROM get_snapshot($1)`, id)
	var out model.Snapshot
	err := row.Scan(&out.ID, &out.Namespace, &out.NodeCount, &out.EdgeCount, &out.Modularity, &out.Metadata, &out.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "get_snapshot", err)
	}
	return &out, nil
}

func (s *Store) ListSnapshots(ctx context.Context, namespace string, limit int) ([]model.Snapshot, error) {
	rows, err := s.db.Instance.QueryContext(ctx, `SELECT * FROM list_snapshots($1, $2)`, namespace, limit)
	if err != nil {
		return nil, errs.New(errs.StoreFailure, "list_snapshots", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Namespace, &snap.NodeCount, &snap.EdgeCount, &snap.Modularity, &snap.Metadata, &snap.CreatedAt); err != nil {
			return nil, errs.New(errs.StoreFailure, "list_snapshots scan", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

var _ store.Store = (*Store)(nil)
