package postgres

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed sql/init.sql
var initSQL string

//go:embed sql/nodes.sql
var nodesSQL string

//go:embed sql/edges.sql
var edgesSQL string

//go:embed sql/clusters.sql
var clustersSQL string

//go:embed sql/snapshots.sql
var snapshotsSQL string

//go:embed sql/ingestlog.sql
var ingestLogSQL string

// Function lists used to verify a concern's SQL loaded successfully,
// following the teacher's sql.checkFunctions idiom.
var (
	nodesFunctions = []string{
		"init_nodes", "upsert_node", "find_node_by_name", "scan_nodes",
		"count_nodes", "delete_nodes_by_prefix", "bulk_reset_nodes",
	}
	edgesFunctions = []string{
		"init_edges", "upsert_edge", "scan_edges", "incident_edges",
		"count_edges", "delete_edges_touching", "bulk_reset_edges",
	}
	clustersFunctions = []string{
		"init_clusters", "replace_cluster_memberships", "list_cluster_memberships",
		"upsert_cluster_summary", "get_cluster_summary",
	}
	snapshotsFunctions = []string{
		"init_snapshots", "insert_snapshot", "get_snapshot", "list_snapshots",
	}
	ingestLogFunctions = []string{
		"init_ingest_log", "upsert_ingest_log_entry", "get_ingest_log_entry",
		"list_stale_docs", "count_docs", "mark_indexed",
	}
)

// loadAll initializes extensions and loads every concern's SQL functions,
// verifying each against pg_proc before and after, as the teacher does.
func loadAll(db *sql.DB, force bool, logger *slog.Logger) error {
	if _, err := db.Exec(initSQL); err != nil {
		return fmt.Errorf("executing init sql: %w", err)
	}

	concerns := []struct {
		name      string
		sql       string
		functions []string
	}{
		{"nodes", nodesSQL, nodesFunctions},
		{"edges", edgesSQL, edgesFunctions},
		{"clusters", clustersSQL, clustersFunctions},
		{"snapshots", snapshotsSQL, snapshotsFunctions},
		{"ingest_log", ingestLogSQL, ingestLogFunctions},
	}

	for _, c := range concerns {
		if !force {
			exist, err := checkFunctions(db, c.functions)
			if err != nil {
				return fmt.Errorf("checking %s functions: %w", c.name, err)
			}
			if exist {
				continue
			}
		}

		if _, err := db.Exec(c.sql); err != nil {
			return fmt.Errorf("executing %s sql: %w", c.name, err)
		}

		exist, err := checkFunctions(db, c.functions)
		if err != nil {
			return fmt.Errorf("checking %s functions: %w", c.name, err)
		}
		if !exist {
			return fmt.Errorf("not all required %s functions were created", c.name)
		}

		logger.Info("loaded sql functions", "concern", c.name)
	}

	return nil
}

func checkFunctions(db *sql.DB, functions []string) (bool, error) {
	allExist := true
	for _, f := range functions {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1)`, f).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("checking existence of function %s: %w", f, err)
		}
		if !exists {
			allExist = false
			break
		}
	}
	return allExist, nil
}
