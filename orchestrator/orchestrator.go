// Package orchestrator implements the Index Orchestrator (spec §4.11): a
// batch job that runs an external (or local fallback) GraphRAG-style
// pipeline, writes its output as a four-file CSV artifact, imports it
// idempotently into the Store, and rotates staged run directories.
//
// File-lock coordination uses github.com/gofrs/flock (already present in
// the dependency tree transitively via knights-analytics/hugot; promoted
// here to a direct dependency since the Orchestrator is the one component
// that genuinely needs an advisory file lock, matching §4.11's
// "non-blocking exclusive file lock").
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/siherrmann/graphrag/internal/tracing"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/orchestrator/externalcli"
	"github.com/siherrmann/graphrag/store"
)

// Status values for the orchestrate() state machine (spec §4.11).
const (
	StatusLocked       = "LOCKED"
	StatusNoop         = "NOOP"
	StatusDryRun       = "DRY_RUN"
	StatusGenerated    = "GENERATED"
	StatusSuccess      = "SUCCESS"
	StatusPartial      = "PARTIAL"
	StatusFailed       = "FAILED"
	StatusImportFailed = "IMPORT_FAILED"
)

const lockFileName = ".graphrag_index.lock"

// Options configures one orchestrate() call.
type Options struct {
	Force          bool
	DryRun         bool
	Since          string
	Keep           int
	GeminiFallback bool
}

// Result is orchestrate()'s return value.
type Result struct {
	Status      string  `json:"status"`
	DurationS   float64 `json:"duration_s"`
	StagingDir  string  `json:"staging_dir,omitempty"`
	Namespace   string  `json:"namespace"`
	DryRun      bool    `json:"dry_run"`
	StaleDocs   int     `json:"stale_docs"`
	TotalDocs   int     `json:"total_docs"`
	Error       string  `json:"error,omitempty"`
	ReuseNodes  float64 `json:"reuse_ratio_nodes,omitempty"`
	ReuseEdges  float64 `json:"reuse_ratio_edges,omitempty"`
	DeltaNodes  int     `json:"last_index_delta_nodes,omitempty"`
	DeltaEdges  int     `json:"last_index_delta_edges,omitempty"`
}

// Orchestrator is the Index Orchestrator.
type Orchestrator struct {
	store       store.Store
	artifactDir string
	cli         externalcli.Runner
}

// New builds an Orchestrator. artifactDir is the "artifacts/" root
// (created if absent); cli may be nil to always use the local fallback.
func New(s store.Store, artifactDir string, cli externalcli.Runner) *Orchestrator {
	return &Orchestrator{store: s, artifactDir: artifactDir, cli: cli}
}

// Orchestrate implements orchestrate(namespace, force, dry_run, since,
// keep, gemini_fallback) (spec §4.11). opts.Since is not consulted: the
// documents processed are always the namespace's stale documents.
func (o *Orchestrator) Orchestrate(ctx context.Context, namespace string, opts Options) Result {
	ctx, span := tracing.Tracer().Start(ctx, "orchestrator.Orchestrate")
	defer span.End()

	start := time.Now()
	keep := opts.Keep
	if keep <= 0 {
		keep = 5
	}

	result := Result{Namespace: namespace, DryRun: opts.DryRun}

	if err := os.MkdirAll(o.artifactDir, 0o755); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.DurationS = time.Since(start).Seconds()
		return result
	}

	staleDocs, totalDocs, staleDocIDs, err := o.ingestLogCounts(ctx, namespace)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.DurationS = time.Since(start).Seconds()
		return result
	}
	result.StaleDocs = staleDocs
	result.TotalDocs = totalDocs

	lockPath := filepath.Join(o.artifactDir, lockFileName)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		if !opts.Force {
			result.Status = StatusLocked
			result.DurationS = time.Since(start).Seconds()
			return result
		}
	} else {
		defer lock.Unlock()
	}

	if opts.DryRun {
		result.Status = StatusDryRun
		result.DurationS = time.Since(start).Seconds()
		return result
	}

	if staleDocs == 0 && !opts.Force {
		result.Status = StatusNoop
		result.DurationS = time.Since(start).Seconds()
		return result
	}

	ts := time.Now().UTC().Format("20060102-150405")
	staging := filepath.Join(o.artifactDir, "run-"+ts)
	result.StagingDir = staging

	if err := os.MkdirAll(staging, 0o755); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.DurationS = time.Since(start).Seconds()
		return result
	}
	_ = os.WriteFile(filepath.Join(staging, "_RUNNING"), []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)

	if err := o.runPipeline(ctx, namespace, staging, staleDocIDs, opts); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		_ = os.WriteFile(filepath.Join(staging, "_FAILED"), []byte(err.Error()), 0o644)
		o.finish(&result, staging, keep, start)
		return result
	}
	result.Status = StatusGenerated

	set, missingOptional, err := ReadArtifactSet(staging)
	if err != nil {
		result.Status = StatusImportFailed
		result.Error = err.Error()
		_ = os.WriteFile(filepath.Join(staging, "_FAILED"), []byte("import failed: "+err.Error()), 0o644)
		o.finish(&result, staging, keep, start)
		return result
	}

	importResult, err := o.importArtifacts(ctx, namespace, set)
	if err != nil {
		result.Status = StatusImportFailed
		result.Error = err.Error()
		_ = os.WriteFile(filepath.Join(staging, "_FAILED"), []byte("import failed: "+err.Error()), 0o644)
		o.finish(&result, staging, keep, start)
		return result
	}

	if err := o.markIndexed(ctx, namespace, staleDocIDs); err != nil {
		result.Status = StatusImportFailed
		result.Error = err.Error()
		o.finish(&result, staging, keep, start)
		return result
	}

	if len(missingOptional) > 0 {
		result.Status = StatusPartial
		data, _ := json.Marshal(missingOptional)
		_ = os.WriteFile(filepath.Join(staging, "_PARTIAL"), data, 0o644)
	} else {
		result.Status = StatusSuccess
		_ = os.WriteFile(filepath.Join(staging, "_SUCCESS"), []byte("ok"), 0o644)
	}

	result.DeltaNodes = importResult.entitiesNew
	result.DeltaEdges = importResult.relationshipsNew
	result.ReuseNodes = reuseRatio(importResult.entitiesNew, importResult.entitiesMerged)
	result.ReuseEdges = reuseRatio(importResult.relationshipsNew, importResult.relationshipsMerged)

	o.finish(&result, staging, keep, start)
	return result
}

func (o *Orchestrator) finish(result *Result, staging string, keep int, start time.Time) {
	if result.Status == StatusSuccess || result.Status == StatusPartial {
		o.repointLatest(staging)
	}
	o.pruneOldRuns(keep)
	result.DurationS = time.Since(start).Seconds()
}

func (o *Orchestrator) ingestLogCounts(ctx context.Context, namespace string) (staleDocs, totalDocs int, staleDocIDs []string, err error) {
	entries, err := o.store.ListStaleDocs(ctx, namespace)
	if err != nil {
		return 0, 0, nil, err
	}
	for _, e := range entries {
		staleDocIDs = append(staleDocIDs, e.DocID)
	}
	staleDocs = len(staleDocIDs)

	totalDocs, err = o.store.CountDocs(ctx, namespace)
	if err != nil {
		return 0, 0, nil, err
	}
	return staleDocs, totalDocs, staleDocIDs, nil
}

// runPipeline invokes the external CLI when available, otherwise the local
// fallback, and writes the resulting ArtifactSet to stagingDir.
func (o *Orchestrator) runPipeline(ctx context.Context, namespace, stagingDir string, staleDocIDs []string, opts Options) error {
	if o.cli != nil && o.cli.Available() {
		return o.cli.Run(ctx, stagingDir, staleDocIDs)
	}
	if !opts.GeminiFallback {
		return errors.New("no external pipeline available and fallback disabled")
	}

	set, err := runFallback(ctx, o.store, namespace)
	if err != nil {
		return err
	}
	return WriteArtifactSet(stagingDir, set)
}

type importStats struct {
	entitiesNew, entitiesMerged         int
	relationshipsNew, relationshipsMerged int
}

// importArtifacts implements §4.11 step 6's idempotent merge rules.
func (o *Orchestrator) importArtifacts(ctx context.Context, namespace string, set ArtifactSet) (importStats, error) {
	var stats importStats

	nameToID := make(map[string]string, len(set.Entities))
	nodes := make([]model.Node, 0, len(set.Entities))
	for _, e := range set.Entities {
		existing, err := o.store.FindNodeByName(ctx, namespace, e.Name)
		if err != nil {
			return importStats{}, err
		}
		id := e.ID
		if existing != nil {
			id = existing.ID
			stats.entitiesMerged++
		} else {
			stats.entitiesNew++
		}
		nameToID[e.ID] = id

		props := model.Properties{}
		if e.Description != "" {
			props["description"] = e.Description
		}
		nodes = append(nodes, model.Node{
			ID: id, Label: e.Label, Name: e.Name, Namespace: namespace, Properties: props,
		}.WithNamespace(namespace))
	}
	if len(nodes) > 0 {
		if err := o.store.UpsertNodes(ctx, nodes); err != nil {
			return importStats{}, err
		}
	}

	edges := make([]model.Edge, 0, len(set.Relationships))
	for _, r := range set.Relationships {
		src, dst := mappedID(nameToID, r.SourceID), mappedID(nameToID, r.TargetID)

		existingEdges, err := o.store.IncidentEdges(ctx, namespace, []string{src}, maxFallbackEdges)
		if err != nil {
			return importStats{}, err
		}
		confidence := r.Weight
		merged := false
		for _, ex := range existingEdges {
			if ex.SourceID == src && ex.TargetID == dst && ex.Relation == r.Relation {
				merged = true
				if ex.Confidence > confidence {
					confidence = ex.Confidence
				}
				break
			}
		}
		if merged {
			stats.relationshipsMerged++
		} else {
			stats.relationshipsNew++
		}

		edges = append(edges, model.Edge{
			ID: fmt.Sprintf("%s|%s|%s", src, dst, r.Relation),
			SourceID: src, TargetID: dst, Relation: r.Relation, Confidence: confidence,
		}.WithNamespace(namespace))
	}
	if len(edges) > 0 {
		if err := o.store.UpsertEdges(ctx, edges); err != nil {
			return importStats{}, err
		}
	}

	if len(set.Memberships) > 0 {
		existing, err := o.store.ListClusterMemberships(ctx, namespace, "graphrag")
		if err != nil {
			return importStats{}, err
		}
		seen := make(map[string]bool, len(existing))
		merged := make([]model.ClusterMembership, 0, len(existing)+len(set.Memberships))
		for _, m := range existing {
			key := m.NodeID + "|" + m.ClusterID
			seen[key] = true
			merged = append(merged, m)
		}
		for _, m := range set.Memberships {
			nodeID := mappedID(nameToID, m.EntityID)
			key := nodeID + "|" + m.ClusterID
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, model.ClusterMembership{NodeID: nodeID, ClusterID: m.ClusterID, Namespace: namespace, Algorithm: "graphrag"})
		}
		if err := o.store.ReplaceClusterMemberships(ctx, namespace, "graphrag", merged); err != nil {
			return importStats{}, err
		}
	}

	for _, r := range set.Reports {
		existing, err := o.store.GetClusterSummary(ctx, namespace, r.ClusterID, "graphrag")
		if err != nil {
			return importStats{}, err
		}
		if existing != nil && existing.Summary != "" {
			continue
		}
		summary := model.ClusterSummary{
			ClusterID: r.ClusterID, Namespace: namespace, Algorithm: "graphrag",
			Label: r.Title, Summary: r.Summary,
		}.Truncated()
		if err := o.store.UpsertClusterSummary(ctx, summary); err != nil {
			return importStats{}, err
		}
	}

	return stats, nil
}

func mappedID(nameToID map[string]string, artifactID string) string {
	if id, ok := nameToID[artifactID]; ok {
		return id
	}
	return artifactID
}

func reuseRatio(newCount, mergedCount int) float64 {
	denom := newCount + mergedCount
	if denom == 0 {
		return 0
	}
	return float64(mergedCount) / float64(denom)
}

func (o *Orchestrator) markIndexed(ctx context.Context, namespace string, docIDs []string) error {
	now := time.Now()
	for _, docID := range docIDs {
		if err := o.store.MarkIndexed(ctx, namespace, docID, now); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) repointLatest(stagingDir string) {
	link := filepath.Join(o.artifactDir, "latest")
	_ = os.Remove(link)
	_ = os.Symlink(filepath.Base(stagingDir), link)
}

// pruneOldRuns deletes run-* directories beyond the keep most recent (spec
// §4.11 step 10).
func (o *Orchestrator) pruneOldRuns(keep int) {
	entries, err := os.ReadDir(o.artifactDir)
	if err != nil {
		return
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) > 4 && e.Name()[:4] == "run-" {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))

	for _, name := range runs[min(len(runs), keep):] {
		_ = os.RemoveAll(filepath.Join(o.artifactDir, name))
	}
}
