package graphrag

import (
	"context"

	"github.com/siherrmann/graphrag/cluster"
	"github.com/siherrmann/graphrag/ingest"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/orchestrator"
)

// IngestDocument delegates to the Ingestor, mirroring the teacher's thin
// Grapher.ProcessAndInsertDocument delegation.
func (s *Service) IngestDocument(ctx context.Context, docID, text string, opts ingest.Options) (ingest.Result, error) {
	return s.Ingestor.IngestDocument(ctx, docID, text, opts)
}

// Query delegates to the Query Adapter.
func (s *Service) Query(ctx context.Context, cfg model.QueryConfig) (model.QueryResult, error) {
	return s.Adapter.Query(ctx, cfg)
}

// Answer delegates to the Answerer.
func (s *Service) Answer(ctx context.Context, question string, topK int, namespace string) (model.AnswerResult, error) {
	return s.Answerer.Answer(ctx, question, topK, namespace)
}

// ShortestPath delegates to the Pathfinder.
func (s *Service) ShortestPath(ctx context.Context, namespace, fromID, toID string) ([]model.Node, bool, error) {
	return s.Path.ShortestPath(ctx, namespace, fromID, toID)
}

// GetClusters delegates to the Cluster Service.
func (s *Service) GetClusters(ctx context.Context, namespace string, force bool) (cluster.Result, error) {
	return s.Clusters.GetClusters(ctx, namespace, force)
}

// SummarizeClusters delegates to the Cluster Service, supplying the
// Service's resolved LLM summarization capability.
func (s *Service) SummarizeClusters(ctx context.Context, namespace string, clusterIDs []string, maxTokens int) (map[string]model.ClusterSummary, error) {
	return s.Clusters.SummarizeClusters(ctx, namespace, clusterIDs, maxTokens, s.SummarizeFn, s.Config.ClusterSummaryMaxTokensPer)
}

// CreateSnapshot delegates to the Snapshot Service.
func (s *Service) CreateSnapshot(ctx context.Context, namespace string) (model.Snapshot, error) {
	return s.Snapshots.CreateSnapshot(ctx, namespace)
}

// ListSnapshots delegates to the Snapshot Service.
func (s *Service) ListSnapshots(ctx context.Context, namespace string, limit int) ([]model.Snapshot, error) {
	return s.Snapshots.ListSnapshots(ctx, namespace, limit)
}

// DiffSnapshots delegates to the Snapshot Service.
func (s *Service) DiffSnapshots(ctx context.Context, idA, idB string) (model.SnapshotDiff, error) {
	return s.Snapshots.DiffSnapshots(ctx, idA, idB)
}

// RunIndex delegates to the Index Orchestrator.
func (s *Service) RunIndex(ctx context.Context, namespace string, opts orchestrator.Options) orchestrator.Result {
	return s.Orchestrator.Orchestrate(ctx, namespace, opts)
}
