// Package graphrag wires every component into a single Service: the
// durable Store, the optional Embedding/Extraction/LLM capabilities, the
// Retriever/Adapter/Answerer, the Pathfinder, the Cluster and Snapshot
// Services, the Index Orchestrator, the Event Bus, and the Metrics
// Registry (spec §1's component table, C1-C16).
package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/graphrag/cluster"
	"github.com/siherrmann/graphrag/config"
	"github.com/siherrmann/graphrag/eventbus"
	"github.com/siherrmann/graphrag/graph/path"
	"github.com/siherrmann/graphrag/ingest"
	"github.com/siherrmann/graphrag/ingest/embedcache"
	"github.com/siherrmann/graphrag/internal/errs"
	"github.com/siherrmann/graphrag/internal/pgdb"
	"github.com/siherrmann/graphrag/internal/prettylog"
	"github.com/siherrmann/graphrag/internal/tracing"
	"github.com/siherrmann/graphrag/llm"
	"github.com/siherrmann/graphrag/metrics"
	"github.com/siherrmann/graphrag/orchestrator"
	"github.com/siherrmann/graphrag/orchestrator/externalcli"
	"github.com/siherrmann/graphrag/retrieval"
	"github.com/siherrmann/graphrag/retrieval/adapter"
	"github.com/siherrmann/graphrag/retrieval/answer"
	"github.com/siherrmann/graphrag/snapshot"
	"github.com/siherrmann/graphrag/store"
	"github.com/siherrmann/graphrag/store/graphnative"
	"github.com/siherrmann/graphrag/store/postgres"
	"github.com/siherrmann/graphrag/vectorindex"
)

// Service provides a unified interface to every component of the running
// process, analogous to the teacher's Grapher.
type Service struct {
	Config config.Config

	DB    *pgdb.Database
	Store store.Store

	Embed       *embedcache.Cache
	VectorIndex vectorindex.Index

	Engine    *retrieval.Engine
	Adapter   *adapter.Adapter
	Answerer  *answer.Answerer
	Path      *path.Pathfinder
	Clusters  *cluster.Service
	Snapshots *snapshot.Service

	Ingestor     *ingest.Ingestor
	Orchestrator *orchestrator.Orchestrator

	Bus     *eventbus.Bus
	Metrics *metrics.Registry

	// SummarizeFn is the resolved LLM summarization capability, held here
	// rather than baked into Clusters because SummarizeClusters takes it
	// per call so callers can override it (e.g. a shorter budget for an
	// interactive request).
	SummarizeFn llm.SummarizeFunc

	closers []func() error
	log     *slog.Logger
}

// New wires a Service from cfg. The caller is responsible for calling
// Close when done.
func New(ctx context.Context, cfg config.Config) (*Service, error) {
	opts := prettylog.Options{SlogOpts: slog.HandlerOptions{Level: slog.LevelInfo}}
	logger := slog.New(prettylog.NewHandler(os.Stdout, opts))

	svc := &Service{Config: cfg, log: logger}
	svc.closers = append(svc.closers, toErrFunc(tracing.Init("graphrag")))

	s, db, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc.Store = s
	svc.DB = db
	if db != nil {
		svc.closers = append(svc.closers, db.Close)
	}

	embedFn, extractFn, answerFn, summarizeFn, llmClosers := buildCapabilities(cfg)
	svc.closers = append(svc.closers, llmClosers...)
	svc.Embed = embedcache.New(embedFn)

	if cfg.VectorStoreURL != "" && cfg.EmbeddingDimension > 0 {
		idx, err := vectorindex.NewQdrant(ctx, cfg.VectorStoreURL, "graphrag_"+cfg.DefaultNamespace, cfg.EmbeddingDimension)
		if err != nil {
			return nil, errs.New(errs.ConfigError, "new service: vector index", err)
		}
		svc.VectorIndex = idx
	}

	svc.Bus = eventbus.New()
	svc.Metrics = metrics.NewRegistry(nil)

	svc.Engine = retrieval.New(svc.Store, svc.VectorIndex, embedFn)
	svc.Adapter = adapter.New(svc.Engine, latestArtifactSource(cfg.ArtifactDir), embedFn)
	svc.Answerer = answer.New(svc.Engine, answerFn)
	svc.Path = path.New(svc.Store, nil)
	clusters, err := cluster.NewWithRedis(svc.Store, cfg.ClusterSummaryRateLimitPerMin, cfg.ClusterSummaryDailyTokenBudget, cfg.RedisURL)
	if err != nil {
		return nil, errs.New(errs.ConfigError, "new service: cluster budget store", err)
	}
	svc.Clusters = clusters
	svc.Snapshots = snapshot.New(svc.Store, svc.Clusters)

	svc.Ingestor = ingest.New(svc.Store, extractFn, svc.Embed, svc.VectorIndex, svc.Bus, svc.Metrics, svc.Clusters, string(cfg.GraphStore))

	cli := &externalcli.CommandRunner{BinaryName: "graphrag", CredentialEnvVar: "OPENAI_API_KEY"}
	svc.Orchestrator = orchestrator.New(svc.Store, cfg.ArtifactDir, cli)

	svc.SummarizeFn = summarizeFn

	return svc, nil
}

// buildStore selects and opens the configured Store backend.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, *pgdb.Database, error) {
	switch cfg.GraphStore {
	case config.GraphStoreNative:
		return graphnative.New(), nil, nil
	case config.GraphStoreRelational:
		db, err := pgdb.New(cfg.DB, logger)
		if err != nil {
			return nil, nil, errs.New(errs.ConfigError, "new service: connect store", err)
		}
		s, err := postgres.New(ctx, db, false)
		if err != nil {
			return nil, nil, errs.New(errs.ConfigError, "new service: init store", err)
		}
		return s, db, nil
	default:
		return nil, nil, errs.New(errs.ConfigError, "new service: store backend", fmt.Errorf("unknown GRAPH_STORE %q", cfg.GraphStore))
	}
}

// buildCapabilities resolves the optional Embedding/Extraction/Answer/
// Summarize capabilities from cfg, degrading to nil (disabled) or the
// heuristic fallback when no provider is configured.
func buildCapabilities(cfg config.Config) (llm.EmbedFunc, llm.ExtractFunc, llm.AnswerFunc, llm.SummarizeFunc, []func() error) {
	var embedFn llm.EmbedFunc
	var extractFn llm.ExtractFunc
	var answerFn llm.AnswerFunc
	var summarizeFn llm.SummarizeFunc
	var closers []func() error

	if cfg.EmbeddingProvider == "hugot" && cfg.EmbeddingModel != "" {
		if fn, closeFn, err := llm.HugotEmbedder(cfg.EmbeddingModel); err == nil {
			embedFn = fn
			closers = append(closers, closeFn)
		}
	}

	if cfg.LLMProvider == "hugot" && cfg.LLMModel != "" {
		if fn, closeFn, err := llm.HugotNER(cfg.LLMModel); err == nil {
			extractFn = fn
			closers = append(closers, closeFn)
		}
	}
	if extractFn == nil {
		extractFn = llm.Heuristic()
	}

	if cfg.LLMProvider == "http" && cfg.LLMBaseURL != "" {
		provider := llm.NewHTTPProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
		answerFn = provider.Answer
		summarizeFn = provider.Summarize
	}

	return embedFn, extractFn, answerFn, summarizeFn, closers
}

// latestArtifactSource reads the Orchestrator's "latest" symlink and
// adapts its CSV artifact set into the Query Adapter's Artifact shape.
func latestArtifactSource(artifactDir string) adapter.ArtifactSource {
	return func(ctx context.Context, namespace string) (*adapter.Artifact, error) {
		dir := artifactDir + "/latest"
		set, _, err := orchestrator.ReadArtifactSet(dir)
		if err != nil {
			return nil, nil
		}

		entities := make([]adapter.ArtifactEntity, 0, len(set.Entities))
		for _, e := range set.Entities {
			entities = append(entities, adapter.ArtifactEntity{ID: e.ID, Name: e.Name})
		}
		relations := make([]adapter.ArtifactRelation, 0, len(set.Relationships))
		for _, r := range set.Relationships {
			relations = append(relations, adapter.ArtifactRelation{SourceID: r.SourceID, TargetID: r.TargetID, Relation: r.Relation})
		}

		version := dir
		for _, name := range []string{"entities.csv", "relationships.csv"} {
			if fi, err := os.Stat(dir + "/" + name); err == nil {
				version += fmt.Sprintf("|%s@%d", name, fi.ModTime().UnixNano())
			}
		}

		return &adapter.Artifact{Version: version, Entities: entities, Relations: relations}, nil
	}
}

// toErrFunc adapts a bare shutdown func (as tracing.Init returns) to the
// func() error shape closers expects.
func toErrFunc(shutdown func()) func() error {
	return func() error {
		shutdown()
		return nil
	}
}

// Close releases every resource opened by New (store connections, local
// model sessions), in reverse acquisition order.
func (s *Service) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
