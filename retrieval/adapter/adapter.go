// Package adapter implements the Query Adapter (spec §4.6): mode
// resolution, a two-source candidate search (artifact-based structured
// search, then the Retriever), and weighted rescoring.
package adapter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/siherrmann/graphrag/llm"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/retrieval"
)

// Artifact is the imported entities/relationships set the structured
// search strategy reads, keyed by a caller-supplied (filename, mtime)
// composite version.
type Artifact struct {
	Version   string
	Entities  []ArtifactEntity
	Relations []ArtifactRelation
}

// ArtifactEntity is one row of an imported entities artifact.
type ArtifactEntity struct {
	ID        string
	Name      string
	Embedding []float32
}

// ArtifactRelation is one row of an imported relationships artifact.
type ArtifactRelation struct {
	SourceID string
	TargetID string
	Relation string
}

// ArtifactSource supplies the current Artifact for a namespace, e.g. the
// Orchestrator's latest imported snapshot.
type ArtifactSource func(ctx context.Context, namespace string) (*Artifact, error)

// Adapter is the Query Adapter.
type Adapter struct {
	engine    *retrieval.Engine
	artifacts ArtifactSource
	embed     llm.EmbedFunc

	mu               sync.Mutex
	artifactCache    map[string]*cachedArtifact
	entityEmbedCache map[string][]float32
}

type cachedArtifact struct {
	version        string
	entities       map[string]ArtifactEntity
	degree         map[string]int
	relationWeight map[string]float64
}

// New builds an Adapter. artifacts and embed may be nil.
func New(engine *retrieval.Engine, artifacts ArtifactSource, embed llm.EmbedFunc) *Adapter {
	return &Adapter{
		engine:           engine,
		artifacts:        artifacts,
		embed:            embed,
		artifactCache:    make(map[string]*cachedArtifact),
		entityEmbedCache: make(map[string][]float32),
	}
}

// Query implements query() (spec §4.6).
func (a *Adapter) Query(ctx context.Context, cfg model.QueryConfig) (model.QueryResult, error) {
	start := time.Now()

	mode := cfg.Mode
	var reasoning []string
	if mode == "" || mode == model.ModeAuto {
		resolved := model.ResolveAutoMode(cfg.Query)
		reasoning = append(reasoning, fmt.Sprintf("auto resolved to %s (query has %d-word heuristic)", resolved, len(strings.Fields(cfg.Query))))
		mode = resolved
	}
	weights := model.WeightsFor(mode)
	reasoning = append(reasoning, fmt.Sprintf("weights: centrality=%.2f relation=%.2f overlap=%.2f", weights.Centrality, weights.Relation, weights.Overlap))

	candidates, relationWeight, totalConsidered, err := a.candidates(ctx, cfg, mode)
	if err != nil {
		return model.QueryResult{}, err
	}

	queryTokens := tokenSet(cfg.Query)

	scored := make([]model.ScoredCandidate, 0, len(candidates))
	for _, n := range candidates {
		degNorm := n.DegreeNorm()
		rel := math.Log(1+relationWeight[n.ID]) / 4
		overlap := tokenOverlap(queryTokens, tokenSet(n.Name))

		score := weights.Centrality*degNorm + weights.Relation*rel + weights.Overlap*overlap
		if len(n.Name) > 80 {
			score -= 0.05
		}

		scored = append(scored, model.ScoredCandidate{
			Node:    n,
			Score:   score,
			DegNorm: degNorm,
			Rel:     rel,
			Overlap: overlap,
		})
	}

	sortScoredDesc(scored)
	if cfg.TopK > 0 && len(scored) > cfg.TopK {
		scored = scored[:cfg.TopK]
	}

	return model.QueryResult{
		Results:         scored,
		ModeUsed:        mode,
		ReasoningChain:  reasoning,
		TotalConsidered: totalConsidered,
		DurationS:       time.Since(start).Seconds(),
	}, nil
}

// candidates tries the artifact-based structured search first, falling back
// to the Retriever with a top_k*3 expansion. It also returns a per-node
// relation-weight sum (spec's "relation" rescoring component), derived from
// whichever edge list backed the winning candidate source.
func (a *Adapter) candidates(ctx context.Context, cfg model.QueryConfig, mode string) ([]model.Node, map[string]float64, int, error) {
	if a.artifacts != nil {
		nodes, relWeight, total, ok, err := a.artifactCandidates(ctx, cfg)
		if err != nil {
			return nil, nil, 0, err
		}
		if ok {
			return nodes, relWeight, total, nil
		}
	}

	expanded := cfg.TopK * 3
	if expanded <= 0 {
		expanded = 30
	}

	result, err := a.engine.HybridRetrieve(ctx, cfg.Query, expanded, cfg.Namespace, nil, nil)
	if err != nil {
		return nil, nil, 0, err
	}

	relWeight := make(map[string]float64, len(result.Nodes))
	for _, e := range result.Edges {
		w := model.WeightOf(e.Relation)
		relWeight[e.SourceID] += w
		relWeight[e.TargetID] += w
	}

	return result.Nodes, relWeight, len(result.Nodes), nil
}

func (a *Adapter) artifactCandidates(ctx context.Context, cfg model.QueryConfig) ([]model.Node, map[string]float64, int, bool, error) {
	artifact, err := a.artifacts(ctx, cfg.Namespace)
	if err != nil || artifact == nil {
		return nil, nil, 0, false, nil
	}

	cached := a.getOrBuildArtifactCache(artifact)

	queryTokens := tokenSet(cfg.Query)
	var queryEmbedding []float32
	if a.embed != nil {
		queryEmbedding, _ = a.embed(ctx, cfg.Query)
	}

	nodes := make([]model.Node, 0, len(cached.entities))
	for _, e := range cached.entities {
		overlap := tokenOverlap(queryTokens, tokenSet(e.Name))
		degreeComponent := math.Log(1+float64(cached.degree[e.ID])) / 4

		embedding := a.entityEmbedding(ctx, e)
		var cosine float64
		if len(queryEmbedding) > 0 && len(embedding) > 0 {
			cosine = cosineSimilarity(queryEmbedding, embedding)
		}

		if overlap == 0 && degreeComponent == 0 && cosine == 0 {
			continue
		}

		nodes = append(nodes, model.Node{
			ID:        e.ID,
			Label:     model.LabelEntity,
			Name:      e.Name,
			Namespace: cfg.Namespace,
			Properties: model.Properties{
				"degree_norm": degreeComponent,
			},
			Embedding: embedding,
		})
	}

	return nodes, cached.relationWeight, len(cached.entities), true, nil
}

// entityEmbedding returns e's embedding, computing and caching it via a.embed
// when the artifact didn't already carry one (spec: "optional cosine
// similarity ... with per-entity embedding cache").
func (a *Adapter) entityEmbedding(ctx context.Context, e ArtifactEntity) []float32 {
	if len(e.Embedding) > 0 {
		return e.Embedding
	}
	if a.embed == nil {
		return nil
	}

	a.mu.Lock()
	if v, ok := a.entityEmbedCache[e.ID]; ok {
		a.mu.Unlock()
		return v
	}
	a.mu.Unlock()

	vec, err := a.embed(ctx, e.Name)
	if err != nil {
		vec = nil
	}

	a.mu.Lock()
	a.entityEmbedCache[e.ID] = vec
	a.mu.Unlock()
	return vec
}

func (a *Adapter) getOrBuildArtifactCache(artifact *Artifact) *cachedArtifact {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.artifactCache[artifact.Version]; ok {
		return c
	}

	entities := make(map[string]ArtifactEntity, len(artifact.Entities))
	for _, e := range artifact.Entities {
		entities[e.ID] = e
	}

	degree := make(map[string]int, len(artifact.Entities))
	relationWeight := make(map[string]float64, len(artifact.Entities))
	for _, r := range artifact.Relations {
		degree[r.SourceID]++
		degree[r.TargetID]++
		w := model.WeightOf(r.Relation)
		relationWeight[r.SourceID] += w
		relationWeight[r.TargetID] += w
	}

	cached := &cachedArtifact{version: artifact.Version, entities: entities, degree: degree, relationWeight: relationWeight}
	a.artifactCache = map[string]*cachedArtifact{artifact.Version: cached}
	return cached
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}

func tokenOverlap(query, name map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	var matched int
	for tok := range query {
		if name[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func sortScoredDesc(s []model.ScoredCandidate) {
	sort.Slice(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
