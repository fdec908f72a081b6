// Package retrieval implements the Retriever (spec §4.5): a strategy chain
// over the durable Store, directly grounded on the teacher's
// core/retrieval/engine.go + engineStrategy.go (same Engine{...} shape,
// same build-result-map/sort/cap control flow), generalized from chunks to
// any node label and from (vector, BFS, hierarchy, entity-boost) to
// (vector index, in-process embedding, name substring, BM25).
package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/siherrmann/graphrag/internal/tracing"
	"github.com/siherrmann/graphrag/llm"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
	"github.com/siherrmann/graphrag/vectorindex"
)

const maxIncidentEdges = 300

// Engine is the Retriever.
type Engine struct {
	store store.Store
	index vectorindex.Index
	embed llm.EmbedFunc
}

// New builds an Engine. index and embed may both be nil (strategies 1/2
// are then skipped in the chain).
func New(s store.Store, index vectorindex.Index, embed llm.EmbedFunc) *Engine {
	return &Engine{store: s, index: index, embed: embed}
}

// HybridRetrieve implements hybrid_retrieve (spec §4.5): tries each
// strategy in order and stops at the first that yields >=1 candidate node.
func (e *Engine) HybridRetrieve(ctx context.Context, query string, topK int, namespace string, labelFilter, relationFilter []string) (model.RetrievalResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "retrieval.HybridRetrieve")
	defer span.End()

	var (
		nodes []model.Node
		chain []string
		err   error
	)

	if e.index != nil && e.embed != nil {
		nodes, err = e.vectorIndexStrategy(ctx, query, topK, namespace, labelFilter)
		if err != nil {
			return model.RetrievalResult{}, err
		}
		if len(nodes) > 0 {
			chain = append(chain, "vector_index")
		}
	}

	if len(nodes) == 0 && e.embed != nil {
		nodes, err = e.inProcessEmbeddingStrategy(ctx, query, topK, namespace, labelFilter)
		if err != nil {
			return model.RetrievalResult{}, err
		}
		if len(nodes) > 0 {
			chain = append(chain, "in_process_embedding")
		}
	}

	if len(nodes) == 0 {
		nodes, err = e.nameSubstringStrategy(ctx, query, topK, namespace, labelFilter)
		if err != nil {
			return model.RetrievalResult{}, err
		}
		if len(nodes) > 0 {
			chain = append(chain, "name_contains")
		}
	}

	if len(nodes) == 0 {
		nodes, err = e.bm25Strategy(ctx, query, topK, namespace, labelFilter)
		if err != nil {
			return model.RetrievalResult{}, err
		}
		if len(nodes) > 0 {
			chain = append(chain, "bm25")
		}
	}

	if len(nodes) > topK {
		nodes = nodes[:topK]
	}

	nodeIDs := make([]string, len(nodes))
	for i, n := range nodes {
		nodeIDs[i] = n.ID
	}

	edges, err := e.store.IncidentEdges(ctx, namespace, nodeIDs, maxIncidentEdges)
	if err != nil {
		return model.RetrievalResult{}, err
	}
	if len(relationFilter) > 0 {
		edges = filterRelations(edges, relationFilter)
	}

	return model.RetrievalResult{
		Nodes: nodes,
		Edges: edges,
		Meta:  model.RetrievalMeta{Strategy: "hybrid", Chain: chain},
	}, nil
}

func filterRelations(edges []model.Edge, relations []string) []model.Edge {
	allowed := make(map[string]bool, len(relations))
	for _, r := range relations {
		allowed[r] = true
	}
	out := edges[:0]
	for _, e := range edges {
		if allowed[e.Relation] {
			out = append(out, e)
		}
	}
	return out
}

// vectorIndexStrategy embeds query and ANN-searches the external vector
// index, fetching node records in external-rank order.
func (e *Engine) vectorIndexStrategy(ctx context.Context, query string, topK int, namespace string, labelFilter []string) ([]model.Node, error) {
	vec, err := e.embed(ctx, query)
	if err != nil || len(vec) == 0 {
		return nil, nil
	}

	hits, err := e.index.Search(ctx, namespace, vec, topK)
	if err != nil || len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.NodeID
	}

	nodes, err := e.store.ScanNodes(ctx, store.NodeFilter{Namespace: namespace, Labels: labelFilter, IDs: ids})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	ordered := make([]model.Node, 0, len(hits))
	for _, h := range hits {
		if n, ok := byID[h.NodeID]; ok {
			ordered = append(ordered, n)
		}
	}
	return ordered, nil
}

// inProcessEmbeddingStrategy ranks namespace-scoped nodes with embeddings
// by cosine similarity against the query embedding.
func (e *Engine) inProcessEmbeddingStrategy(ctx context.Context, query string, topK int, namespace string, labelFilter []string) ([]model.Node, error) {
	vec, err := e.embed(ctx, query)
	if err != nil || len(vec) == 0 {
		return nil, nil
	}

	nodes, err := e.store.ScanNodes(ctx, store.NodeFilter{Namespace: namespace, Labels: labelFilter})
	if err != nil {
		return nil, err
	}

	type scored struct {
		node  model.Node
		score float64
	}

	var candidates []scored
	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{node: n, score: cosineSimilarity(vec, n.Embedding)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]model.Node, len(candidates))
	for i, c := range candidates {
		out[i] = c.node
	}
	return out, nil
}

// nameSubstringStrategy does a case-insensitive name LIKE %q% scan, capped
// at top_k*5.
func (e *Engine) nameSubstringStrategy(ctx context.Context, query string, topK int, namespace string, labelFilter []string) ([]model.Node, error) {
	limit := topK * 5
	nodes, err := e.store.ScanNodes(ctx, store.NodeFilter{
		Namespace:     namespace,
		Labels:        labelFilter,
		NameSubstring: query,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}
	if len(nodes) > topK {
		nodes = nodes[:topK]
	}
	return nodes, nil
}

// bm25Strategy tokenizes namespace-scoped Chunk nodes and scores them
// against the query tokens with Okapi BM25.
func (e *Engine) bm25Strategy(ctx context.Context, query string, topK int, namespace string, labelFilter []string) ([]model.Node, error) {
	labels := labelFilter
	if len(labels) == 0 {
		labels = []string{model.LabelChunk}
	}

	nodes, err := e.store.ScanNodes(ctx, store.NodeFilter{Namespace: namespace, Labels: labels})
	if err != nil {
		return nil, err
	}

	idsAndText := make(map[string]string, len(nodes))
	byID := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		text, _ := n.Properties["text"].(string)
		idsAndText[n.ID] = text
		byID[n.ID] = n
	}

	corpus := newBM25Corpus(idsAndText)
	scores := corpus.score(tokenize(query))

	type scored struct {
		id    string
		score float64
	}
	var ranked []scored
	for id, s := range scores {
		ranked = append(ranked, scored{id: id, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]model.Node, len(ranked))
	for i, r := range ranked {
		out[i] = byID[r.id]
	}
	return out, nil
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
