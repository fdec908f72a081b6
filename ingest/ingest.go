// Package ingest implements the Ingestor (C6, spec §4.3): the ten-step
// ingest_document procedure composing the chunker, classification
// heuristic, embedding cache, extraction client, and the durable Store.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/siherrmann/graphrag/cluster"
	"github.com/siherrmann/graphrag/eventbus"
	"github.com/siherrmann/graphrag/graph/centrality"
	"github.com/siherrmann/graphrag/graph/layout"
	"github.com/siherrmann/graphrag/ingest/chunker"
	"github.com/siherrmann/graphrag/ingest/classify"
	"github.com/siherrmann/graphrag/ingest/embedcache"
	"github.com/siherrmann/graphrag/internal/errs"
	"github.com/siherrmann/graphrag/internal/tracing"
	"github.com/siherrmann/graphrag/llm"
	"github.com/siherrmann/graphrag/metrics"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
	"github.com/siherrmann/graphrag/vectorindex"
)

const mentionsPerEntityCap = 5

// Options configures one IngestDocument call.
type Options struct {
	Metadata          model.Properties
	ForceHeuristic    bool
	DisableEmbeddings bool
	Namespace         string
	ComputeLayout     bool
}

// Stats summarizes what one ingest wrote. Store names which backend
// persisted it (e.g. "relational", "graph-native"), mirroring the
// original_source's per-backend stats payload.
type Stats struct {
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
	Store string `json:"store"`
}

// Result is ingest_document's return value.
type Result struct {
	Success             bool   `json:"success"`
	Stats               Stats  `json:"stats"`
	ExtractionReasoning string `json:"extraction_reasoning"`
	Namespace           string `json:"namespace"`
}

// Ingestor composes the pipeline stages behind IngestDocument.
type Ingestor struct {
	store       store.Store
	extract     llm.ExtractFunc
	embed       *embedcache.Cache
	vectorIndex vectorindex.Index
	bus         *eventbus.Bus
	metrics     *metrics.Registry
	clusters    *cluster.Service
	backend     string
}

// New builds an Ingestor. vectorIndex, bus, metricsReg, and clusters may
// all be nil; each capability degrades gracefully when absent. backend
// labels Stats.Store (e.g. "relational", "graph-native").
func New(s store.Store, extract llm.ExtractFunc, embed *embedcache.Cache, vectorIndex vectorindex.Index, bus *eventbus.Bus, metricsReg *metrics.Registry, clusters *cluster.Service, backend string) *Ingestor {
	return &Ingestor{store: s, extract: extract, embed: embed, vectorIndex: vectorIndex, bus: bus, metrics: metricsReg, clusters: clusters, backend: backend}
}

// IngestDocument implements the ten-step procedure of spec §4.3.
func (ig *Ingestor) IngestDocument(ctx context.Context, docID, text string, opts Options) (Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ingest.IngestDocument")
	defer span.End()

	start := time.Now()
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "default"
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		ig.recordFailure("ingest", errs.InvalidInput)
		return Result{}, errs.New(errs.InvalidInput, "ingest_document", fmt.Errorf("text is empty"))
	}

	chunks := chunker.Chunk(text, 0)

	extraction, reasoning := ig.runExtraction(ctx, trimmed, opts.ForceHeuristic)

	for i := range extraction.Entities {
		extraction.Entities[i].Label = classify.Classify(extraction.Entities[i].Name, firstNonEmpty(extraction.Entities[i].Label, model.LabelEntity))
	}

	if err := ig.store.DeleteDocScoped(ctx, namespace, docID); err != nil {
		ig.recordFailure("ingest", errs.CategoryOf(err))
		return Result{}, err
	}

	chunkNodes, newlyEmbedded, err := ig.buildChunkNodes(ctx, namespace, docID, chunks, opts.DisableEmbeddings)
	if err != nil {
		ig.recordFailure("ingest", errs.StoreFailure)
		return Result{}, errs.New(errs.StoreFailure, "ingest_document: embed chunks", err)
	}

	nameToID, _, entityNodes, err := ig.resolveEntities(ctx, namespace, extraction.Entities)
	if err != nil {
		ig.recordFailure("ingest", errs.StoreFailure)
		return Result{}, err
	}

	allNodes := append(append([]model.Node{}, chunkNodes...), entityNodes...)

	sectionNodes, sectionOfChunk := buildSectionNodes(namespace, docID, chunks)
	allNodes = append(allNodes, sectionNodes...)

	if err := ig.store.UpsertNodes(ctx, allNodes); err != nil {
		ig.recordFailure("ingest", errs.StoreFailure)
		return Result{}, errs.New(errs.StoreFailure, "ingest_document: upsert_nodes", err)
	}

	edges := ig.buildEdges(namespace, docID, chunks, chunkNodes, sectionNodes, sectionOfChunk, nameToID, extraction)
	if len(edges) > 0 {
		if err := ig.store.UpsertEdges(ctx, edges); err != nil {
			ig.recordFailure("ingest", errs.StoreFailure)
			return Result{}, errs.New(errs.StoreFailure, "ingest_document: upsert_edges", err)
		}
	}

	if err := ig.updateIngestLog(ctx, namespace, docID, trimmed); err != nil {
		ig.recordFailure("ingest", errs.StoreFailure)
		return Result{}, err
	}

	if ig.vectorIndex != nil {
		for _, n := range newlyEmbedded {
			_ = ig.vectorIndex.Upsert(ctx, namespace, n.ID, n.Embedding)
		}
	}

	if opts.ComputeLayout {
		if err := ig.recomputeLayout(ctx, namespace); err != nil {
			ig.recordFailure("ingest", errs.StoreFailure)
			return Result{}, err
		}
	}

	if ig.clusters != nil {
		ig.clusters.TriggerBackgroundRecompute(ctx, namespace)
	}

	ig.broadcast(namespace, docID, chunkNodes, len(edges))

	if ig.metrics != nil {
		ig.metrics.RecordRequest("ingest", time.Since(start).Seconds())
	}

	return Result{
		Success: true,
		Stats: Stats{
			Nodes: len(allNodes),
			Edges: len(edges),
			Store: ig.backend,
		},
		ExtractionReasoning: reasoning,
		Namespace:           namespace,
	}, nil
}

func (ig *Ingestor) recordFailure(op string, category errs.Category) {
	if ig.metrics != nil {
		ig.metrics.RecordFailure(op, string(category))
	}
}

// runExtraction calls the Extraction Client unless forceHeuristic, falling
// back to the heuristic extractor on absence, failure, or zero entities.
func (ig *Ingestor) runExtraction(ctx context.Context, text string, forceHeuristic bool) (llm.ExtractResult, string) {
	if !forceHeuristic && ig.extract != nil {
		result, err := ig.extract(ctx, text)
		if err == nil && len(result.Entities) > 0 {
			return result, "extraction client"
		}
	}
	return heuristicExtract(text), "heuristic fallback"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func chunkNodeID(docID string, globalIndex int) string {
	return fmt.Sprintf("%s::chunk::%d", docID, globalIndex)
}

func sectionNodeID(docID, sectionSlug string) string {
	return fmt.Sprintf("%s::section::%s", docID, sectionSlug)
}

func (ig *Ingestor) buildChunkNodes(ctx context.Context, namespace, docID string, chunks []chunker.Chunk, disableEmbeddings bool) ([]model.Node, []model.Node, error) {
	nodes := make([]model.Node, 0, len(chunks))
	var newlyEmbedded []model.Node

	for _, c := range chunks {
		node := model.Node{
			ID:    chunkNodeID(docID, c.GlobalIndex),
			Label: model.LabelChunk,
			Name:  c.SectionTitle,
			Properties: model.Properties{
				"text":       c.Text,
				"section_id": c.SectionID,
				"doc_id":     docID,
			},
		}.WithNamespace(namespace)
		if !disableEmbeddings && ig.embed != nil {
			vec, err := ig.embed.Get(ctx, c.Text)
			if err != nil {
				return nil, nil, err
			}
			if len(vec) > 0 {
				node.Embedding = vec
				newlyEmbedded = append(newlyEmbedded, node)
			}
		}
		nodes = append(nodes, node)
	}

	return nodes, newlyEmbedded, nil
}

func buildSectionNodes(namespace, docID string, chunks []chunker.Chunk) ([]model.Node, map[string]string) {
	seen := make(map[string]bool)
	var nodes []model.Node
	sectionOfChunk := make(map[string]string, len(chunks))

	for _, c := range chunks {
		id := sectionNodeID(docID, c.SectionID)
		sectionOfChunk[chunkNodeID(docID, c.GlobalIndex)] = id
		if seen[id] {
			continue
		}
		seen[id] = true
		nodes = append(nodes, model.Node{
			ID:    id,
			Label: model.LabelSection,
			Name:  c.SectionTitle,
			Properties: model.Properties{
				"section_id": c.SectionID,
				"doc_id":     docID,
			},
		}.WithNamespace(namespace))
	}

	return nodes, sectionOfChunk
}

// resolveEntities looks up each extracted entity by (lower(name),
// namespace), merging on hit and inserting on miss, returning a
// name->canonical-id map for edge resolution.
func (ig *Ingestor) resolveEntities(ctx context.Context, namespace string, entities []llm.ExtractedEntity) (map[string]string, []string, []model.Node, error) {
	nameToID := make(map[string]string, len(entities))
	var newIDs []string
	var nodes []model.Node
	seen := make(map[string]bool)

	for _, e := range entities {
		key := strings.ToLower(e.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		existing, err := ig.store.FindNodeByName(ctx, namespace, e.Name)
		if err != nil {
			return nil, nil, nil, errs.New(errs.StoreFailure, "ingest_document: find_node_by_name", err)
		}

		var nodeID string
		if existing != nil {
			nodeID = existing.ID
		} else {
			nodeID = uuid.NewString()
			newIDs = append(newIDs, nodeID)
		}
		nameToID[key] = nodeID

		nodes = append(nodes, model.Node{
			ID:    nodeID,
			Label: e.Label,
			Name:  e.Name,
		}.WithNamespace(namespace))
	}

	return nameToID, newIDs, nodes, nil
}

// buildEdges implements §4.3 step 5.d-i: extraction edges, CONTAINS,
// MENTIONED_IN (capped 5/entity), CO_OCCURS, HAS_ENTITY, and the derived
// ROLE_AT/USES_TECH domain edges.
func (ig *Ingestor) buildEdges(namespace, docID string, chunks []chunker.Chunk, chunkNodes, sectionNodes []model.Node, sectionOfChunk, nameToID map[string]string, extraction llm.ExtractResult) []model.Edge {
	var edges []model.Edge

	for _, r := range extraction.Relations {
		srcID, ok1 := nameToID[strings.ToLower(r.Source)]
		dstID, ok2 := nameToID[strings.ToLower(r.Target)]
		if !ok1 || !ok2 {
			continue
		}
		edges = append(edges, model.Edge{
			ID:         fmt.Sprintf("extract::%s::%s::%s", srcID, dstID, r.Relation),
			SourceID:   srcID,
			TargetID:   dstID,
			Relation:   r.Relation,
			Confidence: r.Confidence,
		})
	}

	for _, cn := range chunkNodes {
		secID := sectionOfChunk[cn.ID]
		edges = append(edges, model.Edge{
			ID:       fmt.Sprintf("contains::%s::%s", secID, cn.ID),
			SourceID: secID,
			TargetID: cn.ID,
			Relation: model.RelContains,
		})
	}

	labelByID := make(map[string]string, len(extraction.Entities))
	for _, e := range extraction.Entities {
		labelByID[nameToID[strings.ToLower(e.Name)]] = e.Label
	}

	mentionCount := make(map[string]int)
	cooccursSeen := make(map[string]bool)
	sectionEntitySeen := make(map[string]bool)

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].GlobalIndex < chunks[j].GlobalIndex })

	for _, c := range chunks {
		chunkID := chunkNodeID(docID, c.GlobalIndex)
		secID := sectionOfChunk[chunkID]
		lowerText := strings.ToLower(c.Text)

		var mentioned []string
		for name, id := range nameToID {
			if name == "" {
				continue
			}
			if strings.Contains(lowerText, name) {
				mentioned = append(mentioned, id)
			}
		}
		sort.Strings(mentioned)

		for _, id := range mentioned {
			if mentionCount[id] >= mentionsPerEntityCap {
				continue
			}
			mentionCount[id]++
			edges = append(edges, model.Edge{
				ID:       fmt.Sprintf("mentioned::%s::%s", id, chunkID),
				SourceID: id,
				TargetID: chunkID,
				Relation: model.RelMentionedIn,
			})

			seKey := secID + "|" + id
			if !sectionEntitySeen[seKey] {
				sectionEntitySeen[seKey] = true
				edges = append(edges, model.Edge{
					ID:       fmt.Sprintf("hasentity::%s::%s", secID, id),
					SourceID: secID,
					TargetID: id,
					Relation: model.RelHasEntity,
				})
			}
		}

		for i := 0; i < len(mentioned); i++ {
			for j := i + 1; j < len(mentioned); j++ {
				pairKey := pairKey(mentioned[i], mentioned[j])
				if cooccursSeen[pairKey] {
					continue
				}
				cooccursSeen[pairKey] = true
				edges = append(edges, model.Edge{
					ID:       fmt.Sprintf("cooccurs::%s", pairKey),
					SourceID: mentioned[i],
					TargetID: mentioned[j],
					Relation: model.RelCoOccurs,
				})
			}
		}

		edges = append(edges, derivedDomainEdges(mentioned, labelByID)...)
	}

	edges = dedupeDomainEdges(edges)
	for i := range edges {
		edges[i] = edges[i].WithNamespace(namespace)
	}
	return edges
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// derivedDomainEdges emits Role x Organization -> ROLE_AT (0.65) and
// {Role,Organization} x Technology -> USES_TECH (0.55) for one chunk's
// mentioned entities.
func derivedDomainEdges(mentioned []string, labelByID map[string]string) []model.Edge {
	var roles, orgs, techs []string
	for _, id := range mentioned {
		switch labelByID[id] {
		case model.LabelRole:
			roles = append(roles, id)
		case model.LabelOrganization:
			orgs = append(orgs, id)
		case model.LabelTechnology:
			techs = append(techs, id)
		}
	}

	var edges []model.Edge
	for _, r := range roles {
		for _, o := range orgs {
			edges = append(edges, model.Edge{
				ID: fmt.Sprintf("roleat::%s", pairKey(r, o)), SourceID: r, TargetID: o,
				Relation: model.RelRoleAt, Confidence: 0.65,
			})
		}
	}
	for _, t := range techs {
		for _, id := range append(append([]string{}, roles...), orgs...) {
			edges = append(edges, model.Edge{
				ID: fmt.Sprintf("usestech::%s", pairKey(id, t)), SourceID: id, TargetID: t,
				Relation: model.RelUsesTech, Confidence: 0.55,
			})
		}
	}
	return edges
}

// dedupeDomainEdges keeps only the first ROLE_AT/USES_TECH edge per
// unordered pair, since derivedDomainEdges is called once per chunk and the
// same pair may co-occur in several chunks.
func dedupeDomainEdges(edges []model.Edge) []model.Edge {
	seen := make(map[string]bool, len(edges))
	out := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Relation != model.RelRoleAt && e.Relation != model.RelUsesTech {
			out = append(out, e)
			continue
		}
		key := e.Relation + "|" + pairKey(e.SourceID, e.TargetID)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func (ig *Ingestor) updateIngestLog(ctx context.Context, namespace, docID, text string) error {
	hash := contentHash(text)
	now := time.Now()

	existing, err := ig.store.GetIngestLogEntry(ctx, namespace, docID)
	if err != nil {
		return errs.New(errs.StoreFailure, "ingest_document: get_ingest_log_entry", err)
	}

	var entry model.IngestLogEntry
	if existing != nil {
		entry = existing.MarkReingested(hash, now)
	} else {
		entry = model.IngestLogEntry{
			DocID: docID, Namespace: namespace, ContentHash: hash,
			Status: model.IngestStatusIngested, FirstSeenAt: now, LastIngestAt: now,
		}
	}

	if err := ig.store.UpsertIngestLogEntry(ctx, entry); err != nil {
		return errs.New(errs.StoreFailure, "ingest_document: upsert_ingest_log_entry", err)
	}
	return nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// recomputeLayout implements §4.4: rebuild adjacency from the namespace's
// current nodes/edges, compute centrality, run the hybrid layout, and
// write degree/centrality/layout properties back.
func (ig *Ingestor) recomputeLayout(ctx context.Context, namespace string) error {
	nodes, err := ig.store.ScanNodes(ctx, store.NodeFilter{Namespace: namespace})
	if err != nil {
		return errs.New(errs.StoreFailure, "recompute_layout: scan_nodes", err)
	}
	scannedEdges, err := ig.store.ScanEdges(ctx, store.EdgeFilter{Namespace: namespace})
	if err != nil {
		return errs.New(errs.StoreFailure, "recompute_layout: scan_edges", err)
	}

	nodeIDs := make([]string, 0, len(nodes))
	var sectionIDs []string
	sectionOf := make(map[string]string)
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n.ID)
		if n.Label == model.LabelSection {
			sectionIDs = append(sectionIDs, n.ID)
		}
	}
	edgePairs := make([][2]string, 0, len(scannedEdges))
	degree := make(map[string]int, len(nodes))
	for _, e := range scannedEdges {
		edgePairs = append(edgePairs, [2]string{e.SourceID, e.TargetID})
		degree[e.SourceID]++
		degree[e.TargetID]++
		if e.Relation == model.RelContains {
			sectionOf[e.TargetID] = e.SourceID
		}
	}

	positions := layout.Hybrid(layout.Graph{NodeIDs: nodeIDs, SectionIDs: sectionIDs, Edges: edgePairs}, sectionOf)
	centralityResults := centrality.Compute(nodeIDs, edgePairs)

	maxDegree := 0
	for _, d := range degree {
		if d > maxDegree {
			maxDegree = d
		}
	}

	updated := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		props := n.Properties.Clone()
		if props == nil {
			props = model.Properties{}
		}
		if pos, ok := positions[n.ID]; ok {
			props["layout"] = map[string]interface{}{"x": pos.X, "y": pos.Y}
		}
		d := degree[n.ID]
		props["degree"] = d
		if maxDegree > 0 {
			props["degree_norm"] = float64(d) / float64(maxDegree)
		} else {
			props["degree_norm"] = 0.0
		}
		if c, ok := centralityResults[n.ID]; ok {
			if c.HasPageRank {
				props["pagerank_norm"] = c.PageRank
			}
			if c.HasBetweenness {
				props["betweenness_norm"] = c.Betweenness
			}
			props["importance"] = c.Importance
		}
		n.Properties = props
		updated = append(updated, n)
	}

	if len(updated) == 0 {
		return nil
	}
	if err := ig.store.UpsertNodes(ctx, updated); err != nil {
		return errs.New(errs.StoreFailure, "recompute_layout: upsert_nodes", err)
	}
	return nil
}

// broadcast emits one node_added event per Chunk node created by this
// ingest (spec §4.12) and an edges_added event only when edges were
// actually created.
func (ig *Ingestor) broadcast(namespace, docID string, chunkNodes []model.Node, edgeCount int) {
	if ig.bus == nil {
		return
	}
	now := time.Now()
	for _, n := range chunkNodes {
		ig.bus.Publish(model.Event{
			Name: model.EventNodeAdded, Namespace: namespace, At: now,
			Data: model.NodeAddedData{NodeID: n.ID, Label: model.LabelChunk, DocID: docID},
		})
	}
	if edgeCount > 0 {
		ig.bus.Publish(model.Event{
			Name: model.EventEdgesAdded, Namespace: namespace, At: now,
			Data: model.EdgesAddedData{Count: edgeCount, DocID: docID},
		})
	}
}
