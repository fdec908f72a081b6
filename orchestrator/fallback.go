package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

const maxFallbackEdges = 50000

// runFallback is the "local fallback extractor" (spec §4.11 step 5): when no
// external CLI is available, it aggregates the namespace's already-extracted
// entities and relations straight from the Store into an ArtifactSet,
// grouping entities into communities by connected component. This stands in
// for original_source's run_gemini_fallback, which re-extracts from raw
// document files on disk; this codebase has no raw-file corpus to re-read
// (ingest_document takes text directly), so the fallback's role here is to
// re-surface what the graph already knows as a pipeline artifact rather
// than to re-derive it — an Open Question decision recorded in DESIGN.md.
func runFallback(ctx context.Context, s store.Store, namespace string) (ArtifactSet, error) {
	nodes, err := s.ScanNodes(ctx, store.NodeFilter{Namespace: namespace})
	if err != nil {
		return ArtifactSet{}, err
	}

	entityIDs := make([]string, 0, len(nodes))
	byID := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		if !isEntityLabel(n.Label) {
			continue
		}
		entityIDs = append(entityIDs, n.ID)
		byID[n.ID] = n
	}
	if len(entityIDs) == 0 {
		return ArtifactSet{}, nil
	}

	edges, err := s.IncidentEdges(ctx, namespace, entityIDs, maxFallbackEdges)
	if err != nil {
		return ArtifactSet{}, err
	}

	entities := make([]ArtifactEntity, 0, len(entityIDs))
	sort.Strings(entityIDs)
	for _, id := range entityIDs {
		n := byID[id]
		desc, _ := n.Properties["description"].(string)
		entities = append(entities, ArtifactEntity{ID: n.ID, Name: n.Name, Label: n.Label, Description: desc})
	}

	relationships := make([]ArtifactRelationship, 0, len(edges))
	uf := newUnionFind(entityIDs)
	for _, e := range edges {
		if _, ok := byID[e.SourceID]; !ok {
			continue
		}
		if _, ok := byID[e.TargetID]; !ok {
			continue
		}
		relationships = append(relationships, ArtifactRelationship{
			ID: fmt.Sprintf("r_%s_%s_%s", e.SourceID, e.TargetID, e.Relation),
			SourceID: e.SourceID, TargetID: e.TargetID, Relation: e.Relation, Weight: e.Confidence,
		})
		uf.union(e.SourceID, e.TargetID)
	}

	components := uf.components()
	memberships := make([]ArtifactMembership, 0, len(entityIDs))
	reports := make([]ArtifactReport, 0, len(components))
	for i, comm := range components {
		cid := fmt.Sprintf("c%d", i+1)
		names := make([]string, 0, len(comm))
		for _, id := range comm {
			memberships = append(memberships, ArtifactMembership{ClusterID: cid, EntityID: id})
			names = append(names, byID[id].Name)
		}
		reports = append(reports, ArtifactReport{
			ClusterID: cid,
			Title:     fmt.Sprintf("Community %d", i+1),
			Summary:   "Entities: " + joinComma(names),
		})
	}

	return ArtifactSet{Entities: entities, Relationships: relationships, Memberships: memberships, Reports: reports}, nil
}

func isEntityLabel(label string) bool {
	switch label {
	case model.LabelEntity, model.LabelTechnology, model.LabelOrganization, model.LabelRole, model.LabelAchievement:
		return true
	default:
		return false
	}
}

func joinComma(items []string) string {
	if len(items) == 0 {
		return ""
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}

// unionFind is a small deterministic connected-components helper used to
// derive fallback communities from the relationship graph.
type unionFind struct {
	parent map[string]string
	order  []string
}

func newUnionFind(ids []string) *unionFind {
	parent := make(map[string]string, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	return &unionFind{parent: parent, order: ids}
}

func (u *unionFind) find(id string) string {
	for u.parent[id] != id {
		u.parent[id] = u.parent[u.parent[id]]
		id = u.parent[id]
	}
	return id
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func (u *unionFind) components() [][]string {
	groups := make(map[string][]string)
	ordered := append([]string(nil), u.order...)
	sort.Strings(ordered)
	for _, id := range ordered {
		root := u.find(id)
		groups[root] = append(groups[root], id)
	}

	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}
