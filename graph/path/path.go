// Package path implements namespace-scoped node-to-node pathfinding over the
// durable Store (spec §4.8), generalized from the teacher's chunk-to-chunk
// BFS (core/graph/traversal.go) to graph nodes of any label.
package path

import (
	"context"

	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/store"
)

const maxVisited = 5000

// NativeProbe lets a graph-native store answer a shortest-path query
// directly, bypassing the in-memory BFS below. Stores that don't support
// this (the relational backend) leave it nil.
type NativeProbe func(ctx context.Context, namespace, fromID, toID string) ([]model.Node, bool, error)

// Pathfinder finds shortest paths between nodes already persisted in a
// Store, optionally delegating to a store-native shortest-path call.
type Pathfinder struct {
	store  store.Store
	native NativeProbe
}

// New builds a Pathfinder. native may be nil.
func New(s store.Store, native NativeProbe) *Pathfinder {
	return &Pathfinder{store: s, native: native}
}

// ShortestPath returns the node sequence from fromID to toID (inclusive),
// or ok=false if no path exists within maxVisited visited nodes.
func (p *Pathfinder) ShortestPath(ctx context.Context, namespace, fromID, toID string) ([]model.Node, bool, error) {
	if p.native != nil {
		if nodes, ok, err := p.native(ctx, namespace, fromID, toID); err == nil && ok {
			return nodes, true, nil
		}
	}

	edges, err := p.store.ScanEdges(ctx, store.EdgeFilter{Namespace: namespace})
	if err != nil {
		return nil, false, err
	}

	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
		adjacency[e.TargetID] = append(adjacency[e.TargetID], e.SourceID)
	}

	if fromID == toID {
		node, err := p.fetchNode(ctx, namespace, fromID)
		if err != nil || node == nil {
			return nil, false, err
		}
		return []model.Node{*node}, true, nil
	}

	visited := map[string]bool{fromID: true}
	predecessor := map[string]string{}
	queue := []string{fromID}

	found := false
	for len(queue) > 0 && len(visited) <= maxVisited {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adjacency[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			predecessor[next] = current
			if next == toID {
				found = true
				break
			}
			queue = append(queue, next)
		}
		if found {
			break
		}
	}

	if !found {
		return nil, false, nil
	}

	var idChain []string
	cur := toID
	for cur != fromID {
		idChain = append([]string{cur}, idChain...)
		cur = predecessor[cur]
	}
	idChain = append([]string{fromID}, idChain...)

	nodes := make([]model.Node, 0, len(idChain))
	for _, id := range idChain {
		node, err := p.fetchNode(ctx, namespace, id)
		if err != nil {
			return nil, false, err
		}
		if node == nil {
			return nil, false, nil
		}
		nodes = append(nodes, *node)
	}

	return nodes, true, nil
}

func (p *Pathfinder) fetchNode(ctx context.Context, namespace, id string) (*model.Node, error) {
	nodes, err := p.store.ScanNodes(ctx, store.NodeFilter{Namespace: namespace, IDs: []string{id}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &nodes[0], nil
}
