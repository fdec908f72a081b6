// Package centrality computes PageRank, betweenness, and a combined
// importance score over an in-memory adjacency built from a namespace's
// edges (spec §4.4's compute_centrality), grounded on the teacher's
// build-local-adjacency-then-operate-in-memory style seen across
// core/graph/traversal.go.
package centrality

import (
	"math"
	"math/rand"
	"sort"
)

const (
	pageRankDamping    = 0.85
	pageRankIterations = 100
	pageRankMaxNodes   = 5000

	betweennessExactMax   = 1200
	betweennessSampledMax = 8000
	betweennessSeed       = 42
)

// Result holds the normalized metrics for one node, plus the combined
// importance score (spec: "importance = mean of whichever normalized
// metrics are present").
type Result struct {
	PageRank       float64
	HasPageRank    bool
	Betweenness    float64
	HasBetweenness bool
	Importance     float64
}

// Compute builds an adjacency map from edges (ids only) and returns a
// per-node Result map, keyed by node id. nodeIDs must include every node
// that should receive a (possibly zero) score, even isolated ones.
func Compute(nodeIDs []string, edges [][2]string) map[string]Result {
	adjacency := buildAdjacency(nodeIDs, edges)
	n := len(nodeIDs)

	results := make(map[string]Result, n)
	for _, id := range nodeIDs {
		results[id] = Result{}
	}

	if n == 0 {
		return results
	}

	var pageRank map[string]float64
	if n <= pageRankMaxNodes {
		pageRank = computePageRank(nodeIDs, adjacency)
	}

	var betweenness map[string]float64
	switch {
	case n <= betweennessExactMax:
		betweenness = computeBetweennessExact(nodeIDs, adjacency)
	case n <= betweennessSampledMax:
		sampleSize := int(math.Max(10, 0.02*float64(n)))
		betweenness = computeBetweennessSampled(nodeIDs, adjacency, sampleSize)
	}

	normalizedPageRank := minMaxNormalize(pageRank)
	normalizedBetweenness := minMaxNormalize(betweenness)

	for _, id := range nodeIDs {
		r := Result{}
		var sum float64
		var count int

		if v, ok := normalizedPageRank[id]; ok {
			r.PageRank = v
			r.HasPageRank = true
			sum += v
			count++
		}
		if v, ok := normalizedBetweenness[id]; ok {
			r.Betweenness = v
			r.HasBetweenness = true
			sum += v
			count++
		}
		if count > 0 {
			r.Importance = sum / float64(count)
		}
		results[id] = r
	}

	return results
}

func buildAdjacency(nodeIDs []string, edges [][2]string) map[string][]string {
	adjacency := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		adjacency[id] = nil
	}
	for _, e := range edges {
		adjacency[e[0]] = append(adjacency[e[0]], e[1])
		adjacency[e[1]] = append(adjacency[e[1]], e[0])
	}
	return adjacency
}

func computePageRank(nodeIDs []string, adjacency map[string][]string) map[string]float64 {
	n := float64(len(nodeIDs))
	rank := make(map[string]float64, len(nodeIDs))
	for _, id := range nodeIDs {
		rank[id] = 1.0 / n
	}

	for iter := 0; iter < pageRankIterations; iter++ {
		next := make(map[string]float64, len(nodeIDs))
		base := (1 - pageRankDamping) / n
		for _, id := range nodeIDs {
			next[id] = base
		}

		for _, id := range nodeIDs {
			neighbors := adjacency[id]
			if len(neighbors) == 0 {
				share := pageRankDamping * rank[id] / n
				for _, target := range nodeIDs {
					next[target] += share
				}
				continue
			}
			share := pageRankDamping * rank[id] / float64(len(neighbors))
			for _, nb := range neighbors {
				next[nb] += share
			}
		}

		rank = next
	}

	return rank
}

// computeBetweennessExact runs unweighted BFS from every node and
// accumulates Brandes-style dependency scores.
func computeBetweennessExact(nodeIDs []string, adjacency map[string][]string) map[string]float64 {
	scores := make(map[string]float64, len(nodeIDs))
	for _, id := range nodeIDs {
		scores[id] = 0
	}
	for _, s := range nodeIDs {
		brandesFrom(s, nodeIDs, adjacency, scores)
	}
	return scores
}

func computeBetweennessSampled(nodeIDs []string, adjacency map[string][]string, sampleSize int) map[string]float64 {
	if sampleSize > len(nodeIDs) {
		sampleSize = len(nodeIDs)
	}

	ordered := make([]string, len(nodeIDs))
	copy(ordered, nodeIDs)
	sort.Strings(ordered)

	rng := rand.New(rand.NewSource(betweennessSeed))
	perm := rng.Perm(len(ordered))[:sampleSize]

	scores := make(map[string]float64, len(nodeIDs))
	for _, id := range nodeIDs {
		scores[id] = 0
	}

	for _, idx := range perm {
		brandesFrom(ordered[idx], nodeIDs, adjacency, scores)
	}

	if sampleSize > 0 {
		scale := float64(len(nodeIDs)) / float64(sampleSize)
		for id := range scores {
			scores[id] *= scale
		}
	}

	return scores
}

// brandesFrom accumulates pair-dependency betweenness contributions from a
// single BFS source into scores (Brandes' algorithm, unweighted variant).
func brandesFrom(s string, nodeIDs []string, adjacency map[string][]string, scores map[string]float64) {
	dist := map[string]int{s: 0}
	sigma := map[string]float64{s: 1}
	var predecessors = map[string][]string{}
	var order []string
	queue := []string{s}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)

		for _, w := range adjacency[v] {
			if _, seen := dist[w]; !seen {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
				predecessors[w] = append(predecessors[w], v)
			}
		}
	}

	delta := map[string]float64{}
	for i := len(order) - 1; i >= 0; i-- {
		w := order[i]
		for _, v := range predecessors[w] {
			delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
		}
		if w != s {
			scores[w] += delta[w]
		}
	}
}

func minMaxNormalize(values map[string]float64) map[string]float64 {
	if values == nil {
		return nil
	}
	if len(values) == 0 {
		return values
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make(map[string]float64, len(values))
	if max == min {
		for k := range values {
			out[k] = 0
		}
		return out
	}
	for k, v := range values {
		out[k] = (v - min) / (max - min)
	}
	return out
}
