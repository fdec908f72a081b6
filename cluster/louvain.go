package cluster

import (
	"math/rand"
	"sort"
)

const louvainSeed = 42

// weightedGraph is an undirected, weighted adjacency list over a fixed node
// set, built once per get_clusters call from namespace-scoped nodes/edges.
type weightedGraph struct {
	nodes     []string
	adjacency map[string]map[string]float64
	degree    map[string]float64
	totalW    float64
}

func newWeightedGraph(nodeIDs []string) *weightedGraph {
	g := &weightedGraph{
		adjacency: make(map[string]map[string]float64, len(nodeIDs)),
		degree:    make(map[string]float64, len(nodeIDs)),
	}
	g.nodes = append(g.nodes, nodeIDs...)
	for _, id := range nodeIDs {
		g.adjacency[id] = make(map[string]float64)
	}
	return g
}

// addEdge adds weight w between a and b, ignored if either endpoint is
// absent from the graph's node set. Self-loops and parallel edges
// accumulate weight.
func (g *weightedGraph) addEdge(a, b string, w float64) {
	if _, ok := g.adjacency[a]; !ok {
		return
	}
	if _, ok := g.adjacency[b]; !ok {
		return
	}
	if w <= 0 {
		w = 1
	}
	g.adjacency[a][b] += w
	if a != b {
		g.adjacency[b][a] += w
	}
	g.degree[a] += w
	g.degree[b] += w
	g.totalW += w
}

// communities runs a single-level Louvain-style local-moving pass: nodes
// are repeatedly offered to the neighboring community that maximizes
// modularity gain, deterministically ordered and seeded for reproducible
// tie-breaking, until a full pass produces no further moves. This is the
// "greedy modularity" fallback the original implementation reaches for
// when networkx's multi-level Louvain is unavailable; a single local-moving
// phase without the aggregation/recursion step is sufficient for the graph
// sizes this service expects and keeps the algorithm's behavior easy to
// reason about.
func (g *weightedGraph) communities() [][]string {
	if len(g.nodes) == 0 {
		return nil
	}

	ordered := append([]string(nil), g.nodes...)
	sort.Strings(ordered)
	rng := rand.New(rand.NewSource(louvainSeed))

	community := make(map[string]int, len(ordered))
	commWeight := make(map[int]float64, len(ordered))
	for i, id := range ordered {
		community[id] = i
		commWeight[i] = g.degree[id]
	}

	m2 := g.totalW * 2
	if m2 == 0 {
		m2 = 1
	}

	improved := true
	for pass := 0; improved && pass < 100; pass++ {
		improved = false

		shuffled := append([]string(nil), ordered...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		for _, id := range shuffled {
			currentComm := community[id]
			neighborWeight := make(map[int]float64)
			for nb, w := range g.adjacency[id] {
				neighborWeight[community[nb]] += w
			}

			commWeight[currentComm] -= g.degree[id]

			bestComm := currentComm
			bestGain := neighborWeight[currentComm] - g.degree[id]*commWeight[currentComm]/m2

			candidateComms := make([]int, 0, len(neighborWeight))
			for c := range neighborWeight {
				candidateComms = append(candidateComms, c)
			}
			sort.Ints(candidateComms)

			for _, c := range candidateComms {
				if c == currentComm {
					continue
				}
				gain := neighborWeight[c] - g.degree[id]*commWeight[c]/m2
				if gain > bestGain {
					bestGain = gain
					bestComm = c
				}
			}

			commWeight[bestComm] += g.degree[id]
			if bestComm != currentComm {
				community[id] = bestComm
				improved = true
			}
		}
	}

	grouped := make(map[int][]string)
	for _, id := range ordered {
		c := community[id]
		grouped[c] = append(grouped[c], id)
	}

	out := make([][]string, 0, len(grouped))
	for _, members := range grouped {
		sort.Strings(members)
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

// modularity computes Newman-Girvan modularity Q for the given community
// partition over g, using the per-community closed form
// Q = Σ_c [ Σ_in_c/2m - (Σ_tot_c/2m)^2 ]
// rather than summing the null-model term only over adjacent pairs: the
// latter silently drops the -k_i*k_j/2m penalty for every non-adjacent
// same-community pair and over-reports Q.
func (g *weightedGraph) modularity(communities [][]string) float64 {
	m2 := g.totalW * 2
	if m2 == 0 {
		return 0
	}

	memberOf := make(map[string]int, len(g.nodes))
	for ci, members := range communities {
		for _, id := range members {
			memberOf[id] = ci
		}
	}

	sigmaTot := make(map[int]float64, len(communities))
	for id, ci := range memberOf {
		sigmaTot[ci] += g.degree[id]
	}

	sigmaIn := make(map[int]float64, len(communities))
	for a, neighbors := range g.adjacency {
		ca := memberOf[a]
		for b, w := range neighbors {
			if memberOf[b] == ca {
				sigmaIn[ca] += w
			}
		}
	}

	var q float64
	for ci := range communities {
		q += sigmaIn[ci]/m2 - (sigmaTot[ci]/m2)*(sigmaTot[ci]/m2)
	}
	return q
}
