// Package layout implements recompute_layout (spec §4.4): circle placement
// of Section nodes plus a deterministic spring layout for everything else,
// and a clustered variant built on Louvain memberships.
package layout

import (
	"hash/fnv"
	"math"
	"math/rand"
)

const springIterations = 40

// Position is a 2D layout coordinate.
type Position struct {
	X, Y float64
}

// Mode selects the layout strategy.
type Mode string

const (
	ModeHybrid    Mode = "hybrid"
	ModeClustered Mode = "clustered"
)

// Graph is the minimal shape Hybrid/Clustered need: node ids, the subset
// that are Section nodes, and an edge list (pairs of ids).
type Graph struct {
	NodeIDs    []string
	SectionIDs []string
	Edges      [][2]string
}

// Cluster is one Louvain community's membership, used by Clustered.
type Cluster struct {
	ID      string
	NodeIDs []string
}

// Hybrid places Section nodes evenly on a circle, anchors every other node
// near its section with deterministic jitter, then runs a spring layout
// seeded from those anchors.
func Hybrid(g Graph, sectionOf map[string]string) map[string]Position {
	sectionPos := circlePositions(g.SectionIDs, 1+0.2*math.Log(float64(len(g.SectionIDs)+1)))

	anchors := make(map[string]Position, len(g.NodeIDs))
	for _, id := range g.NodeIDs {
		base := Position{}
		if sec, ok := sectionOf[id]; ok {
			base = sectionPos[sec]
		}
		jx, jy := jitter(id)
		anchors[id] = Position{X: base.X + jx, Y: base.Y + jy}
	}
	for _, id := range g.SectionIDs {
		anchors[id] = sectionPos[id]
	}

	k := 0.6 / math.Sqrt(float64(len(g.NodeIDs)+1))
	return springLayout(g.NodeIDs, g.Edges, anchors, k, springIterations)
}

// Clustered arranges clusters on an outer circle, then spring-lays-out each
// cluster's induced subgraph, scaled and translated to that cluster's
// circle position. Falls back to Hybrid when clusters is empty.
func Clustered(g Graph, sectionOf map[string]string, clusters []Cluster) map[string]Position {
	if len(clusters) == 0 {
		return Hybrid(g, sectionOf)
	}

	clusterCenters := circlePositions(clusterIDs(clusters), 4+math.Log(float64(len(clusters)+1)))

	edgesByNode := map[string][][2]string{}
	for _, e := range g.Edges {
		edgesByNode[e[0]] = append(edgesByNode[e[0]], e)
		edgesByNode[e[1]] = append(edgesByNode[e[1]], e)
	}

	positions := make(map[string]Position)
	for _, c := range clusters {
		center := clusterCenters[c.ID]
		scale := 1.2 + 0.15*math.Log(float64(len(c.NodeIDs)+1))

		inCluster := make(map[string]bool, len(c.NodeIDs))
		for _, id := range c.NodeIDs {
			inCluster[id] = true
		}

		var subEdges [][2]string
		for _, id := range c.NodeIDs {
			for _, e := range edgesByNode[id] {
				if inCluster[e[0]] && inCluster[e[1]] {
					subEdges = append(subEdges, e)
				}
			}
		}

		anchors := make(map[string]Position, len(c.NodeIDs))
		for _, id := range c.NodeIDs {
			jx, jy := jitter(id)
			anchors[id] = Position{X: jx, Y: jy}
		}

		k := 0.6 / math.Sqrt(float64(len(c.NodeIDs)+1))
		sub := springLayout(c.NodeIDs, subEdges, anchors, k, springIterations)

		for id, pos := range sub {
			positions[id] = Position{
				X: center.X + pos.X*scale,
				Y: center.Y + pos.Y*scale,
			}
		}
	}

	return positions
}

func clusterIDs(clusters []Cluster) []string {
	out := make([]string, len(clusters))
	for i, c := range clusters {
		out[i] = c.ID
	}
	return out
}

func circlePositions(ids []string, radius float64) map[string]Position {
	out := make(map[string]Position, len(ids))
	n := len(ids)
	if n == 0 {
		return out
	}
	for i, id := range ids {
		theta := 2 * math.Pi * float64(i) / float64(n)
		out[id] = Position{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)}
	}
	return out
}

// jitter derives a small deterministic offset from hash(id), so identical
// input always anchors to the same point.
func jitter(id string) (float64, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum64()

	rng := rand.New(rand.NewSource(int64(sum)))
	return (rng.Float64()*2 - 1) * 0.1, (rng.Float64()*2 - 1) * 0.1
}

// springLayout runs a Fruchterman-Reingold-style force simulation starting
// from anchors, with repulsion ~k^2/d and attraction ~d^2/k along edges.
func springLayout(nodeIDs []string, edges [][2]string, anchors map[string]Position, k float64, iterations int) map[string]Position {
	pos := make(map[string]Position, len(nodeIDs))
	for _, id := range nodeIDs {
		pos[id] = anchors[id]
	}

	for iter := 0; iter < iterations; iter++ {
		disp := make(map[string]Position, len(nodeIDs))

		for i, a := range nodeIDs {
			for _, b := range nodeIDs[i+1:] {
				dx := pos[a].X - pos[b].X
				dy := pos[a].Y - pos[b].Y
				d := math.Hypot(dx, dy)
				if d < 1e-9 {
					d = 1e-9
				}
				force := (k * k) / d
				ux, uy := dx/d, dy/d
				disp[a] = Position{X: disp[a].X + ux*force, Y: disp[a].Y + uy*force}
				disp[b] = Position{X: disp[b].X - ux*force, Y: disp[b].Y - uy*force}
			}
		}

		for _, e := range edges {
			a, b := e[0], e[1]
			dx := pos[a].X - pos[b].X
			dy := pos[a].Y - pos[b].Y
			d := math.Hypot(dx, dy)
			if d < 1e-9 {
				d = 1e-9
			}
			force := (d * d) / k
			ux, uy := dx/d, dy/d
			disp[a] = Position{X: disp[a].X - ux*force, Y: disp[a].Y - uy*force}
			disp[b] = Position{X: disp[b].X + ux*force, Y: disp[b].Y + uy*force}
		}

		for _, id := range nodeIDs {
			d := disp[id]
			length := math.Hypot(d.X, d.Y)
			if length < 1e-9 {
				continue
			}
			step := math.Min(length, k)
			pos[id] = Position{
				X: pos[id].X + (d.X/length)*step,
				Y: pos[id].Y + (d.Y/length)*step,
			}
		}
	}

	return pos
}
