package graph

import (
	"math"
	"sort"
)

// weakComponents partitions node indexes into weakly connected components.
func (s *snapshot) weakComponents() [][]int32 {
	visited := make([]bool, len(s.nodes))
	var components [][]int32

	for start := range s.nodes {
		if visited[start] {
			continue
		}
		var component []int32
		queue := []int32{int32(start)}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			component = append(component, node)
			for _, peer := range s.undirectedPeers(node, nil) {
				if !visited[peer] {
					visited[peer] = true
					queue = append(queue, peer)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

// ConnectedComponents returns the weakly connected components as entity id
// sets, largest first; ids within a component are sorted for determinism.
func (g *KnowledgeGraph) ConnectedComponents() [][]string {
	s := g.snapshot()
	raw := s.weakComponents()

	components := make([][]string, len(raw))
	for i, c := range raw {
		ids := make([]string, len(c))
		for j, idx := range c {
			ids[j] = s.nodes[idx].ID
		}
		sort.Strings(ids)
		components[i] = ids
	}
	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components
}

const (
	pagerankDamping   = 0.85
	pagerankMaxIter   = 100
	pagerankTolerance = 1e-6
)

// CentralityScore is one entity's PageRank within the snapshot.
type CentralityScore struct {
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// CentralityScores runs PageRank over the directed snapshot and returns the
// topN highest-ranked entities. Parallel edges contribute proportional
// weight; the rank mass of dangling nodes is redistributed uniformly.
func (g *KnowledgeGraph) CentralityScores(topN int) []*CentralityScore {
	s := g.snapshot()
	n := len(s.nodes)
	if n == 0 {
		return nil
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	outDegree := make([]float64, n)
	for i := range s.nodes {
		rank[i] = 1.0 / float64(n)
		outDegree[i] = float64(len(s.out[i]))
	}

	for iter := 0; iter < pagerankMaxIter; iter++ {
		danglingMass := 0.0
		for i := range next {
			next[i] = 0
		}
		for i := 0; i < n; i++ {
			if outDegree[i] == 0 {
				danglingMass += rank[i]
				continue
			}
			share := rank[i] / outDegree[i]
			for _, ei := range s.out[int32(i)] {
				next[s.index[s.edges[ei].TargetID]] += share
			}
		}

		base := (1-pagerankDamping)/float64(n) + pagerankDamping*danglingMass/float64(n)
		delta := 0.0
		for i := 0; i < n; i++ {
			next[i] = base + pagerankDamping*next[i]
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < pagerankTolerance*float64(n) {
			break
		}
	}

	scores := make([]*CentralityScore, n)
	for i, node := range s.nodes {
		scores[i] = &CentralityScore{EntityID: node.ID, Name: node.Name, Score: rank[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].EntityID < scores[j].EntityID
	})
	if topN > 0 && len(scores) > topN {
		scores = scores[:topN]
	}
	return scores
}
