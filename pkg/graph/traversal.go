package graph

import (
	"sort"

	"github.com/contexto-ai/contexto/pkg/types"
)

// FindPaths enumerates simple directed paths from source to target with at
// most maxDepth edges, depth-first. maxPaths truncates the returned slice;
// the search space itself is not bounded by it. Missing endpoints yield an
// empty result.
func (g *KnowledgeGraph) FindPaths(sourceID, targetID string, maxDepth, maxPaths int) [][]string {
	s := g.snapshot()
	src, okSrc := s.index[sourceID]
	dst, okDst := s.index[targetID]
	if !okSrc || !okDst || maxDepth < 1 {
		return nil
	}

	var paths [][]string
	onPath := make(map[int32]bool)
	path := []int32{src}
	onPath[src] = true

	var dfs func(node int32)
	dfs = func(node int32) {
		if node == dst {
			ids := make([]string, len(path))
			for i, idx := range path {
				ids[i] = s.nodes[idx].ID
			}
			paths = append(paths, ids)
			return
		}
		if len(path)-1 >= maxDepth {
			return
		}
		for _, peer := range s.successors(node) {
			if onPath[peer] {
				continue
			}
			onPath[peer] = true
			path = append(path, peer)
			dfs(peer)
			path = path[:len(path)-1]
			onPath[peer] = false
		}
	}
	dfs(src)

	if maxPaths > 0 && len(paths) > maxPaths {
		paths = paths[:maxPaths]
	}
	return paths
}

// FindShortestPath returns one shortest directed path from source to target
// as entity ids, breadth-first. Nil when either endpoint is missing or no
// path exists.
func (g *KnowledgeGraph) FindShortestPath(sourceID, targetID string) []string {
	s := g.snapshot()
	src, okSrc := s.index[sourceID]
	dst, okDst := s.index[targetID]
	if !okSrc || !okDst {
		return nil
	}
	if src == dst {
		return []string{sourceID}
	}

	prev := map[int32]int32{src: src}
	queue := []int32{src}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, peer := range s.successors(node) {
			if _, visited := prev[peer]; visited {
				continue
			}
			prev[peer] = node
			if peer == dst {
				var ids []string
				for at := dst; ; at = prev[at] {
					ids = append([]string{s.nodes[at].ID}, ids...)
					if at == src {
						return ids
					}
				}
			}
			queue = append(queue, peer)
		}
	}
	return nil
}

// Neighbor is an entity reached from a query node, tagged with its hop
// distance.
type Neighbor struct {
	Entity   *types.Entity `json:"entity"`
	Distance int           `json:"distance"`
}

// GetNeighbors walks the undirected adjacency breadth-first up to depth hops,
// optionally following only the given relationship types. Each reachable
// entity appears once, at its minimum distance; results are ordered by
// distance, then entity id. Returns ErrEntityNotFound when the query entity
// is not in the snapshot.
func (g *KnowledgeGraph) GetNeighbors(entityID string, depth int, relTypes []string) ([]*Neighbor, error) {
	s := g.snapshot()
	start, ok := s.index[entityID]
	if !ok {
		return nil, types.ErrEntityNotFound
	}
	if depth < 1 {
		depth = 1
	}

	var filter map[string]bool
	if len(relTypes) > 0 {
		filter = make(map[string]bool, len(relTypes))
		for _, rt := range relTypes {
			filter[rt] = true
		}
	}

	visited := map[int32]bool{start: true}
	frontier := []int32{start}
	var neighbors []*Neighbor

	for dist := 1; dist <= depth && len(frontier) > 0; dist++ {
		var next []int32
		for _, node := range frontier {
			for _, peer := range s.undirectedPeers(node, filter) {
				if visited[peer] {
					continue
				}
				visited[peer] = true
				next = append(next, peer)
				neighbors = append(neighbors, &Neighbor{Entity: s.nodes[peer], Distance: dist})
			}
		}
		frontier = next
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Entity.ID < neighbors[j].Entity.ID
	})
	return neighbors, nil
}

// FindRelatedEntities returns entities within maxDistance undirected hops of
// the query entity, optionally restricted to one entity type, ordered by
// distance ascending then confidence descending. An entity absent from the
// snapshot yields an empty result rather than an error so callers can seed
// speculatively.
func (g *KnowledgeGraph) FindRelatedEntities(entityID string, maxDistance int, entityType types.EntityType) []*Neighbor {
	neighbors, err := g.GetNeighbors(entityID, maxDistance, nil)
	if err != nil {
		return nil
	}

	related := neighbors[:0]
	for _, n := range neighbors {
		if entityType == "" || n.Entity.Type == entityType {
			related = append(related, n)
		}
	}
	sort.SliceStable(related, func(i, j int) bool {
		if related[i].Distance != related[j].Distance {
			return related[i].Distance < related[j].Distance
		}
		return related[i].Entity.Confidence > related[j].Entity.Confidence
	})
	return related
}

// RelationSummary describes one edge incident to a context query's entity.
type RelationSummary struct {
	EntityID   string  `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	Type       string  `json:"relationship_type"`
	Confidence float64 `json:"confidence"`
}

// EntityContext is the local view around one entity: the entity itself, its
// incident edges with resolved peer names, and nearby entities.
type EntityContext struct {
	Entity    *types.Entity      `json:"entity"`
	Outgoing  []*RelationSummary `json:"outgoing"`
	Incoming  []*RelationSummary `json:"incoming"`
	Related   []*Neighbor        `json:"related"`
	InDegree  int                `json:"in_degree"`
	OutDegree int                `json:"out_degree"`
}

// GetEntityContext assembles the local context of an entity up to depth hops.
// Returns ErrEntityNotFound when the entity is not in the snapshot.
func (g *KnowledgeGraph) GetEntityContext(entityID string, depth int) (*EntityContext, error) {
	s := g.snapshot()
	idx, ok := s.index[entityID]
	if !ok {
		return nil, types.ErrEntityNotFound
	}

	ec := &EntityContext{
		Entity:    s.nodes[idx],
		OutDegree: len(s.out[idx]),
		InDegree:  len(s.in[idx]),
	}
	for _, ei := range s.out[idx] {
		edge := s.edges[ei]
		peer := s.nodes[s.index[edge.TargetID]]
		ec.Outgoing = append(ec.Outgoing, &RelationSummary{
			EntityID:   peer.ID,
			EntityName: peer.Name,
			Type:       edge.Type,
			Confidence: edge.Confidence,
		})
	}
	for _, ei := range s.in[idx] {
		edge := s.edges[ei]
		peer := s.nodes[s.index[edge.SourceID]]
		ec.Incoming = append(ec.Incoming, &RelationSummary{
			EntityID:   peer.ID,
			EntityName: peer.Name,
			Type:       edge.Type,
			Confidence: edge.Confidence,
		})
	}

	ec.Related = g.FindRelatedEntities(entityID, depth, "")
	return ec, nil
}
