package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contexto-ai/contexto/pkg/types"
)

// Source supplies the entity and relationship versions valid at a given
// instant. The SQLite temporal store satisfies it.
type Source interface {
	GetEntities(ctx context.Context, validAt time.Time, entityType types.EntityType) ([]*types.Entity, error)
	GetRelationships(ctx context.Context, validAt time.Time) ([]*types.Relationship, error)
}

// snapshot is one immutable build of the graph. Nodes and edges live in dense
// arenas; adjacency lists hold edge indexes. Snapshots are never mutated after
// publication.
type snapshot struct {
	nodes []*types.Entity
	index map[string]int32
	edges []*types.Relationship
	out   [][]int32
	in    [][]int32

	asOf    time.Time
	builtAt time.Time
}

var emptySnapshot = &snapshot{index: map[string]int32{}}

// KnowledgeGraph rebuilds and queries graph snapshots. Builds are serialized;
// reads are lock-free against the last published snapshot.
type KnowledgeGraph struct {
	source Source
	logger *slog.Logger

	buildMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewKnowledgeGraph creates a graph with no snapshot. Queries against it
// behave as queries against an empty graph until Build succeeds.
func NewKnowledgeGraph(source Source, logger *slog.Logger) *KnowledgeGraph {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeGraph{source: source, logger: logger}
}

func (g *KnowledgeGraph) snapshot() *snapshot {
	if s := g.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Build loads every entity and relationship valid at asOf and publishes a new
// snapshot. On store failure the previous snapshot stays in place. Returns the
// number of nodes in the published snapshot.
func (g *KnowledgeGraph) Build(ctx context.Context, asOf time.Time) (int, error) {
	g.buildMu.Lock()
	defer g.buildMu.Unlock()

	entities, err := g.source.GetEntities(ctx, asOf, "")
	if err != nil {
		return 0, fmt.Errorf("failed to load entities: %w", err)
	}
	relationships, err := g.source.GetRelationships(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to load relationships: %w", err)
	}

	next := &snapshot{
		nodes:   make([]*types.Entity, 0, len(entities)),
		index:   make(map[string]int32, len(entities)),
		asOf:    asOf,
		builtAt: time.Now().UTC(),
	}

	// Multiple versions of one entity can be valid at asOf only through bad
	// data; keep the first seen so indexes stay stable.
	for _, e := range entities {
		if _, ok := next.index[e.ID]; ok {
			continue
		}
		next.index[e.ID] = int32(len(next.nodes))
		next.nodes = append(next.nodes, e)
	}

	next.out = make([][]int32, len(next.nodes))
	next.in = make([][]int32, len(next.nodes))

	skipped := 0
	for _, r := range relationships {
		src, okSrc := next.index[r.SourceID]
		dst, okDst := next.index[r.TargetID]
		if !okSrc || !okDst {
			skipped++
			continue
		}
		edgeIdx := int32(len(next.edges))
		next.edges = append(next.edges, r)
		next.out[src] = append(next.out[src], edgeIdx)
		next.in[dst] = append(next.in[dst], edgeIdx)
	}

	g.current.Store(next)
	g.logger.Info("knowledge graph rebuilt",
		"nodes", len(next.nodes),
		"edges", len(next.edges),
		"dangling_edges_skipped", skipped,
		"as_of", asOf)
	return len(next.nodes), nil
}

// Contains reports whether the entity is a node in the current snapshot.
func (g *KnowledgeGraph) Contains(entityID string) bool {
	_, ok := g.snapshot().index[entityID]
	return ok
}

// Entity returns the snapshot's version of an entity, or ErrEntityNotFound.
func (g *KnowledgeGraph) Entity(entityID string) (*types.Entity, error) {
	s := g.snapshot()
	idx, ok := s.index[entityID]
	if !ok {
		return nil, types.ErrEntityNotFound
	}
	return s.nodes[idx], nil
}

// Stats summarizes the current snapshot. Density, AvgDegree, and EntityTypes
// are only populated for a non-empty graph.
type Stats struct {
	Nodes            int            `json:"nodes"`
	Edges            int            `json:"edges"`
	Density          float64        `json:"density,omitempty"`
	AvgDegree        float64        `json:"avg_degree,omitempty"`
	EntityTypes      map[string]int `json:"entity_types,omitempty"`
	Components       int            `json:"connected_components"`
	LargestComponent int            `json:"largest_component"`
	AsOf             time.Time      `json:"as_of"`
	BuiltAt          time.Time      `json:"built_at"`
}

// Stats computes basic structural metrics over the current snapshot.
func (g *KnowledgeGraph) Stats() *Stats {
	s := g.snapshot()
	n := len(s.nodes)
	e := len(s.edges)

	stats := &Stats{Nodes: n, Edges: e, AsOf: s.asOf, BuiltAt: s.builtAt}
	if n > 1 {
		stats.Density = float64(e) / float64(n*(n-1))
	}
	if n > 0 {
		stats.AvgDegree = 2 * float64(e) / float64(n)
		stats.EntityTypes = make(map[string]int)
		for _, node := range s.nodes {
			stats.EntityTypes[string(node.Type)]++
		}
	}

	components := s.weakComponents()
	stats.Components = len(components)
	for _, c := range components {
		if len(c) > stats.LargestComponent {
			stats.LargestComponent = len(c)
		}
	}
	return stats
}

// undirectedPeers returns the distinct node indexes adjacent to idx in either
// direction, optionally restricted to the given relationship types. Parallel
// edges collapse to one adjacency.
func (s *snapshot) undirectedPeers(idx int32, relTypes map[string]bool) []int32 {
	seen := make(map[int32]bool)
	var peers []int32
	add := func(peer int32) {
		if peer != idx && !seen[peer] {
			seen[peer] = true
			peers = append(peers, peer)
		}
	}
	for _, ei := range s.out[idx] {
		if relTypes != nil && !relTypes[s.edges[ei].Type] {
			continue
		}
		add(s.index[s.edges[ei].TargetID])
	}
	for _, ei := range s.in[idx] {
		if relTypes != nil && !relTypes[s.edges[ei].Type] {
			continue
		}
		add(s.index[s.edges[ei].SourceID])
	}
	return peers
}

// successors returns the distinct node indexes reachable over one outgoing
// edge from idx.
func (s *snapshot) successors(idx int32) []int32 {
	seen := make(map[int32]bool)
	var succ []int32
	for _, ei := range s.out[idx] {
		peer := s.index[s.edges[ei].TargetID]
		if !seen[peer] {
			seen[peer] = true
			succ = append(succ, peer)
		}
	}
	return succ
}
