package graph

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexto-ai/contexto/pkg/types"
)

// fakeSource serves fixed entity and relationship versions and honors their
// validity intervals.
type fakeSource struct {
	entities      []*types.Entity
	relationships []*types.Relationship
	entityErr     error
	relErr        error
}

func (f *fakeSource) GetEntities(_ context.Context, validAt time.Time, _ types.EntityType) ([]*types.Entity, error) {
	if f.entityErr != nil {
		return nil, f.entityErr
	}
	var out []*types.Entity
	for _, e := range f.entities {
		if e.ValidAt(validAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSource) GetRelationships(_ context.Context, validAt time.Time) ([]*types.Relationship, error) {
	if f.relErr != nil {
		return nil, f.relErr
	}
	var out []*types.Relationship
	for _, r := range f.relationships {
		if r.ValidAt(validAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func entity(id string, et types.EntityType, confidence float64) *types.Entity {
	return &types.Entity{
		ID: id, Name: id, Type: et, Confidence: confidence,
		EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch,
	}
}

func rel(id, src, dst, relType string) *types.Relationship {
	return &types.Relationship{
		ID: id, SourceID: src, TargetID: dst, Type: relType, Confidence: 0.8,
		EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch,
	}
}

// diamond: a -> b -> c, a -> d -> c, plus an isolated node e.
func diamondGraph(t *testing.T) *KnowledgeGraph {
	t.Helper()
	src := &fakeSource{
		entities: []*types.Entity{
			entity("a", types.EntityTypePerson, 0.9),
			entity("b", types.EntityTypeTool, 0.8),
			entity("c", types.EntityTypeProject, 0.7),
			entity("d", types.EntityTypeConcept, 0.6),
			entity("e", types.EntityTypeConcept, 0.5),
		},
		relationships: []*types.Relationship{
			rel("r1", "a", "b", "uses"),
			rel("r2", "b", "c", "part_of"),
			rel("r3", "a", "d", "mentions"),
			rel("r4", "d", "c", "part_of"),
		},
	}
	g := NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))
	_, err := g.Build(context.Background(), epoch.AddDate(0, 1, 0))
	require.NoError(t, err)
	return g
}

func TestBuildCountsAndDanglingEdges(t *testing.T) {
	src := &fakeSource{
		entities: []*types.Entity{entity("a", types.EntityTypePerson, 1)},
		relationships: []*types.Relationship{
			rel("r1", "a", "ghost", "knows"),
		},
	}
	g := NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))
	n, err := g.Build(context.Background(), epoch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats := g.Stats()
	assert.Equal(t, 1, stats.Nodes)
	assert.Equal(t, 0, stats.Edges)
}

func TestBuildFiltersByValidity(t *testing.T) {
	closed := entity("old", types.EntityTypeConcept, 1)
	until := epoch.AddDate(0, 6, 0)
	closed.ValidUntil = &until
	future := entity("future", types.EntityTypeConcept, 1)
	future.ValidFrom = epoch.AddDate(1, 0, 0)

	src := &fakeSource{entities: []*types.Entity{closed, future, entity("now", types.EntityTypeConcept, 1)}}
	g := NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))

	// At a point where only "old" and "now" are valid.
	n, err := g.Build(context.Background(), epoch.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, g.Contains("old"))
	assert.False(t, g.Contains("future"))

	// After old's interval closed and future's opened.
	n, err = g.Build(context.Background(), epoch.AddDate(2, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, g.Contains("old"))
	assert.True(t, g.Contains("future"))
}

func TestBuildFailureKeepsOldSnapshot(t *testing.T) {
	src := &fakeSource{entities: []*types.Entity{entity("a", types.EntityTypePerson, 1)}}
	g := NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))
	_, err := g.Build(context.Background(), epoch)
	require.NoError(t, err)
	require.True(t, g.Contains("a"))

	src.relErr = errors.New("store is down")
	_, err = g.Build(context.Background(), epoch)
	require.Error(t, err)

	// The previous snapshot still serves reads.
	assert.True(t, g.Contains("a"))
	assert.Equal(t, 1, g.Stats().Nodes)
}

func TestBuildIsIdempotent(t *testing.T) {
	g := diamondGraph(t)
	before := g.Stats()
	_, err := g.Build(context.Background(), epoch.AddDate(0, 1, 0))
	require.NoError(t, err)
	after := g.Stats()
	assert.Equal(t, before.Nodes, after.Nodes)
	assert.Equal(t, before.Edges, after.Edges)
}

func TestFindPaths(t *testing.T) {
	g := diamondGraph(t)

	paths := g.FindPaths("a", "c", 5, 0)
	require.Len(t, paths, 2)
	assert.Contains(t, paths, []string{"a", "b", "c"})
	assert.Contains(t, paths, []string{"a", "d", "c"})

	// Depth 1 is too short to reach c.
	assert.Empty(t, g.FindPaths("a", "c", 1, 0))

	// maxPaths truncates the output.
	assert.Len(t, g.FindPaths("a", "c", 5, 1), 1)

	// Missing endpoints yield empty results, not panics.
	assert.Empty(t, g.FindPaths("a", "nope", 5, 0))
	assert.Empty(t, g.FindPaths("nope", "c", 5, 0))

	// Edges are directed.
	assert.Empty(t, g.FindPaths("c", "a", 5, 0))
}

func TestFindShortestPath(t *testing.T) {
	g := diamondGraph(t)

	path := g.FindShortestPath("a", "c")
	require.Len(t, path, 3)
	assert.Equal(t, "a", path[0])
	assert.Equal(t, "c", path[2])

	assert.Equal(t, []string{"a"}, g.FindShortestPath("a", "a"))
	assert.Nil(t, g.FindShortestPath("c", "a"))
	assert.Nil(t, g.FindShortestPath("a", "e"))
	assert.Nil(t, g.FindShortestPath("a", "missing"))
}

func TestGetNeighborsLevelsAreDisjoint(t *testing.T) {
	g := diamondGraph(t)

	neighbors, err := g.GetNeighbors("a", 2, nil)
	require.NoError(t, err)

	// b and d at distance 1, c at distance 2 (never re-reported at 2 via the
	// other branch).
	byID := map[string]int{}
	for _, n := range neighbors {
		_, dup := byID[n.Entity.ID]
		assert.False(t, dup, "entity %s reported twice", n.Entity.ID)
		byID[n.Entity.ID] = n.Distance
	}
	assert.Equal(t, map[string]int{"b": 1, "d": 1, "c": 2}, byID)
}

func TestGetNeighborsUndirectedAndFiltered(t *testing.T) {
	g := diamondGraph(t)

	// c has only incoming edges; undirected expansion still reaches b and d.
	neighbors, err := g.GetNeighbors("c", 1, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	// Restricting relationship types prunes the a -> d branch, so d is no
	// longer reachable within two hops.
	neighbors, err = g.GetNeighbors("a", 2, []string{"uses", "part_of"})
	require.NoError(t, err)
	byID := map[string]int{}
	for _, n := range neighbors {
		byID[n.Entity.ID] = n.Distance
	}
	assert.Equal(t, map[string]int{"b": 1, "c": 2}, byID)

	_, err = g.GetNeighbors("missing", 1, nil)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestFindRelatedEntitiesOrdering(t *testing.T) {
	g := diamondGraph(t)

	related := g.FindRelatedEntities("a", 2, "")
	require.Len(t, related, 3)
	// Distance ascending, confidence descending within a level.
	assert.Equal(t, "b", related[0].Entity.ID)
	assert.Equal(t, "d", related[1].Entity.ID)
	assert.Equal(t, "c", related[2].Entity.ID)

	// Unknown seed degrades to empty.
	assert.Empty(t, g.FindRelatedEntities("missing", 2, ""))
}

func TestFindRelatedEntitiesTypeFilter(t *testing.T) {
	g := diamondGraph(t)

	// Only the tool within two hops of a survives the filter.
	related := g.FindRelatedEntities("a", 2, types.EntityTypeTool)
	require.Len(t, related, 1)
	assert.Equal(t, "b", related[0].Entity.ID)

	// Concept d is one hop away; project c two hops.
	related = g.FindRelatedEntities("a", 2, types.EntityTypeConcept)
	require.Len(t, related, 1)
	assert.Equal(t, "d", related[0].Entity.ID)

	// No entity of the requested type in range.
	assert.Empty(t, g.FindRelatedEntities("a", 2, types.EntityTypeEvent))
}

func TestGetEntityContext(t *testing.T) {
	g := diamondGraph(t)

	ctx, err := g.GetEntityContext("b", 1)
	require.NoError(t, err)
	assert.Equal(t, "b", ctx.Entity.ID)
	assert.Equal(t, 1, ctx.OutDegree)
	assert.Equal(t, 1, ctx.InDegree)
	require.Len(t, ctx.Outgoing, 1)
	assert.Equal(t, "c", ctx.Outgoing[0].EntityID)
	assert.Equal(t, "part_of", ctx.Outgoing[0].Type)
	require.Len(t, ctx.Incoming, 1)
	assert.Equal(t, "a", ctx.Incoming[0].EntityID)
	assert.Len(t, ctx.Related, 2)

	_, err = g.GetEntityContext("missing", 1)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestConnectedComponents(t *testing.T) {
	g := diamondGraph(t)

	components := g.ConnectedComponents()
	require.Len(t, components, 2)
	assert.Equal(t, []string{"a", "b", "c", "d"}, components[0])
	assert.Equal(t, []string{"e"}, components[1])
}

func TestCentralityScores(t *testing.T) {
	g := diamondGraph(t)

	scores := g.CentralityScores(0)
	require.Len(t, scores, 5)
	// c receives rank from both b and d and must dominate.
	assert.Equal(t, "c", scores[0].EntityID)

	sum := 0.0
	for _, s := range scores {
		sum += s.Score
	}
	assert.InDelta(t, 1.0, sum, 0.01)

	assert.Len(t, g.CentralityScores(2), 2)
}

func TestStats(t *testing.T) {
	g := diamondGraph(t)
	stats := g.Stats()
	assert.Equal(t, 5, stats.Nodes)
	assert.Equal(t, 4, stats.Edges)
	assert.InDelta(t, 4.0/20.0, stats.Density, 1e-9)
	assert.InDelta(t, 8.0/5.0, stats.AvgDegree, 1e-9)
	assert.Equal(t, map[string]int{
		"person":  1,
		"tool":    1,
		"project": 1,
		"concept": 2,
	}, stats.EntityTypes)
	assert.Equal(t, 2, stats.Components)
	assert.Equal(t, 4, stats.LargestComponent)
}

func TestEmptyGraphQueries(t *testing.T) {
	g := NewKnowledgeGraph(&fakeSource{}, slog.New(slog.DiscardHandler))

	assert.False(t, g.Contains("a"))
	assert.Empty(t, g.FindPaths("a", "b", 3, 0))
	assert.Nil(t, g.FindShortestPath("a", "b"))
	_, err := g.GetNeighbors("a", 1, nil)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
	assert.Empty(t, g.ConnectedComponents())
	assert.Empty(t, g.CentralityScores(10))

	stats := g.Stats()
	assert.Equal(t, 0, stats.Nodes)
	assert.Zero(t, stats.Density)
	assert.Zero(t, stats.AvgDegree)
	assert.Nil(t, stats.EntityTypes)
}

func TestMermaid(t *testing.T) {
	g := diamondGraph(t)

	out, err := g.Mermaid(nil, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `a(["a"])`)   // person is a stadium
	assert.Contains(t, out, `d{"d"}`)     // concept is a rhombus
	assert.Contains(t, out, `c["c"]`)     // default rectangle
	assert.Contains(t, out, "a -->|uses| b")

	// An explicit entity set draws the induced subgraph only.
	out, err = g.Mermaid([]string{"a", "b"}, 0)
	require.NoError(t, err)
	assert.Contains(t, out, `b["b"]`)
	assert.Contains(t, out, "a -->|uses| b")
	assert.NotContains(t, out, "part_of")
	assert.NotContains(t, out, `c["c"]`)

	// maxNodes truncates the node set.
	out, err = g.Mermaid([]string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.NotContains(t, out, `c["c"]`)

	_, err = g.Mermaid([]string{"a", "missing"}, 0)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestMermaidSanitizesIDs(t *testing.T) {
	src := &fakeSource{
		entities: []*types.Entity{
			entity("ent-1", types.EntityTypeTool, 1),
			entity("ent-2", types.EntityTypeTool, 1),
		},
		relationships: []*types.Relationship{rel("r", "ent-1", "ent-2", "uses")},
	}
	g := NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))
	_, err := g.Build(context.Background(), epoch)
	require.NoError(t, err)

	out, err := g.Mermaid(nil, 0)
	require.NoError(t, err)
	assert.Contains(t, out, "ent_1 -->|uses| ent_2")
	assert.NotContains(t, out, "ent-1 ")
}
