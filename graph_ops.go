package contexto

import (
	"context"
	"fmt"
	"time"

	"github.com/contexto-ai/contexto/pkg/graph"
	"github.com/contexto-ai/contexto/pkg/types"
)

// GraphQuery describes one knowledge graph operation. EntityID is required
// for entity-centric operations; TargetID only for path operations.
// EntityType narrows the related operation; EntityIDs selects the entities a
// visualize operation draws.
type GraphQuery struct {
	Operation  string   `json:"operation"`
	EntityID   string   `json:"entity_id,omitempty"`
	EntityIDs  []string `json:"entity_ids,omitempty"`
	TargetID   string   `json:"target_id,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	Depth      int      `json:"depth,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	RelTypes   []string `json:"relationship_types,omitempty"`
}

// Graph query operations.
const (
	GraphOpContext      = "context"
	GraphOpNeighbors    = "neighbors"
	GraphOpRelated      = "related"
	GraphOpPaths        = "paths"
	GraphOpShortestPath = "shortest_path"
	GraphOpComponents   = "components"
	GraphOpCentrality   = "centrality"
	GraphOpStats        = "stats"
	GraphOpVisualize    = "visualize"
)

// GraphQueryResult carries the answer of whichever operation ran; only the
// matching field is populated.
type GraphQueryResult struct {
	Operation  string                   `json:"operation"`
	Context    *graph.EntityContext     `json:"context,omitempty"`
	Neighbors  []*graph.Neighbor        `json:"neighbors,omitempty"`
	Paths      [][]string               `json:"paths,omitempty"`
	Components [][]string               `json:"components,omitempty"`
	Centrality []*graph.CentralityScore `json:"centrality,omitempty"`
	Stats      *graph.Stats             `json:"stats,omitempty"`
	Mermaid    string                   `json:"mermaid,omitempty"`
}

// BuildGraph rebuilds the knowledge graph snapshot as of the given instant
// (nil means now) and returns the node count.
func (e *Engine) BuildGraph(ctx context.Context, asOf *time.Time) (int, error) {
	at := time.Now().UTC()
	if asOf != nil {
		at = *asOf
	}
	return e.graph.Build(ctx, at)
}

// QueryGraph dispatches a graph operation against the current snapshot,
// building one first when none exists yet.
func (e *Engine) QueryGraph(ctx context.Context, q GraphQuery) (*GraphQueryResult, error) {
	if e.graph.Stats().Nodes == 0 {
		if _, err := e.graph.Build(ctx, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	depth := q.Depth
	if depth <= 0 {
		depth = 2
	}
	result := &GraphQueryResult{Operation: q.Operation}

	switch q.Operation {
	case GraphOpContext:
		ec, err := e.graph.GetEntityContext(q.EntityID, depth)
		if err != nil {
			return nil, err
		}
		result.Context = ec
	case GraphOpNeighbors:
		neighbors, err := e.graph.GetNeighbors(q.EntityID, depth, q.RelTypes)
		if err != nil {
			return nil, err
		}
		result.Neighbors = neighbors
	case GraphOpRelated:
		result.Neighbors = e.graph.FindRelatedEntities(q.EntityID, depth, types.EntityType(q.EntityType))
	case GraphOpPaths:
		result.Paths = e.graph.FindPaths(q.EntityID, q.TargetID, depth, q.Limit)
	case GraphOpShortestPath:
		if path := e.graph.FindShortestPath(q.EntityID, q.TargetID); path != nil {
			result.Paths = [][]string{path}
		}
	case GraphOpComponents:
		result.Components = e.graph.ConnectedComponents()
	case GraphOpCentrality:
		limit := q.Limit
		if limit <= 0 {
			limit = 10
		}
		result.Centrality = e.graph.CentralityScores(limit)
	case GraphOpStats:
		result.Stats = e.graph.Stats()
	case GraphOpVisualize:
		ids := q.EntityIDs
		if len(ids) == 0 && q.EntityID != "" {
			ids = []string{q.EntityID}
		}
		mermaid, err := e.graph.Mermaid(ids, q.Limit)
		if err != nil {
			return nil, err
		}
		result.Mermaid = mermaid
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, q.Operation)
	}
	return result, nil
}
