package contexto

import (
	"context"

	"github.com/contexto-ai/contexto/pkg/search"
	"github.com/contexto-ai/contexto/pkg/types"
)

// Search runs a search request through the hybrid orchestrator.
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) ([]*types.SearchResult, error) {
	return e.searcher.Search(ctx, req)
}

// SearchByEntity returns the graph context of an entity plus the messages of
// the conversation it was extracted from.
func (e *Engine) SearchByEntity(ctx context.Context, entityID string, depth, limit int) (*search.EntityResult, error) {
	return e.searcher.SearchByEntity(ctx, entityID, depth, limit)
}

// SearchByTimeRange returns message previews and entities inside [start, end].
func (e *Engine) SearchByTimeRange(ctx context.Context, tr types.TimeRange, entityTypes []types.EntityType, limit int) ([]*types.SearchResult, error) {
	return e.searcher.SearchByTimeRange(ctx, tr, entityTypes, limit)
}
