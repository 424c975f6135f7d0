package contexto

import (
	"context"
	"time"

	"github.com/contexto-ai/contexto/pkg/search"
	"github.com/contexto-ai/contexto/pkg/types"
)

// Searcher answers retrieval requests.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) ([]*types.SearchResult, error)
	SearchByEntity(ctx context.Context, entityID string, depth, limit int) (*search.EntityResult, error)
	SearchByTimeRange(ctx context.Context, tr types.TimeRange, entityTypes []types.EntityType, limit int) ([]*types.SearchResult, error)
}

// GraphQuerier rebuilds and queries the knowledge graph.
type GraphQuerier interface {
	BuildGraph(ctx context.Context, asOf *time.Time) (int, error)
	QueryGraph(ctx context.Context, q GraphQuery) (*GraphQueryResult, error)
}

// EntityManager manages the entity and relationship lifecycle.
type EntityManager interface {
	ExtractEntities(ctx context.Context, conversationID string, messageID *int64, text string) ([]*types.Entity, error)
	CreateRelationship(ctx context.Context, sourceID, targetID, relType string, confidence float64, properties map[string]any) (*types.Relationship, error)
	GetEntityHistory(ctx context.Context, entityID string) ([]*types.Entity, error)
	InvalidateEntity(ctx context.Context, entityID string) error
}

// ConversationManager persists conversation history.
type ConversationManager interface {
	SaveConversation(ctx context.Context, conv *types.Conversation, messages []*types.Message) (int, error)
}

// The Engine provides every capability.
var _ interface {
	Searcher
	GraphQuerier
	EntityManager
	ConversationManager
} = (*Engine)(nil)
