package store

import (
	"context"
	"time"

	"github.com/contexto-ai/contexto/pkg/types"
)

// TemporalStore is the persistence boundary for entities, relationships,
// mentions, and conversation history, with bi-temporal filtering. The
// knowledge graph and the search orchestrator consume this interface; they
// never touch the database directly.
type TemporalStore interface {
	EntityReader
	EntityWriter
	RelationshipStore
	MentionStore
	ConversationStore
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// EntityReader provides read access to entity versions.
type EntityReader interface {
	// GetEntities returns all entity versions valid at the given instant,
	// optionally restricted to one entity type.
	GetEntities(ctx context.Context, validAt time.Time, entityType types.EntityType) ([]*types.Entity, error)

	// GetEntity returns the most recent version of an entity, or
	// types.ErrEntityNotFound.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// GetEntityHistory returns every version of an entity ordered by
	// valid_from ascending, or types.ErrEntityNotFound when none exist.
	GetEntityHistory(ctx context.Context, id string) ([]*types.Entity, error)

	// FindEntitiesByText matches the substring case-insensitively against
	// entity names and descriptions.
	FindEntitiesByText(ctx context.Context, substring string, entityType types.EntityType, limit int) ([]*types.Entity, error)

	// GetEntitiesInRange returns entities whose event_time falls in
	// [start, end], optionally restricted by type.
	GetEntitiesInRange(ctx context.Context, start, end time.Time, entityTypes []types.EntityType) ([]*types.Entity, error)
}

// EntityWriter provides append-only entity persistence.
type EntityWriter interface {
	// UpsertEntities inserts new entity version rows. An earlier open
	// version of the same entity is closed at the new version's valid_from,
	// so at most one version is valid at any instant. Versions are otherwise
	// append-only.
	UpsertEntities(ctx context.Context, entities []*types.Entity) error

	// InvalidateEntity closes the open validity interval of an entity as of
	// the given instant. Returns types.ErrEntityNotFound when no open
	// version exists.
	InvalidateEntity(ctx context.Context, id string, asOf time.Time) error
}

// RelationshipStore provides relationship persistence and temporal reads.
type RelationshipStore interface {
	// GetRelationships returns all relationship versions valid at the
	// given instant.
	GetRelationships(ctx context.Context, validAt time.Time) ([]*types.Relationship, error)

	// InsertRelationship persists a new relationship version row.
	InsertRelationship(ctx context.Context, rel *types.Relationship) error
}

// MentionStore persists positional entity mentions.
type MentionStore interface {
	InsertMentions(ctx context.Context, mentions []*types.EntityMention) error

	// GetMentions returns mentions of an entity ordered by message then
	// position.
	GetMentions(ctx context.Context, entityID string, limit int) ([]*types.EntityMention, error)
}

// ConversationStore persists conversations and messages and serves the
// keyword strategy's text scans.
type ConversationStore interface {
	// SaveConversation creates the conversation row when absent and appends
	// the messages, returning the assigned message ids in input order.
	SaveConversation(ctx context.Context, conv *types.Conversation, messages []*types.Message) ([]int64, error)

	// GetConversation returns a conversation or types.ErrConversationNotFound.
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)

	// GetMessages returns a conversation's messages ordered by timestamp.
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*types.Message, error)

	// FindMessagesByText matches the substring case-insensitively against
	// message content, optionally within one conversation.
	FindMessagesByText(ctx context.Context, substring string, conversationID string, limit int) ([]*types.Message, error)

	// GetMessagesInRange returns messages whose timestamp falls in
	// [start, end].
	GetMessagesInRange(ctx context.Context, start, end time.Time, limit int) ([]*types.Message, error)
}

// StoreStats summarizes stored row counts.
type StoreStats struct {
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
	Entities      int64 `json:"entities"`
	Relationships int64 `json:"relationships"`
	Mentions      int64 `json:"mentions"`
	TotalTokens   int64 `json:"total_tokens"`
}
