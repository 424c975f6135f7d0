package search

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/contexto-ai/contexto/pkg/graph"
	"github.com/contexto-ai/contexto/pkg/types"
)

// previewLength caps content previews in time-range results.
const previewLength = 200

// EntityResult is the answer to an entity-centric search: the graph context
// around the entity plus messages from the conversation it was extracted
// from.
type EntityResult struct {
	Context  *graph.EntityContext `json:"context"`
	Messages []*types.Message     `json:"messages,omitempty"`
}

// SearchByEntity looks up an entity in the knowledge graph and returns its
// local context with conversation messages when provenance is known. Returns
// types.ErrEntityNotFound when the entity is not in the graph.
func (s *HybridSearcher) SearchByEntity(ctx context.Context, entityID string, depth, limit int) (*EntityResult, error) {
	if s.graph.Stats().Nodes == 0 {
		if _, err := s.graph.Build(ctx, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("graph build failed: %w", err)
		}
	}

	ec, err := s.graph.GetEntityContext(entityID, depth)
	if err != nil {
		return nil, err
	}

	result := &EntityResult{Context: ec}
	if ec.Entity.ConversationID != "" {
		messages, err := s.store.GetMessages(ctx, ec.Entity.ConversationID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to load entity conversation: %w", err)
		}
		result.Messages = messages
	}
	return result, nil
}

// SearchByTimeRange returns messages and entities whose event time falls in
// [start, end]. Each category is capped at limit independently; message
// content is cut to a preview.
func (s *HybridSearcher) SearchByTimeRange(ctx context.Context, tr types.TimeRange, entityTypes []types.EntityType, limit int) ([]*types.SearchResult, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	messages, err := s.store.GetMessagesInRange(ctx, tr.Start, tr.End, limit)
	if err != nil {
		return nil, fmt.Errorf("time range message scan failed: %w", err)
	}

	var results []*types.SearchResult
	for _, m := range messages {
		results = append(results, &types.SearchResult{
			ItemID:   fmt.Sprintf("%d", m.ID),
			ItemType: types.ItemTypeMessage,
			Content:  preview(m.Content),
			Score:    1.0,
			Source:   types.SourceKeyword,
			Metadata: map[string]any{
				"conversation_id": m.ConversationID,
				"role":            m.Role,
				"timestamp":       m.Timestamp,
			},
		})
	}

	entities, err := s.store.GetEntitiesInRange(ctx, tr.Start, tr.End, entityTypes)
	if err != nil {
		return nil, fmt.Errorf("time range entity scan failed: %w", err)
	}
	if len(entities) > limit {
		entities = entities[:limit]
	}
	for _, e := range entities {
		results = append(results, &types.SearchResult{
			ItemID:   e.ID,
			ItemType: types.ItemTypeEntity,
			Content:  entityContent(e.Name, e.Description),
			Score:    e.Confidence,
			Source:   types.SourceKeyword,
			Metadata: map[string]any{
				"entity_type": string(e.Type),
				"event_time":  e.EventTime,
			},
		})
	}
	return results, nil
}

// preview truncates long content with a marker, backing up to a rune boundary
// so the cut never splits a multi-byte character.
func preview(content string) string {
	if len(content) <= previewLength {
		return content
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
