package contexto

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contexto-ai/contexto/pkg/extract"
	"github.com/contexto-ai/contexto/pkg/graph"
	"github.com/contexto-ai/contexto/pkg/store"
	"github.com/contexto-ai/contexto/pkg/types"
	"github.com/contexto-ai/contexto/pkg/vector"
)

// SaveConversation persists a conversation's messages and indexes each one in
// the vector store. A missing conversation id is generated. Embedding or
// vector failures are logged and skipped so persistence never depends on the
// semantic upstream. Returns the number of saved messages.
func (e *Engine) SaveConversation(ctx context.Context, conv *types.Conversation, messages []*types.Message) (int, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}

	ids, err := e.store.SaveConversation(ctx, conv, messages)
	if err != nil {
		return 0, fmt.Errorf("failed to save conversation: %w", err)
	}

	e.indexMessages(ctx, conv.ID, messages, ids)
	return len(ids), nil
}

// indexMessages embeds message contents and upserts them as vector points.
// Best effort: semantic search degrades gracefully without these points.
func (e *Engine) indexMessages(ctx context.Context, conversationID string, messages []*types.Message, ids []int64) {
	if e.embedder == nil || e.vectors == nil || len(messages) == 0 {
		return
	}

	texts := make([]string, len(messages))
	for i, m := range messages {
		texts[i] = m.Content
	}
	embeddings, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		e.logger.Warn("message indexing skipped",
			"stage", "embed", "error_class", vector.ErrorClass(err), "error", err)
		return
	}

	points := make([]*vector.Point, len(messages))
	for i, m := range messages {
		points[i] = &vector.Point{
			ID:     strconv.FormatInt(ids[i], 10),
			Vector: embeddings[i],
			Payload: vector.Payload{
				Content:        m.Content,
				ConversationID: conversationID,
				Role:           m.Role,
				Timestamp:      m.Timestamp,
			},
		}
	}
	if err := e.vectors.Upsert(ctx, points); err != nil {
		e.logger.Warn("message indexing skipped",
			"stage", "upsert", "error_class", vector.ErrorClass(err), "error", err)
	}
}

// ExtractEntities runs entity extraction over text, persists the candidates
// as new entity versions (reusing the id of an existing entity with the same
// name and type, whose open version is closed), records mentions when message
// provenance is known, and rebuilds the graph.
func (e *Engine) ExtractEntities(ctx context.Context, conversationID string, messageID *int64, text string) ([]*types.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyQuery
	}

	candidates := e.extractor.Extract(text)
	if len(candidates) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	entities := make([]*types.Entity, 0, len(candidates))
	var mentions []*types.EntityMention

	for _, c := range candidates {
		id, err := e.resolveEntityID(ctx, c.Name, c.Type)
		if err != nil {
			return nil, err
		}
		entity := &types.Entity{
			ID:             id,
			Name:           c.Name,
			Type:           c.Type,
			Confidence:     c.Confidence,
			EventTime:      now,
			IngestionTime:  now,
			ValidFrom:      now,
			ConversationID: conversationID,
			MessageID:      messageID,
		}
		entities = append(entities, entity)

		if conversationID != "" && messageID != nil {
			for _, m := range extract.FindMentions(text, c.Name) {
				mentions = append(mentions, &types.EntityMention{
					EntityID:       id,
					ConversationID: conversationID,
					MessageID:      *messageID,
					MentionText:    c.Name,
					ContextSnippet: m.Snippet,
					Position:       m.Position,
					Timestamp:      now,
					Confidence:     c.Confidence,
				})
			}
		}
	}

	if err := e.store.UpsertEntities(ctx, entities); err != nil {
		return nil, fmt.Errorf("failed to persist entities: %w", err)
	}
	if len(mentions) > 0 {
		if err := e.store.InsertMentions(ctx, mentions); err != nil {
			return nil, fmt.Errorf("failed to persist mentions: %w", err)
		}
	}
	if _, err := e.graph.Build(ctx, now); err != nil {
		return nil, err
	}
	return entities, nil
}

// resolveEntityID reuses the logical id of an entity already known under the
// same name and type, so repeated extraction appends versions instead of
// forking identities.
func (e *Engine) resolveEntityID(ctx context.Context, name string, et types.EntityType) (string, error) {
	existing, err := e.store.FindEntitiesByText(ctx, name, et, 10)
	if err != nil {
		return "", fmt.Errorf("failed to look up existing entity: %w", err)
	}
	for _, ex := range existing {
		if strings.EqualFold(ex.Name, name) {
			return ex.ID, nil
		}
	}
	return uuid.NewString(), nil
}

// CreateRelationship validates both endpoints exist and persists a new
// relationship version. The graph snapshot is not rebuilt automatically.
func (e *Engine) CreateRelationship(ctx context.Context, sourceID, targetID, relType string, confidence float64, properties map[string]any) (*types.Relationship, error) {
	if sourceID == targetID {
		return nil, types.ErrSameSourceAndTarget
	}
	if _, err := e.store.GetEntity(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("source entity %s: %w", sourceID, err)
	}
	if _, err := e.store.GetEntity(ctx, targetID); err != nil {
		return nil, fmt.Errorf("target entity %s: %w", targetID, err)
	}

	now := time.Now().UTC()
	rel := &types.Relationship{
		ID:            uuid.NewString(),
		SourceID:      sourceID,
		TargetID:      targetID,
		Type:          relType,
		Confidence:    confidence,
		Properties:    properties,
		EventTime:     now,
		IngestionTime: now,
		ValidFrom:     now,
	}
	if err := e.store.InsertRelationship(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// GetEntityHistory returns every temporal version of an entity, oldest first.
func (e *Engine) GetEntityHistory(ctx context.Context, entityID string) ([]*types.Entity, error) {
	return e.store.GetEntityHistory(ctx, entityID)
}

// InvalidateEntity closes the entity's open validity interval as of now.
func (e *Engine) InvalidateEntity(ctx context.Context, entityID string) error {
	return e.store.InvalidateEntity(ctx, entityID, time.Now().UTC())
}

// EngineStats pairs store row counts with graph snapshot metrics.
type EngineStats struct {
	Store *store.StoreStats `json:"store"`
	Graph *graph.Stats      `json:"graph"`
}

// Stats reports storage and graph statistics.
func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	storeStats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &EngineStats{Store: storeStats, Graph: e.graph.Stats()}, nil
}
