package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contexto-ai/contexto"
	"github.com/contexto-ai/contexto/pkg/server/dto"
	"github.com/contexto-ai/contexto/pkg/types"
)

// IngestService is the write surface the ingest handler needs.
type IngestService interface {
	SaveConversation(ctx context.Context, conv *types.Conversation, messages []*types.Message) (int, error)
	ExtractEntities(ctx context.Context, conversationID string, messageID *int64, text string) ([]*types.Entity, error)
	CreateRelationship(ctx context.Context, sourceID, targetID, relType string, confidence float64, properties map[string]any) (*types.Relationship, error)
	GetEntityHistory(ctx context.Context, entityID string) ([]*types.Entity, error)
	InvalidateEntity(ctx context.Context, entityID string) error
	Stats(ctx context.Context) (*contexto.EngineStats, error)
}

// IngestHandler handles persistence requests.
type IngestHandler struct {
	service IngestService
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(service IngestService) *IngestHandler {
	return &IngestHandler{service: service}
}

// SaveConversation handles POST /api/v1/conversations.
func (h *IngestHandler) SaveConversation(c *gin.Context) {
	var req dto.SaveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}

	conv := &types.Conversation{
		ID:          req.ConversationID,
		StartedAt:   time.Now().UTC(),
		ProjectPath: req.ProjectPath,
		Mode:        req.Mode,
		Metadata:    req.Metadata,
	}
	messages := make([]*types.Message, len(req.Messages))
	for i, m := range req.Messages {
		ts := time.Now().UTC()
		if m.Timestamp != nil {
			ts = *m.Timestamp
		}
		messages[i] = &types.Message{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: ts,
			Tokens:    m.Tokens,
		}
	}

	saved, err := h.service.SaveConversation(c.Request.Context(), conv, messages)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"conversation_id": conv.ID, "messages_saved": saved}))
}

// ExtractEntities handles POST /api/v1/entities/extract.
func (h *IngestHandler) ExtractEntities(c *gin.Context) {
	var req dto.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}

	entities, err := h.service.ExtractEntities(c.Request.Context(), req.ConversationID, req.MessageID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"entities": entities, "count": len(entities)}))
}

// CreateRelationship handles POST /api/v1/relationships.
func (h *IngestHandler) CreateRelationship(c *gin.Context) {
	var req dto.RelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 1.0
	}

	rel, err := h.service.CreateRelationship(c.Request.Context(),
		req.SourceID, req.TargetID, req.Type, req.Confidence, req.Properties)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(rel))
}

// EntityHistory handles GET /api/v1/entities/:id/history.
func (h *IngestHandler) EntityHistory(c *gin.Context) {
	history, err := h.service.GetEntityHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"versions": history, "count": len(history)}))
}

// InvalidateEntity handles DELETE /api/v1/entities/:id.
func (h *IngestHandler) InvalidateEntity(c *gin.Context) {
	if err := h.service.InvalidateEntity(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"invalidated": c.Param("id")}))
}

// Stats handles GET /api/v1/stats.
func (h *IngestHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(stats))
}
