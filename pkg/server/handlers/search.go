package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/contexto-ai/contexto/pkg/search"
	"github.com/contexto-ai/contexto/pkg/server/dto"
	"github.com/contexto-ai/contexto/pkg/types"
)

// SearchService is the retrieval surface the search handler needs.
type SearchService interface {
	Search(ctx context.Context, req types.SearchRequest) ([]*types.SearchResult, error)
	SearchByEntity(ctx context.Context, entityID string, depth, limit int) (*search.EntityResult, error)
	SearchByTimeRange(ctx context.Context, tr types.TimeRange, entityTypes []types.EntityType, limit int) ([]*types.SearchResult, error)
}

// SearchHandler handles retrieval requests.
type SearchHandler struct {
	service SearchService
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(service SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search handles POST /api/v1/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}

	results, err := h.service.Search(c.Request.Context(), req.ToTypes())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"results": results, "count": len(results)}))
}

// SearchByEntity handles GET /api/v1/search/entity/:id.
func (h *SearchHandler) SearchByEntity(c *gin.Context) {
	depth := intQuery(c, "depth", 2)
	limit := intQuery(c, "limit", 10)

	result, err := h.service.SearchByEntity(c.Request.Context(), c.Param("id"), depth, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(result))
}

// SearchByTimeRange handles POST /api/v1/search/time-range.
func (h *SearchHandler) SearchByTimeRange(c *gin.Context) {
	var req dto.TimeRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}

	entityTypes := make([]types.EntityType, 0, len(req.EntityTypes))
	for _, et := range req.EntityTypes {
		entityTypes = append(entityTypes, types.EntityType(et))
	}

	results, err := h.service.SearchByTimeRange(c.Request.Context(),
		types.TimeRange{Start: req.Start, End: req.End}, entityTypes, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"results": results, "count": len(results)}))
}

// intQuery parses an integer query parameter with a default.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
