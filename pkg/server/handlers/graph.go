package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contexto-ai/contexto"
	"github.com/contexto-ai/contexto/pkg/server/dto"
)

// GraphService is the graph surface the graph handler needs.
type GraphService interface {
	BuildGraph(ctx context.Context, asOf *time.Time) (int, error)
	QueryGraph(ctx context.Context, q contexto.GraphQuery) (*contexto.GraphQueryResult, error)
}

// GraphHandler handles knowledge graph requests.
type GraphHandler struct {
	service GraphService
}

// NewGraphHandler creates a graph handler.
func NewGraphHandler(service GraphService) *GraphHandler {
	return &GraphHandler{service: service}
}

// Build handles POST /api/v1/graph/build.
func (h *GraphHandler) Build(c *gin.Context) {
	var req dto.GraphBuildRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
			return
		}
	}

	nodes, err := h.service.BuildGraph(c.Request.Context(), req.AsOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"nodes": nodes}))
}

// Query handles POST /api/v1/graph/query.
func (h *GraphHandler) Query(c *gin.Context) {
	var q contexto.GraphQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
		return
	}

	result, err := h.service.QueryGraph(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(result))
}
