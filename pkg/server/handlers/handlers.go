// Package handlers implements the HTTP API over the engine.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contexto-ai/contexto"
	"github.com/contexto-ai/contexto/pkg/server/dto"
	"github.com/contexto-ai/contexto/pkg/types"
)

// notFoundErrs are rendered as 404 with an explicit payload rather than 500.
var notFoundErrs = []error{
	types.ErrEntityNotFound,
	types.ErrRelationshipNotFound,
	types.ErrConversationNotFound,
	types.ErrMessageNotFound,
}

// badRequestErrs are caller mistakes caught after binding.
var badRequestErrs = []error{
	types.ErrEmptyQuery,
	types.ErrInvalidMode,
	types.ErrInvalidLimit,
	types.ErrInvalidTimeRange,
	types.ErrSameSourceAndTarget,
	types.ErrEmptyID,
	types.ErrEmptyRelationship,
	contexto.ErrUnknownOperation,
}

// respondError maps engine errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	for _, sentinel := range notFoundErrs {
		if errors.Is(err, sentinel) {
			c.JSON(http.StatusNotFound, dto.Fail(err.Error()))
			return
		}
	}
	for _, sentinel := range badRequestErrs {
		if errors.Is(err, sentinel) {
			c.JSON(http.StatusBadRequest, dto.Fail(err.Error()))
			return
		}
	}
	c.JSON(http.StatusInternalServerError, dto.Fail(err.Error()))
}
