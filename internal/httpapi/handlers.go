package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tokencid/internal/lookup"
	"github.com/roach88/tokencid/internal/token"
)

// Lookup is the service the handlers call.
type Lookup interface {
	Get(ctx context.Context, identifier string) (token.Record, error)
	Batch(ctx context.Context, identifiers []string) (lookup.BatchResult, error)
}

type handlers struct {
	svc Lookup
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *handlers) getToken(c *gin.Context) {
	id := c.Param("identifier")
	rec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, lookup.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Identifier: id})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handlers) batch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "body must be {\"identifiers\": [string, ...]}"})
		return
	}
	if req.Identifiers == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "identifiers is required"})
		return
	}

	res, err := h.svc.Batch(c.Request.Context(), *req.Identifiers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// writeError maps service errors that are not "not found" to a status.
func writeError(c *gin.Context, err error) {
	var ve *lookup.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: ve.Error()})
	case errors.Is(err, lookup.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "timeout"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}
