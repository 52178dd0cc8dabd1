package handler

import (
	"net/http"

	"honeymatch/internal/model"
	"honeymatch/internal/service"

	"github.com/gin-gonic/gin"
)

// EmbeddingHandler handles itinerary embedding ingestion
type EmbeddingHandler struct {
	matchService *service.MatchService
}

// NewEmbeddingHandler creates a new embedding handler
func NewEmbeddingHandler(matchService *service.MatchService) *EmbeddingHandler {
	return &EmbeddingHandler{matchService: matchService}
}

// BatchUpdate handles POST /api/v1/itineraries/embeddings
func (h *EmbeddingHandler) BatchUpdate(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Invalid request: " + err.Error()})
		return
	}

	if len(req.Embeddings) == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "No embeddings provided"})
		return
	}

	// items with the wrong dimension come back in errors
	success, errs := h.matchService.UpdateEmbeddings(c.Request.Context(), req.Embeddings)

	response := model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(req.Embeddings) - success,
		Errors:  errs,
	}

	switch {
	case success == 0:
		c.JSON(http.StatusUnprocessableEntity, response)
	case len(errs) > 0:
		c.JSON(http.StatusPartialContent, response)
	default:
		c.JSON(http.StatusOK, response)
	}
}
