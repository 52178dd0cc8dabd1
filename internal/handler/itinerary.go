package handler

import (
	"net/http"
	"strings"

	"honeymatch/internal/model"
	"honeymatch/internal/service"

	"github.com/gin-gonic/gin"
)

// ItineraryHandler serves single itinerary records
type ItineraryHandler struct {
	matchService *service.MatchService
}

// NewItineraryHandler creates a new itinerary handler
func NewItineraryHandler(matchService *service.MatchService) *ItineraryHandler {
	return &ItineraryHandler{matchService: matchService}
}

// GetItinerary handles GET /api/v1/itineraries/:id
func (h *ItineraryHandler) GetItinerary(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Invalid itinerary ID"})
		return
	}

	it, err := h.matchService.GetItinerary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if it == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Message: "Itinerary not found"})
		return
	}

	c.JSON(http.StatusOK, it)
}
