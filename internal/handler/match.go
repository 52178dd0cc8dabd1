package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"honeymatch/internal/model"
	"honeymatch/internal/service"

	"github.com/gin-gonic/gin"
)

// MatchHandler handles itinerary matching HTTP requests
type MatchHandler struct {
	matchService *service.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// Match handles POST /api/v1/match
func (h *MatchHandler) Match(c *gin.Context) {
	answers, ok := bindAnswers(c)
	if !ok {
		return
	}

	previews, err := h.matchService.Match(c.Request.Context(), answers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, previews)
}

// MatchStream handles POST /api/v1/match/stream - SSE streaming match
func (h *MatchHandler) MatchStream(c *gin.Context) {
	answers, ok := bindAnswers(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "Streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendSSE(c, "start", map[string]any{"trace_id": c.GetString(traceIDKey)})
	flusher.Flush()

	_, err := h.matchService.MatchStream(c.Request.Context(), answers, func(event string, data any) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		sendSSE(c, "error", model.ErrorResponse{Message: err.Error()})
		flusher.Flush()
		return
	}

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// bindAnswers decodes the questionnaire. An empty body is an empty
// questionnaire; anything undecodable is a 400.
func bindAnswers(c *gin.Context) (model.QuestionnaireAnswers, bool) {
	var answers model.QuestionnaireAnswers
	if err := c.ShouldBindJSON(&answers); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, &service.EncodingError{Err: err})
		return answers, false
	}
	return answers, true
}

// respondError maps service errors to a status code and a message body
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var encodingErr *service.EncodingError
	if errors.As(err, &encodingErr) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Invalid questionnaire: " + encodingErr.Err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: err.Error()})
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data == nil {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
		return
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\": \"JSON marshal failed\"}\n\n")
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, jsonData)
}
