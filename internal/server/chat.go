package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/docassist/docassist/internal/telemetry"
	"github.com/docassist/docassist/models"
)

// Chatter runs one conversational turn.
type Chatter interface {
	Chat(ctx context.Context, message, conversationID string, k int) (models.ChatResult, error)
}

type ChatHandler struct {
	Orchestrator Chatter
	Metrics      *telemetry.Metrics
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
		RetrievalK     int    `json:"retrieval_k"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	if req.RetrievalK <= 0 {
		req.RetrievalK = 4
	}

	started := time.Now()
	res, err := h.Orchestrator.Chat(c.Request().Context(), req.Message, req.ConversationID, req.RetrievalK)
	h.Metrics.RequestDuration.WithLabelValues("/api/chat").Observe(time.Since(started).Seconds())
	if err != nil {
		h.Metrics.ChatTotal.WithLabelValues("error").Inc()
		return httpError(err)
	}
	if res.Booking != nil {
		h.Metrics.BookingAttempts.WithLabelValues("ok").Inc()
	}
	h.Metrics.ChatTotal.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, res)
}
