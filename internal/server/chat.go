package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clarencelabs/kingfisher/internal/pipeline"
	"github.com/clarencelabs/kingfisher/internal/telemetry"
)

// Answerer is the pipeline surface the chat endpoints need.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (pipeline.Response, error)
	Stream(ctx context.Context, prompt string) <-chan pipeline.Event
}

// Upstream is pinged by the readiness probe.
type Upstream interface {
	Ping(ctx context.Context) error
}

type ChatHandler struct {
	App      string
	Pipeline Answerer
	Upstream Upstream

	logger *log.Logger
}

func (h *ChatHandler) Register(e *echo.Echo) {
	h.logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	e.GET("/health", h.health)
	e.GET("/ready", h.ready)
	api := e.Group("/api")
	api.POST("/chat", h.chat)
	api.GET("/chat/stream", h.chatStream)
}

type ChatRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) health(c echo.Context) error {
	telemetry.ObserveRequest("health", "200", 0)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "app": h.App})
}

func (h *ChatHandler) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.Upstream.Ping(ctx); err != nil {
		telemetry.ObserveRequest("ready", "503", 0)
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("upstream unhealthy: %v", err))
	}
	telemetry.ObserveRequest("ready", "200", 0)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "upstream": "healthy"})
}

func (h *ChatHandler) chat(c echo.Context) error {
	t0 := time.Now()
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		telemetry.ObserveRequest("chat", "400", time.Since(t0))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		telemetry.ObserveRequest("chat", "400", time.Since(t0))
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	reqID := uuid.NewString()
	h.logger.Printf("[%s] chat: %q", reqID, req.Message)

	resp, err := h.Pipeline.Answer(c.Request().Context(), req.Message)
	if err != nil {
		telemetry.ObserveRequest("chat", "500", time.Since(t0))
		h.logger.Printf("[%s] chat failed: %v", reqID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	telemetry.ObserveRequest("chat", "200", time.Since(t0))
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) chatStream(c echo.Context) error {
	t0 := time.Now()
	message := strings.TrimSpace(c.QueryParam("message"))
	if message == "" {
		telemetry.ObserveRequest("chat_stream", "400", time.Since(t0))
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	reqID := uuid.NewString()
	h.logger.Printf("[%s] stream: %q", reqID, message)

	for ev := range h.Pipeline.Stream(c.Request().Context(), message) {
		data, err := pipeline.MarshalEvent(ev)
		if err != nil {
			h.logger.Printf("[%s] encode %s event: %v", reqID, ev.Type(), err)
			continue
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			telemetry.ObserveRequest("chat_stream", "499", time.Since(t0))
			return nil
		}
		flusher.Flush()
	}
	telemetry.ObserveRequest("chat_stream", "200", time.Since(t0))
	return nil
}
