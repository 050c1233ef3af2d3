package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/ailibrary/chat"
	"github.com/kbukum/ailibrary/config"
	"github.com/kbukum/ailibrary/errors"
	"github.com/kbukum/ailibrary/logger"
	"github.com/kbukum/ailibrary/store"
)

// Handlers bundles the route handlers and their dependencies.
type Handlers struct {
	app          config.AppConfig
	storeBackend string
	orchestrator *chat.Orchestrator
	store        store.Store
	log          *logger.Logger
}

// NewHandlers wires the route handlers.
func NewHandlers(app config.AppConfig, backend string, orch *chat.Orchestrator, st store.Store) *Handlers {
	return &Handlers{
		app:          app,
		storeBackend: backend,
		orchestrator: orch,
		store:        st,
		log:          logger.WithComponent("server.handlers"),
	}
}

// Register mounts all routes on the engine.
func (h *Handlers) Register(engine *gin.Engine) {
	engine.GET("/", h.root)
	engine.GET("/health", h.health)

	api := engine.Group("/api")
	api.POST("/chat/stream", h.streamChat)
	api.GET("/conversations/:id", h.getConversation)
	api.DELETE("/conversations/:id", h.deleteConversation)
}

// root returns service metadata.
func (h *Handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        h.app.Name,
		"version":     h.app.Version,
		"description": "Streaming chat service backed by Groq models",
		"endpoints": gin.H{
			"chat":          "POST /api/chat/stream",
			"conversation":  "GET /api/conversations/:id",
			"delete":        "DELETE /api/conversations/:id",
			"health":        "GET /health",
		},
	})
}

// health reports service liveness. It never fails: a degraded store is
// reported, not propagated.
func (h *Handlers) health(c *gin.Context) {
	status := "healthy"
	count, err := h.store.Count(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Warn("Health check could not count conversations")
		status = "degraded"
		count = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"service":            h.app.Name,
		"version":            h.app.Version,
		"store":              h.storeBackend,
		"conversation_count": count,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

// streamChat runs one chat turn over SSE.
//
// Failures before the first stream byte are plain JSON errors with real
// status codes; once streaming begins, failures arrive in-stream.
func (h *Handlers) streamChat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.Validation("Request body is not valid JSON").WithCause(err)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Validation(err.Error())
		}
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	transport, err := newStreamTransport(c.Writer)
	if err != nil {
		appErr := errors.Internal(err)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	if err := h.orchestrator.Run(c.Request.Context(), req, transport); err != nil {
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Internal(err)
		}
		h.log.WithError(err).Error("Chat stream failed before start", map[string]any{
			"model": string(req.Model),
		})
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
	}
}

// getConversation returns a conversation transcript.
func (h *Handlers) getConversation(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	exists, err := h.store.Exists(ctx, id)
	if err != nil {
		appErr := errors.Storage("exists", err)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	if !exists {
		appErr := errors.NotFound("conversation", id)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	messages, err := h.store.History(ctx, id, 0)
	if err != nil {
		appErr := errors.Storage("history", err)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"messages":        messages,
		"message_count":   len(messages),
	})
}

// deleteConversation removes a conversation.
func (h *Handlers) deleteConversation(c *gin.Context) {
	id := c.Param("id")

	removed, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		appErr := errors.Storage("delete", err)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	if !removed {
		appErr := errors.NotFound("conversation", id)
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Conversation deleted successfully",
		"conversation_id": id,
	})
}
