package server

import (
	"github.com/labstack/echo/v4"

	"github.com/lexigraph/lexigraph/internal/server/httpapi"
	"github.com/lexigraph/lexigraph/internal/server/middleware"
)

// RegisterRoutes wires the sessions, ingest, chat, and health HTTP surface.
// Health is unauthenticated; everything else runs behind AuthMiddleware,
// which is a no-op unless AUTH_URL is configured.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", httpapi.Health)

	api := e.Group("", middleware.AuthMiddleware)

	api.POST("/sessions", httpapi.CreateSession)
	api.GET("/sessions", httpapi.ListSessions)
	api.GET("/sessions/:id", httpapi.GetSession)
	api.PUT("/sessions/:id", httpapi.UpdateSession)
	api.DELETE("/sessions/:id", httpapi.DeleteSession)

	api.POST("/ingest", httpapi.Ingest)

	api.POST("/chat", httpapi.Chat)
	api.POST("/chat/non-streaming", httpapi.ChatNonStreaming)
	api.GET("/chat/history/:session_id", httpapi.ChatHistory)
}
