// Package middleware adapts the prior codebase's AppContext pattern: one struct
// carrying every process-wide singleton, injected into each request instead
// of resolved per-handler.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/lexigraph/lexigraph/internal/config"
	"github.com/lexigraph/lexigraph/internal/db"
	"github.com/lexigraph/lexigraph/pkg/answer"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/ingest"
	"github.com/lexigraph/lexigraph/pkg/session"
)

// App holds the singletons wired at start-up, replacing the prior codebase's
// per-connection pgx pool, amqp channel, keyfunc, and S3 client with the
// graph store, relational store, and pipeline pair this domain needs.
type App struct {
	Store    *db.Store
	Graph    graphstore.Store
	Ingestor *ingest.Ingestor
	Answerer *answer.Answerer
	Barrier  *session.Barrier
	Config   config.Config
}

// AppContext is the request-scoped echo.Context carrying App. There is no
// AppUser field: this domain has no per-request role or permission model,
// only the optional JWT signature check in auth.go.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware injects app into every request as an *AppContext.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
