// Package httpapi implements the sessions, ingest, chat, and health HTTP
// surface. Handlers read internal/server/middleware.AppContext for their
// singletons, following the prior codebase's routes package shape but
// against this domain's endpoint table instead of the prior codebase's
// project/group CRUD.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/lexigraph/lexigraph/internal/apperr"
	"github.com/lexigraph/lexigraph/internal/server/middleware"
	"github.com/lexigraph/lexigraph/pkg/session"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

// CreateSession handles POST /sessions.
func CreateSession(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return respondErr(c, apperr.New(apperr.InvalidInput, "malformed request body", err))
	}

	id, err := gonanoid.New()
	if err != nil {
		return respondErr(c, apperr.New(apperr.Internal, "generate session id", err))
	}

	now := time.Now().UTC()
	sess := session.Session{ID: id, Name: body.Name, CreatedAt: now, UpdatedAt: now}

	app := c.(*middleware.AppContext).App
	if err := app.Store.CreateSession(c.Request().Context(), sess); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// ListSessions handles GET /sessions.
func ListSessions(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	sessions, err := app.Store.ListSessions(c.Request().Context())
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	return c.JSON(http.StatusOK, out)
}

// GetSession handles GET /sessions/{id}.
func GetSession(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	sess, err := app.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// UpdateSession handles PUT /sessions/{id}.
func UpdateSession(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return respondErr(c, apperr.New(apperr.InvalidInput, "malformed request body", err))
	}

	app := c.(*middleware.AppContext).App
	sess, err := app.Store.RenameSession(c.Request().Context(), c.Param("id"), body.Name)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// DeleteSession handles DELETE /sessions/{id}: bars the session before
// cascading through the relational and graph stores, so any Ingest/Answer
// already in flight for id is cancelled and aborts with session.ErrSessionGone,
// and any new admission attempt for id fails the same way instead of racing
// the cascade.
func DeleteSession(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	id := c.Param("id")

	app.Barrier.Bar(id)

	if err := app.Store.DeleteSession(ctx, id); err != nil {
		return respondErr(c, err)
	}
	if err := app.Graph.DeleteSession(ctx, id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
