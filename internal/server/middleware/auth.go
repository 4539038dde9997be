package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/lexigraph/lexigraph/pkg/logger"
)

// jwksCache lazily builds one keyfunc.Keyfunc per AuthURL and reuses it
// across requests; the prior codebase builds this once at server startup, but here
// auth is optional (many deployments run with no AUTH_URL at all), so the
// keyset is fetched only once the first authenticated request actually
// arrives.
var jwksCache sync.Map // map[string]keyfunc.Keyfunc

// AuthMiddleware is a no-op when App.Config.AuthURL is empty: requests pass
// through unauthenticated. Otherwise it requires a Bearer token whose
// signature verifies against that issuer's JWKS; this domain has no roles
// or permissions to extract from claims, so a valid signature is the whole
// check.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		app := c.(*AppContext).App
		if app.Config.AuthURL == "" {
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		k, err := jwksFor(app.Config.AuthURL)
		if err != nil {
			logger.Error("auth: failed to load jwks", "err", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		return next(c)
	}
}

func jwksFor(authURL string) (keyfunc.Keyfunc, error) {
	if cached, ok := jwksCache.Load(authURL); ok {
		return cached.(keyfunc.Keyfunc), nil
	}
	k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
	if err != nil {
		return nil, err
	}
	jwksCache.Store(authURL, k)
	return k, nil
}
