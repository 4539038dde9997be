package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lexigraph/lexigraph/internal/apperr"
	"github.com/lexigraph/lexigraph/pkg/logger"
)

// errorResponse is the body every non-2xx handler response shares.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an apperr.Kind to the HTTP status it should produce.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.SessionGone:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.UpstreamUnavailable, apperr.EmbeddingUnavailable, apperr.ExtractionMalformed, apperr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondErr logs the underlying cause (never shown to the caller) and
// returns a user-safe {error} body at the status matching err's Kind: 500
// responses never leak internal detail.
func respondErr(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.Error("httpapi: request failed", "kind", kind, "err", err)
		return c.JSON(status, errorResponse{Error: "internal error"})
	}

	message := string(kind)
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return c.JSON(status, errorResponse{Error: message})
}
