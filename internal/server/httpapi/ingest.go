package httpapi

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/lexigraph/lexigraph/internal/apperr"
	"github.com/lexigraph/lexigraph/internal/server/middleware"
	"github.com/lexigraph/lexigraph/pkg/ingest"
	"github.com/lexigraph/lexigraph/pkg/session"
)

type ingestResponse struct {
	Status               string `json:"status"`
	SessionID            string `json:"session_id"`
	FileName             string `json:"file_name"`
	SizeBytes            int64  `json:"size_bytes"`
	Chunks               int    `json:"chunks"`
	NodesCreated         int    `json:"nodes_created"`
	RelationshipsCreated int    `json:"relationships_created"`
	BatchID              string `json:"batch_id"`
}

// Ingest handles POST /ingest: a multipart upload of one PDF against an
// existing session. Duplicate (session_id, file_name, size_bytes) uploads
// are rejected with 409 before the pipeline runs, so a repeat upload never
// re-does extraction work.
func Ingest(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return respondErr(c, apperr.New(apperr.InvalidInput, "session_id is required", nil))
	}

	exists, err := app.Store.SessionExists(ctx, sessionID)
	if err != nil {
		return respondErr(c, err)
	}
	if !exists {
		return respondErr(c, apperr.New(apperr.SessionGone, "session not found", nil))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondErr(c, apperr.New(apperr.InvalidInput, "file is required", err))
	}
	if fileHeader.Size > app.Config.MaxUploadBytes {
		return respondErr(c, apperr.New(apperr.InvalidInput, "file exceeds maximum upload size", nil))
	}
	if !isPDFUpload(fileHeader.Filename, fileHeader.Header.Get("Content-Type")) {
		return respondErr(c, apperr.New(apperr.InvalidInput, "file must be a PDF", nil))
	}

	uploadID, err := gonanoid.New()
	if err != nil {
		return respondErr(c, apperr.New(apperr.Internal, "generate upload id", err))
	}
	if err := app.Store.CreateUpload(ctx, session.Upload{
		ID: uploadID, SessionID: sessionID, FileName: fileHeader.Filename,
		ByteSize: fileHeader.Size, CreatedAt: time.Now().UTC(),
	}); err != nil {
		return respondErr(c, err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return respondErr(c, apperr.New(apperr.InvalidInput, "could not open uploaded file", err))
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "lexigraph-upload-*.pdf")
	if err != nil {
		return respondErr(c, apperr.New(apperr.Internal, "stage upload", err))
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.CopyN(tmp, src, fileHeader.Size); err != nil {
		return respondErr(c, apperr.New(apperr.InvalidInput, "read uploaded file", err))
	}
	tmp.Close()

	result, err := app.Ingestor.Ingest(ctx, sessionID, fileHeader.Filename, tmp.Name())
	if err != nil {
		return respondErr(c, classifyIngestErr(err))
	}

	return c.JSON(http.StatusOK, ingestResponse{
		Status:               "ok",
		SessionID:            sessionID,
		FileName:             fileHeader.Filename,
		SizeBytes:            fileHeader.Size,
		Chunks:               result.ChunksCreated,
		NodesCreated:         result.NodesCreated,
		RelationshipsCreated: result.RelationshipsCreated,
		BatchID:              result.BatchID,
	})
}

// isPDFUpload accepts an upload only when both its declared content-type
// and filename extension say PDF, since either alone is easy to spoof and
// the pipeline downstream assumes a real PDF.
func isPDFUpload(filename, contentType string) bool {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return mediaType == "application/pdf"
}

// classifyIngestErr maps an Ingestor.Ingest failure to the apperr.Kind its
// cause implies, instead of collapsing every failure into ExtractionMalformed.
func classifyIngestErr(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionGone):
		return apperr.New(apperr.SessionGone, "session was deleted", err)
	case errors.Is(err, ingest.ErrInvalidPDF):
		return apperr.New(apperr.InvalidInput, "uploaded file is not a valid PDF", err)
	case errors.Is(err, ingest.ErrIngestFailed):
		return apperr.New(apperr.ExtractionMalformed, "ingest failed", err)
	default:
		return apperr.New(apperr.UpstreamUnavailable, "ingest failed", err)
	}
}
