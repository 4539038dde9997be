package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lexigraph/lexigraph/internal/config"
	"github.com/lexigraph/lexigraph/internal/db"
	"github.com/lexigraph/lexigraph/internal/queue"
	mid "github.com/lexigraph/lexigraph/internal/server/middleware"
	"github.com/lexigraph/lexigraph/internal/wiring"
	"github.com/lexigraph/lexigraph/pkg/answer"
	"github.com/lexigraph/lexigraph/pkg/ingest"
	"github.com/lexigraph/lexigraph/pkg/logger"
	"github.com/lexigraph/lexigraph/pkg/retrieve"
	"github.com/lexigraph/lexigraph/pkg/session"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// Init builds every process-wide singleton and serves the HTTP surface
// until an interrupt or SIGTERM triggers a graceful shutdown, grounded on
// the prior codebase's own Init but replacing its Postgres/pgvector/S3
// stack with this domain's relational store, graph store, and pipelines.
func Init(cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to open relational store", "err", err)
	}
	defer store.Close()

	graph, err := wiring.BuildGraphStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect graph store", "err", err)
	}
	defer graph.Close(ctx)

	embedder := wiring.BuildEmbedder(cfg)
	model, err := wiring.BuildGenModel(cfg)
	if err != nil {
		logger.Fatal("Failed to build generative model client", "err", err)
	}

	var events *queue.Publisher
	if cfg.RabbitMQURL != "" {
		events, err = queue.Connect(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("Failed to connect to RabbitMQ, ingest events will be dropped", "err", err)
			events = nil
		} else {
			defer events.Close()
		}
	}

	barrier := session.NewBarrier()
	ingestor := ingest.New(graph, embedder, model, cfg.GenExtractMinInterval, events, barrier)
	retriever := retrieve.New(graph, embedder)
	answerer := answer.New(store, retriever, model, cfg.HistoryTokenBudget, barrier)

	app := &mid.App{Store: store, Graph: graph, Ingestor: ingestor, Answerer: answerer, Barrier: barrier, Config: cfg}

	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", cfg.MaxUploadBytes+1<<20))) // 1MiB headroom for multipart overhead

	RegisterRoutes(e)

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
