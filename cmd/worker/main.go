// Command worker is the maintenance binary that ensures graph indices exist
// and reconciles any session left with a Document node whose language was
// never resolved because a crash interrupted ingest between the chunk pass
// and completion. There is no queue to redeliver from — ingestion is
// synchronous — so reconciliation reads the graph directly instead of
// replaying work items, unlike the prior codebase's cmd/worker consumer loop.
package main

import (
	"context"

	"github.com/lexigraph/lexigraph/internal/config"
	"github.com/lexigraph/lexigraph/internal/db"
	"github.com/lexigraph/lexigraph/internal/util"
	"github.com/lexigraph/lexigraph/internal/wiring"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/ingest"
	"github.com/lexigraph/lexigraph/pkg/logger"
	"github.com/lexigraph/lexigraph/pkg/logger/console"
)

func main() {
	cfg := config.Load()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
	}))

	ctx := context.Background()

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to open relational store", "err", err)
	}
	defer store.Close()

	// BuildGraphStore already calls EnsureIndices.
	graph, err := wiring.BuildGraphStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect graph store", "err", err)
	}
	defer graph.Close(ctx)

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		logger.Fatal("Failed to list sessions", "err", err)
	}

	total := 0
	for _, sess := range sessions {
		n, err := reconcileSession(ctx, graph, sess.ID)
		if err != nil {
			logger.Error("Failed to reconcile session", "session_id", sess.ID, "err", err)
			continue
		}
		total += n
	}
	logger.Info("Reconcile complete", "sessions", len(sessions), "documents_updated", total)
}

// reconcileSession recomputes each Document's language from its chunks and
// re-upserts it, repairing documents left with an empty language tag by an
// ingest that crashed after writing the Document node but before completion
// (ingest writes the Document with language "" up front and resolves it
// from its chunks only once every chunk is done). Upsert
// merges language server-side, so calling it once per distinct chunk
// language observed is enough regardless of visit order.
func reconcileSession(ctx context.Context, graph graphstore.Store, sessionID string) (int, error) {
	chunks, err := graph.ListChunks(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	updated := 0
	for _, chunk := range chunks {
		sourceFile, _ := chunk.Props["source_file"].(string)
		lang, _ := chunk.Props["language"].(string)
		if sourceFile == "" || lang == "" {
			continue
		}
		docKey := ingest.Normalize(sourceFile)
		dedupeKey := docKey + "|" + lang
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true

		if _, err := graph.Upsert(ctx, graphstore.Node{
			SessionID: sessionID, Label: "Document", Key: docKey,
			Props: map[string]any{"language": lang},
		}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
