// Package config resolves the service's environment variables into a typed
// struct, sitting on top of internal/util's godotenv-backed getters the
// same way the prior codebase's cmd/server and cmd/worker read them
// directly at usage sites — the difference is these reads happen once, at
// startup, so every component receives already-typed values instead of
// parsing strings itself.
package config

import (
	"strings"
	"time"

	"github.com/lexigraph/lexigraph/internal/util"
)

// Config is every environment-sourced setting the service needs at startup.
type Config struct {
	DatabaseURL string

	GraphURI      string
	GraphUser     string
	GraphPassword string
	GraphDatabase string

	GenModelKey           string
	GenBaseURL            string
	GenExtractModel       string
	GenAnswerModel        string
	GenExtractMinInterval time.Duration

	// EmbedModelPriority is EMBED_MODEL_PRIORITY split on commas, in
	// order; an entry prefixed "ollama:" selects the Ollama adapter with
	// the remainder as model name, otherwise it names an OpenAI-compatible
	// model. An empty list means local-hash only.
	EmbedModelPriority []string
	OllamaBaseURL      string

	MaxUploadBytes     int64
	MaxMessageChars    int
	HistoryTokenBudget int

	// AuthURL, when set, gates the optional JWT/JWKS auth stub (SPEC_FULL
	// §6 ambient addition); empty disables auth entirely.
	AuthURL string

	// RabbitMQURL, when set, enables the ingest lifecycle event publisher
	// (an observability side-channel); empty runs with events silently
	// dropped.
	RabbitMQURL string

	Port string
}

// Load reads and validates every setting Config needs. It calls
// util.LoadEnv first, matching the prior codebase's cmd/server startup sequence.
func Load() Config {
	util.LoadEnv()

	priority := strings.TrimSpace(util.GetEnv("EMBED_MODEL_PRIORITY"))
	var models []string
	if priority != "" {
		for _, m := range strings.Split(priority, ",") {
			m = strings.TrimSpace(m)
			if m != "" {
				models = append(models, m)
			}
		}
	}

	return Config{
		DatabaseURL: util.GetEnvString("DATABASE_URL", "file:lexigraph.db"),

		GraphURI:      util.GetEnv("GRAPH_URI"),
		GraphUser:     util.GetEnv("GRAPH_USER"),
		GraphPassword: util.GetEnv("GRAPH_PASSWORD"),
		GraphDatabase: util.GetEnvString("GRAPH_DATABASE", "neo4j"),

		GenModelKey:           util.GetEnv("GEN_MODEL_KEY"),
		GenBaseURL:            util.GetEnv("GEN_BASE_URL"),
		GenExtractModel:       util.GetEnvString("GEN_EXTRACT_MODEL", "gpt-4o-mini"),
		GenAnswerModel:        util.GetEnvString("GEN_ANSWER_MODEL", "gpt-4o-mini"),
		GenExtractMinInterval: time.Duration(util.GetEnvNumeric("GEN_EXTRACT_MIN_INTERVAL_MS", 4000)) * time.Millisecond,

		EmbedModelPriority: models,
		OllamaBaseURL:      util.GetEnvString("OLLAMA_BASE_URL", "http://localhost:11434"),

		MaxUploadBytes:     int64(util.GetEnvNumeric("MAX_UPLOAD_BYTES", 50*1024*1024)),
		MaxMessageChars:    int(util.GetEnvNumeric("MAX_MESSAGE_CHARS", 4000)),
		HistoryTokenBudget: int(util.GetEnvNumeric("HISTORY_TOKEN_BUDGET", 4000)),

		AuthURL: util.GetEnv("AUTH_URL"),

		RabbitMQURL: util.GetEnv("RABBITMQ_URL"),

		Port: util.GetEnvString("PORT", "8080"),
	}
}
