package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 4000*time.Millisecond, cfg.GenExtractMinInterval)
	assert.Equal(t, "neo4j", cfg.GraphDatabase)
	assert.Empty(t, cfg.EmbedModelPriority)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadSplitsEmbedModelPriority(t *testing.T) {
	t.Setenv("EMBED_MODEL_PRIORITY", "text-embedding-3-small, ollama:nomic-embed-text ,")

	cfg := Load()

	assert.Equal(t, []string{"text-embedding-3-small", "ollama:nomic-embed-text"}, cfg.EmbedModelPriority)
}
