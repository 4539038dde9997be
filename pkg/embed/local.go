package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// LocalDimension is the fixed dimension of the hash-based fallback
// embedding.
const LocalDimension = 100

// wordPattern tokenizes on runs of letters, digits, and underscores, the
// same word boundary pkg/retrieve/terms.go uses for term extraction, so the
// fallback embedder and the graph pass agree on what counts as a token.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Local is a dependency-free bag-of-words embedding provider. Every token
// in the input is hashed with FNV-1a into one of LocalDimension buckets;
// the resulting vector is L2-normalized. It is deterministic and never
// errors, so it is always safe as the last entry of a Chain.
type Local struct{}

func (Local) Name() string   { return "local" }
func (Local) Dimension() int { return LocalDimension }

func (Local) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedOne(t)
	}
	return out, nil
}

func embedOne(text string) []float32 {
	v := make([]float32, LocalDimension)
	for _, tok := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[int(h.Sum32())%LocalDimension]++
	}
	normalize(v)
	return v
}
