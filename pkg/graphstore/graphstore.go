// Package graphstore is the session-scoped labelled-property-graph
// contract, grounded on the prior codebase's pkg/store/base graph layer but
// retargeted from a relational adjacency model to a native graph database,
// since every query this domain needs (one-hop expansion, typed-edge
// filtering) is a graph traversal that a property graph expresses directly
// instead of through join tables.
package graphstore

import "context"

// Node is a session-scoped vertex identified by (Label, key property).
// Props holds every other property to write, including "language", which
// holds a session.Language value.
type Node struct {
	Label     string
	SessionID string
	Key       string // the natural key used for upsert identity
	Props     map[string]any
}

// Edge is a session-scoped typed directed edge between two nodes already
// upserted in this session's scope. Callers must set Props["session_id"]
// and Props["language"] (the originating chunk's language) themselves —
// Relate writes whatever Props holds onto the relationship verbatim, it
// does not derive these from SessionID.
type Edge struct {
	SessionID string
	Type      string
	SrcLabel  string
	SrcKey    string
	DstLabel  string
	DstKey    string
	Props     map[string]any
}

// Match is one scored result row from a graph query.
type Match struct {
	Label string
	Key   string
	Props map[string]any
	Score float64
}

// Store is the narrow contract every component that touches the graph
// depends on. All operations are implicitly scoped to SessionID; no method
// can read or write another session's nodes or edges.
type Store interface {
	// Upsert creates or updates a node keyed by (SessionID, Label, Key),
	// applying the language-monotonicity merge against any existing
	// node's language before writing. It returns the node's internal id.
	Upsert(ctx context.Context, n Node) (string, error)

	// Relate creates a typed edge between two already-upserted nodes. It
	// is idempotent: relating the same pair with the same type twice does
	// not create a duplicate edge.
	Relate(ctx context.Context, e Edge) error

	// MatchByTerms returns nodes across the given labels whose text
	// properties overlap the given terms, restricted to sessionID and,
	// when languageFilter is non-empty, to that language. Score ranks
	// match quality: content match=1, name=2, description=3, other=4
	// (lower is better). Results are ordered by ascending Score, then
	// ascending Key for determinism.
	MatchByTerms(ctx context.Context, sessionID string, labels []string, terms []string, languageFilter string, limit int) ([]Match, error)

	// ExpandOneHop returns the neighbours reachable from the given seed
	// nodes by a single edge of any type, still scoped to sessionID.
	ExpandOneHop(ctx context.Context, sessionID string, seeds []Match, limit int) ([]Match, error)

	// ListChunks returns every DocumentChunk node scoped to sessionID,
	// including its stored embedding, for the semantic-similarity pass.
	// Order is unspecified; callers score and sort.
	ListChunks(ctx context.Context, sessionID string) ([]Match, error)

	// DeleteSession removes every node and edge scoped to sessionID. It
	// is the graph half of delete-as-barrier semantics: callers must
	// ensure no concurrent Ingest or Answer is in flight for sessionID
	// before calling this.
	DeleteSession(ctx context.Context, sessionID string) error

	// EnsureIndices creates the indices/constraints the store depends on
	// for query performance. It is safe to call repeatedly.
	EnsureIndices(ctx context.Context) error

	Close(ctx context.Context) error
}
