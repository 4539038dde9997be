package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// allowedLabels whitelists the node labels this domain's data model
// defines. Labels are interpolated into Cypher because the driver has no
// parameter binding for label names; the whitelist is what makes that safe
// against injection from caller-supplied strings.
var allowedLabels = map[string]bool{
	"DocumentChunk": true,
	"Entity":        true,
	"Fact":          true,
	"LegalConcept":  true,
	"Case":          true,
	"Document":      true,
}

var allowedRelTypes = map[string]bool{
	"ABOUT": true, "CONTAINS": true, "MENTIONS": true,
	"RELATED_TO": true, "APPLIES_TO": true, "INVOLVES": true,
}

// Neo4j is the graphstore.Store backed by a Neo4j property graph, grounded
// on the prior codebase's pkg/store/pgx transactional-write shape but expressed as
// parameterized Cypher instead of SQL, since the queries this domain needs are
// traversals (one-hop expansion, typed-edge filtering) that a labelled
// property graph expresses directly.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j opens a driver against uri using basic auth and verifies
// connectivity.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: open driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graphstore: connectivity: %w", err)
	}
	return &Neo4j{driver: driver, database: database}, nil
}

func (n *Neo4j) session(ctx context.Context) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// EnsureIndices creates the composite (session_id, key) and (session_id,
// language) indices every node label needs, a (session_id, language) index
// per relationship type, an Entity-specific entity_type index, and a
// full-text index over DocumentChunk content for the graph pass's term
// search.
func (n *Neo4j) EnsureIndices(ctx context.Context) error {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	for label := range allowedLabels {
		lower := strings.ToLower(label)
		statements := []string{
			fmt.Sprintf("CREATE INDEX %s_session_key IF NOT EXISTS FOR (n:%s) ON (n.session_id, n.key)", lower, label),
			fmt.Sprintf("CREATE INDEX %s_session_language IF NOT EXISTS FOR (n:%s) ON (n.session_id, n.language)", lower, label),
		}
		for _, stmt := range statements {
			if _, err := sess.Run(ctx, stmt, nil); err != nil {
				return fmt.Errorf("graphstore: ensure index for %s: %w", label, err)
			}
		}
	}

	for relType := range allowedRelTypes {
		lower := strings.ToLower(relType)
		stmt := fmt.Sprintf(
			"CREATE INDEX %s_rel_session_language IF NOT EXISTS FOR ()-[r:%s]-() ON (r.session_id, r.language)",
			lower, relType,
		)
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graphstore: ensure index for relationship %s: %w", relType, err)
		}
	}

	if _, err := sess.Run(ctx,
		"CREATE INDEX entity_session_type IF NOT EXISTS FOR (n:Entity) ON (n.session_id, n.entity_type)", nil); err != nil {
		return fmt.Errorf("graphstore: ensure entity_type index: %w", err)
	}

	if _, err := sess.Run(ctx,
		"CREATE FULLTEXT INDEX chunk_content_fulltext IF NOT EXISTS FOR (n:DocumentChunk) ON EACH [n.content]", nil); err != nil {
		return fmt.Errorf("graphstore: ensure chunk fulltext index: %w", err)
	}

	return nil
}

// Upsert merges a node keyed by (session_id, label, key), applying the
// language-monotonicity merge in Cypher itself so the read-modify-write is
// atomic under Neo4j's single-statement transaction guarantee.
func (n *Neo4j) Upsert(ctx context.Context, node Node) (string, error) {
	if !allowedLabels[node.Label] {
		return "", fmt.Errorf("graphstore: unknown label %q", node.Label)
	}

	sess := n.session(ctx)
	defer sess.Close(ctx)

	lang, _ := node.Props["language"].(string)
	setClauses := make([]string, 0, len(node.Props)+1)
	params := map[string]any{
		"session_id": node.SessionID,
		"key":        node.Key,
		"language":   lang,
	}
	for k, v := range node.Props {
		if k == "language" {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("n.%s = $%s", k, k))
		params[k] = v
	}
	sort.Strings(setClauses)

	query := fmt.Sprintf(`
MERGE (n:%s {session_id: $session_id, key: $key})
ON CREATE SET n.language = $language
ON MATCH SET n.language = CASE
  WHEN n.language = '' OR n.language IS NULL THEN $language
  WHEN $language = '' OR $language IS NULL THEN n.language
  WHEN n.language = $language THEN n.language
  ELSE 'mixed'
END
%s
RETURN elementId(n) AS id`, node.Label, setClause(setClauses))

	result, err := sess.Run(ctx, query, params)
	if err != nil {
		return "", fmt.Errorf("graphstore: upsert %s: %w", node.Label, err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("graphstore: upsert %s: %w", node.Label, err)
	}
	id, _ := record.Get("id")
	idStr, _ := id.(string)
	return idStr, nil
}

func setClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "SET " + strings.Join(clauses, ", ")
}

func (n *Neo4j) Relate(ctx context.Context, e Edge) error {
	if !allowedLabels[e.SrcLabel] || !allowedLabels[e.DstLabel] {
		return fmt.Errorf("graphstore: unknown label in relate")
	}
	if !allowedRelTypes[e.Type] {
		return fmt.Errorf("graphstore: unknown relationship type %q", e.Type)
	}

	sess := n.session(ctx)
	defer sess.Close(ctx)

	query := fmt.Sprintf(`
MATCH (a:%s {session_id: $session_id, key: $src_key})
MATCH (b:%s {session_id: $session_id, key: $dst_key})
MERGE (a)-[r:%s]->(b)
SET r += $props`, e.SrcLabel, e.DstLabel, e.Type)

	_, err := sess.Run(ctx, query, map[string]any{
		"session_id": e.SessionID,
		"src_key":    e.SrcKey,
		"dst_key":    e.DstKey,
		"props":      e.Props,
	})
	if err != nil {
		return fmt.Errorf("graphstore: relate %s: %w", e.Type, err)
	}
	return nil
}

func (n *Neo4j) MatchByTerms(ctx context.Context, sessionID string, labels []string, terms []string, languageFilter string, limit int) ([]Match, error) {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	var validLabels []string
	for _, l := range labels {
		if allowedLabels[l] {
			validLabels = append(validLabels, l)
		}
	}
	if len(validLabels) == 0 || len(terms) == 0 {
		return nil, nil
	}

	labelPred := make([]string, len(validLabels))
	for i, l := range validLabels {
		labelPred[i] = fmt.Sprintf("n:%s", l)
	}

	// score ranks match quality: content match=1, name=2, description=3,
	// other=4 — lower is better, ascending order.
	query := fmt.Sprintf(`
MATCH (n)
WHERE n.session_id = $session_id AND (%s)
  AND ($language = '' OR n.language = $language)
  AND any(term IN $terms WHERE
        toLower(coalesce(n.name, '')) CONTAINS toLower(term) OR
        toLower(coalesce(n.content, '')) CONTAINS toLower(term) OR
        toLower(coalesce(n.term, '')) CONTAINS toLower(term) OR
        toLower(coalesce(n.case_name, '')) CONTAINS toLower(term) OR
        toLower(coalesce(n.description, '')) CONTAINS toLower(term))
RETURN labels(n)[0] AS label, n.key AS key, properties(n) AS props,
       CASE
         WHEN n.content IS NOT NULL AND any(term IN $terms WHERE toLower(n.content) CONTAINS toLower(term)) THEN 1
         WHEN n.name IS NOT NULL AND any(term IN $terms WHERE toLower(n.name) CONTAINS toLower(term)) THEN 2
         WHEN n.description IS NOT NULL AND any(term IN $terms WHERE toLower(n.description) CONTAINS toLower(term)) THEN 3
         ELSE 4
       END AS score
ORDER BY score ASC, n.created_at DESC, key ASC
LIMIT $limit`, strings.Join(labelPred, " OR "))

	result, err := sess.Run(ctx, query, map[string]any{
		"session_id": sessionID,
		"terms":      terms,
		"language":   languageFilter,
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: match by terms: %w", err)
	}
	return collectMatches(ctx, result)
}

func (n *Neo4j) ExpandOneHop(ctx context.Context, sessionID string, seeds []Match, limit int) ([]Match, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	sess := n.session(ctx)
	defer sess.Close(ctx)

	keys := make([]string, len(seeds))
	for i, s := range seeds {
		keys[i] = s.Key
	}

	query := `
MATCH (seed {session_id: $session_id})-[r]-(neighbour {session_id: $session_id})
WHERE seed.key IN $keys
RETURN DISTINCT labels(neighbour)[0] AS label, neighbour.key AS key, properties(neighbour) AS props, 1.0 AS score
ORDER BY key ASC
LIMIT $limit`

	result, err := sess.Run(ctx, query, map[string]any{
		"session_id": sessionID,
		"keys":       keys,
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: expand one hop: %w", err)
	}
	return collectMatches(ctx, result)
}

func collectMatches(ctx context.Context, result neo4j.ResultWithContext) ([]Match, error) {
	var out []Match
	for result.Next(ctx) {
		rec := result.Record()
		label, _ := rec.Get("label")
		key, _ := rec.Get("key")
		props, _ := rec.Get("props")
		score, _ := rec.Get("score")

		propsMap, _ := props.(map[string]any)
		// the CASE in MatchByTerms yields a Cypher INTEGER (int64 in Go),
		// while the literal 1.0/0.0 scores elsewhere come back as float64.
		var scoreF float64
		switch s := score.(type) {
		case float64:
			scoreF = s
		case int64:
			scoreF = float64(s)
		}

		out = append(out, Match{
			Label: fmt.Sprint(label),
			Key:   fmt.Sprint(key),
			Props: propsMap,
			Score: scoreF,
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *Neo4j) ListChunks(ctx context.Context, sessionID string) ([]Match, error) {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
MATCH (n:DocumentChunk {session_id: $session_id})
RETURN 'DocumentChunk' AS label, n.key AS key, properties(n) AS props, 0.0 AS score`,
		map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("graphstore: list chunks: %w", err)
	}
	return collectMatches(ctx, result)
}

// DeleteSession removes every node and edge scoped to sessionID. Callers
// must hold the session's answer/ingest exclusion barrier before calling
// this so no in-flight operation can observe the session mid-delete.
func (n *Neo4j) DeleteSession(ctx context.Context, sessionID string) error {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `
MATCH (n {session_id: $session_id})
DETACH DELETE n`, map[string]any{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("graphstore: delete session: %w", err)
	}
	return nil
}
