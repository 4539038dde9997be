// Package memtest is an in-memory graphstore.Store used only by tests
// elsewhere in the module, grounded on the prior codebase's test/mock_server.go
// pattern of a small in-process fake standing in for a networked backend.
package memtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lexigraph/lexigraph/pkg/graphstore"
)

type nodeKey struct {
	sessionID string
	label     string
	key       string
}

type edgeKey struct {
	sessionID string
	relType   string
	srcLabel  string
	srcKey    string
	dstLabel  string
	dstKey    string
}

// Store is an in-memory graphstore.Store. Build it with New; the zero value
// has nil maps and is not ready to use.
type Store struct {
	mu    sync.Mutex
	nodes map[nodeKey]graphstore.Node
	edges map[edgeKey]graphstore.Edge
}

func New() *Store {
	return &Store{
		nodes: make(map[nodeKey]graphstore.Node),
		edges: make(map[edgeKey]graphstore.Edge),
	}
}

func (s *Store) Close(context.Context) error         { return nil }
func (s *Store) EnsureIndices(context.Context) error { return nil }

func (s *Store) Upsert(_ context.Context, n graphstore.Node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := nodeKey{n.SessionID, n.Label, n.Key}
	existing, ok := s.nodes[k]
	if ok {
		existingLang, _ := existing.Props["language"].(string)
		newLang, _ := n.Props["language"].(string)
		merged := mergeLanguage(existingLang, newLang)
		for pk, pv := range n.Props {
			if existing.Props == nil {
				existing.Props = map[string]any{}
			}
			existing.Props[pk] = pv
		}
		existing.Props["language"] = merged
		s.nodes[k] = existing
	} else {
		if n.Props == nil {
			n.Props = map[string]any{}
		}
		s.nodes[k] = n
	}
	return fmt.Sprintf("%s/%s/%s", n.SessionID, n.Label, n.Key), nil
}

func mergeLanguage(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a == b {
		return a
	}
	return "mixed"
}

func (s *Store) Relate(_ context.Context, e graphstore.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey{e.SessionID, e.Type, e.SrcLabel, e.SrcKey, e.DstLabel, e.DstKey}
	s.edges[k] = e
	return nil
}

func (s *Store) MatchByTerms(_ context.Context, sessionID string, labels []string, terms []string, languageFilter string, limit int) ([]graphstore.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wantLabel := map[string]bool{}
	for _, l := range labels {
		wantLabel[l] = true
	}

	var out []graphstore.Match
	for k, n := range s.nodes {
		if k.sessionID != sessionID || !wantLabel[k.label] {
			continue
		}
		if languageFilter != "" {
			lang, _ := n.Props["language"].(string)
			if lang != languageFilter {
				continue
			}
		}
		score, matched := scoreNode(n, terms)
		if !matched {
			continue
		}
		out = append(out, graphstore.Match{Label: k.label, Key: k.key, Props: n.Props, Score: float64(score)})
	}

	// Lower score is better (content=1, name=2, description=3, other=4),
	// ascending order tie-broken by key.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// scoreNode ranks a node by match quality: content match=1, name=2,
// description=3, any other field=4. matched reports whether any field
// overlapped the search terms at all.
func scoreNode(n graphstore.Node, terms []string) (score int, matched bool) {
	if v, ok := n.Props["content"].(string); ok && matchesAny(v, terms) {
		return 1, true
	}
	if v, ok := n.Props["name"].(string); ok && matchesAny(v, terms) {
		return 2, true
	}
	if v, ok := n.Props["description"].(string); ok && matchesAny(v, terms) {
		return 3, true
	}
	for _, field := range []string{"term", "case_name", "definition", "category", "court", "jurisdiction"} {
		if v, ok := n.Props[field].(string); ok && matchesAny(v, terms) {
			return 4, true
		}
	}
	return 0, false
}

func (s *Store) ExpandOneHop(_ context.Context, sessionID string, seeds []graphstore.Match, limit int) ([]graphstore.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seedKeys := map[string]bool{}
	for _, m := range seeds {
		seedKeys[m.Key] = true
	}

	seen := map[nodeKey]bool{}
	var out []graphstore.Match
	for ek := range s.edges {
		if ek.sessionID != sessionID {
			continue
		}
		var neighborLabel, neighborKey string
		switch {
		case seedKeys[ek.srcKey]:
			neighborLabel, neighborKey = ek.dstLabel, ek.dstKey
		case seedKeys[ek.dstKey]:
			neighborLabel, neighborKey = ek.srcLabel, ek.srcKey
		default:
			continue
		}
		nk := nodeKey{sessionID, neighborLabel, neighborKey}
		if seen[nk] {
			continue
		}
		n, ok := s.nodes[nk]
		if !ok {
			continue
		}
		seen[nk] = true
		out = append(out, graphstore.Match{Label: neighborLabel, Key: neighborKey, Props: n.Props, Score: 1.0})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListChunks(_ context.Context, sessionID string) ([]graphstore.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []graphstore.Match
	for k, n := range s.nodes {
		if k.sessionID != sessionID || k.label != "DocumentChunk" {
			continue
		}
		out = append(out, graphstore.Match{Label: k.label, Key: k.key, Props: n.Props})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.nodes {
		if k.sessionID == sessionID {
			delete(s.nodes, k)
		}
	}
	for k := range s.edges {
		if k.sessionID == sessionID {
			delete(s.edges, k)
		}
	}
	return nil
}
