package promptpack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/retrieve"
	"github.com/lexigraph/lexigraph/pkg/session"
)

func TestBuildIncludesArabicGuidanceForArabic(t *testing.T) {
	msgs := Build(session.LanguageArabic, retrieve.ContextPack{}, nil, "ما هو الإيجار؟")
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Content, "terminology")
}

func TestBuildOmitsArabicGuidanceForEnglish(t *testing.T) {
	msgs := Build(session.LanguageEnglish, retrieve.ContextPack{}, nil, "what is the rent?")
	require.NotEmpty(t, msgs)
	assert.NotContains(t, msgs[0].Content, "terminology")
}

func TestBuildEndsWithUserQuestion(t *testing.T) {
	msgs := Build(session.LanguageEnglish, retrieve.ContextPack{}, nil, "what is the rent?")
	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "what is the rent?", last.Content)
}

func TestBuildIncludesContextChunks(t *testing.T) {
	pack := retrieve.ContextPack{
		TopChunks: []retrieve.ScoredChunk{
			{Match: graphstore.Match{Key: "c1", Props: map[string]any{"content": "rent is due monthly"}}, Similarity: 0.9},
		},
	}
	msgs := Build(session.LanguageEnglish, pack, nil, "what is the rent?")
	found := false
	for _, m := range msgs {
		if strings.Contains(m.Content, "rent is due monthly") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildDisclaimerStatesNotLegalAdvice(t *testing.T) {
	msgs := Build(session.LanguageEnglish, retrieve.ContextPack{}, nil, "what is the rent?")
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Content, "This is not legal advice.")
}

func TestBuildChunkCitationIncludesSourcePageLanguage(t *testing.T) {
	pack := retrieve.ContextPack{
		TopChunks: []retrieve.ScoredChunk{
			{Match: graphstore.Match{Key: "c1", Props: map[string]any{
				"content":     "rent is due monthly",
				"source_file": "lease.pdf",
				"page":        int64(3),
				"language":    "en",
			}}, Similarity: 0.9},
		},
	}
	msgs := Build(session.LanguageEnglish, pack, nil, "what is the rent?")
	var contextBlock string
	for _, m := range msgs {
		if strings.Contains(m.Content, "rent is due monthly") {
			contextBlock = m.Content
		}
	}
	require.NotEmpty(t, contextBlock)
	assert.Contains(t, contextBlock, "lease.pdf")
	assert.Contains(t, contextBlock, "page: 3")
	assert.Contains(t, contextBlock, "language: en")
}

func TestBuildGraphMatchIncludesLanguageCitation(t *testing.T) {
	pack := retrieve.ContextPack{
		GraphMatches: []graphstore.Match{
			{Label: "Entity", Key: "acme corp", Props: map[string]any{"name": "Acme Corp", "language": "ar"}},
		},
	}
	msgs := Build(session.LanguageEnglish, pack, nil, "who is the tenant?")
	var contextBlock string
	for _, m := range msgs {
		if strings.Contains(m.Content, "Acme Corp") {
			contextBlock = m.Content
		}
	}
	require.NotEmpty(t, contextBlock)
	assert.Contains(t, contextBlock, "[language: ar]")
}

func TestBuildRendersSearchTerms(t *testing.T) {
	pack := retrieve.ContextPack{
		GraphMatches: []graphstore.Match{{Label: "Entity", Key: "rent", Props: map[string]any{"name": "rent"}}},
		SearchTerms:  []string{"rent", "lease"},
	}
	msgs := Build(session.LanguageEnglish, pack, nil, "what is the rent?")
	var contextBlock string
	for _, m := range msgs {
		if strings.Contains(m.Content, "Related entities") {
			contextBlock = m.Content
		}
	}
	require.NotEmpty(t, contextBlock)
	assert.Contains(t, contextBlock, "Search terms used: rent, lease")
}

func TestBuildIncludesHistoryInOrder(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: "hi there"},
	}
	msgs := Build(session.LanguageEnglish, retrieve.ContextPack{}, history, "what is the rent?")
	var roles []string
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}
