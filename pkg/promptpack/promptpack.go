// Package promptpack assembles the labelled prompt blocks the Answerer
// sends to the generative model: a disclaimer, the retrieved
// knowledge-graph context, recent history, and the user's question, with
// an added terminology-guidance block when the answer must be in or
// alongside Arabic.
package promptpack

import (
	"fmt"
	"strings"

	"github.com/lexigraph/lexigraph/pkg/genmodel"
	"github.com/lexigraph/lexigraph/pkg/graphstore"
	"github.com/lexigraph/lexigraph/pkg/retrieve"
	"github.com/lexigraph/lexigraph/pkg/session"
)

const disclaimer = "You are a legal document assistant. Answer strictly from the provided context.\n\n" +
	"IMPORTANT DISCLAIMER: This is not legal advice. All responses are for informational purposes only " +
	"and should not be considered as professional legal counsel. Users should consult with qualified " +
	"legal professionals for specific legal matters.\n\n" +
	"State clearly when the context does not contain enough information to answer, and never invent " +
	"facts, case numbers, or figures that are not present in the context."

const arabicGuidance = "When the context or the question is in Arabic, preserve legal terminology precisely " +
	"(e.g. المؤجر، المستأجر، الإيجار، البند، الطرف) rather than translating it loosely, and answer in the same " +
	"language register as the question."

// Build assembles the system + user messages sent to genmodel.Model.Answer.
func Build(lang session.Language, ctx retrieve.ContextPack, history []session.Message, question string) []genmodel.ChatMessage {
	var sys strings.Builder
	sys.WriteString(disclaimer)
	if lang == session.LanguageArabic || lang == session.LanguageMixed {
		sys.WriteString("\n\n")
		sys.WriteString(arabicGuidance)
	}

	msgs := []genmodel.ChatMessage{{Role: "system", Content: sys.String()}}

	if contextBlock := renderContext(ctx); contextBlock != "" {
		msgs = append(msgs, genmodel.ChatMessage{
			Role:    "system",
			Content: "Context from Knowledge Graph:\n" + contextBlock,
		})
	}

	for _, m := range history {
		role := "user"
		if m.Role == session.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, genmodel.ChatMessage{Role: role, Content: m.Content})
	}

	msgs = append(msgs, genmodel.ChatMessage{Role: "user", Content: question})
	return msgs
}

func renderContext(ctx retrieve.ContextPack) string {
	var b strings.Builder

	if len(ctx.TopChunks) > 0 {
		b.WriteString("Most relevant excerpts:\n")
		for _, c := range ctx.TopChunks {
			fmt.Fprintln(&b, strings.TrimSpace(fmt.Sprintf("- (%s) %s %s", c.Key, propString(c.Props, "content"), chunkCitation(c.Match))))
		}
	}
	if len(ctx.BackgroundChunks) > 0 {
		b.WriteString("Additional background excerpts:\n")
		for _, c := range ctx.BackgroundChunks {
			fmt.Fprintln(&b, strings.TrimSpace(fmt.Sprintf("- (%s) %s %s", c.Key, propString(c.Props, "content"), chunkCitation(c.Match))))
		}
	}
	if len(ctx.GraphMatches) > 0 {
		b.WriteString("Related entities and facts:\n")
		for _, m := range ctx.GraphMatches {
			fmt.Fprintf(&b, "- [%s] %s%s\n", m.Label, describeMatch(m), languageCitation(m))
		}
	}
	if len(ctx.Expanded) > 0 {
		b.WriteString("One-hop related items:\n")
		for _, m := range ctx.Expanded {
			fmt.Fprintf(&b, "- [%s] %s%s\n", m.Label, describeMatch(m), languageCitation(m))
		}
	}
	if len(ctx.SearchTerms) > 0 {
		fmt.Fprintf(&b, "Search terms used: %s\n", strings.Join(ctx.SearchTerms, ", "))
	}

	return b.String()
}

func describeMatch(m graphstore.Match) string {
	for _, field := range []string{"name", "content", "term", "case_name"} {
		if v := propString(m.Props, field); v != "" {
			return v
		}
	}
	return m.Key
}

// chunkCitation renders the source_file/page/language a chunk excerpt is
// drawn from, so the model can attribute claims the way chunkSource in
// pkg/answer attributes the trailing sources record for the same chunk.
func chunkCitation(m graphstore.Match) string {
	var parts []string
	if v := propString(m.Props, "source_file"); v != "" {
		parts = append(parts, fmt.Sprintf("source: %s", v))
	}
	if page := propInt(m.Props, "page"); page != 0 {
		parts = append(parts, fmt.Sprintf("page: %d", page))
	}
	if v := propString(m.Props, "language"); v != "" {
		parts = append(parts, fmt.Sprintf("language: %s", v))
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func languageCitation(m graphstore.Match) string {
	if v := propString(m.Props, "language"); v != "" {
		return fmt.Sprintf(" [language: %s]", v)
	}
	return ""
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propInt(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
