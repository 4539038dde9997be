package retrieve

import (
	"regexp"
	"strings"

	"github.com/lexigraph/lexigraph/pkg/session"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var stopWordsEnglish = map[string]bool{
	"what": true, "is": true, "are": true, "in": true, "the": true, "a": true,
	"an": true, "and": true, "or": true, "but": true, "for": true, "with": true,
	"by": true, "how": true, "when": true, "where": true, "why": true, "who": true,
	"which": true, "tell": true, "me": true, "about": true, "can": true, "you": true,
	"please": true,
}

var stopWordsArabic = map[string]bool{
	"ماذا": true, "ما": true, "هو": true, "هي": true, "في": true, "من": true,
	"إلى": true, "على": true, "مع": true, "ب": true, "ل": true, "كيف": true,
	"متى": true, "أين": true, "لماذا": true, "أي": true, "أخبر": true, "ني": true,
	"عن": true, "هل": true, "يمكن": true, "أن": true, "تخبرني": true, "يوجد": true,
	"موجود": true, "يحتوي": true, "يضم": true,
}

// generalContentIndicators flags a query as being about "the document" in
// general rather than about a specific named thing.
var generalContentIndicators = []string{
	"ملف", "مستند", "محتوى", "معلومات", "تفاصيل", "عقد",
	"document", "file", "content", "information", "details",
}

var generalContentPhrases = []string{
	"ماذا يوجد", "ماذا يحتوي", "ماذا يضم", "ما هو المحتوى", "ما هي المعلومات",
	"ماذا في", "ماذا عن",
	"what is in", "what contains", "what does it contain", "what is about",
}

var descriptivePhrases = []string{
	"اوصف", "اشرح", "وضح", "تفاصيل",
	"describe", "explain", "details", "detail",
}

// IsGeneralContentQuery reports whether query is a "what's in this
// document" style question via the bilingual content-of-file phrase list —
// the case where the semantic pass must return every chunk of the session
// regardless of similarity, instead of filtering by a threshold.
func IsGeneralContentQuery(query string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(query))
	for _, phrase := range generalContentPhrases {
		if strings.Contains(cleaned, phrase) {
			return true
		}
	}
	return false
}

// ExtractTerms distills a user question into the terms used for the graph
// pass: bilingual stop-word filtering with a fallback to broad content
// terms for generic "what's in this document" questions.
func ExtractTerms(query string, lang session.Language) []string {
	cleaned := strings.ToLower(strings.TrimSpace(query))

	for _, phrase := range generalContentPhrases {
		if strings.Contains(cleaned, phrase) {
			return []string{"عقد", "مستند", "محتوى"}
		}
	}
	for _, phrase := range descriptivePhrases {
		if strings.Contains(cleaned, phrase) {
			return []string{"عقد", "مستند", "محتوى", "تفاصيل"}
		}
	}

	words := wordPattern.FindAllString(cleaned, -1)
	var terms []string
	for _, w := range words {
		if stopWordsEnglish[w] || stopWordsArabic[w] {
			continue
		}
		terms = append(terms, w)
	}

	if len(terms) == 0 {
		for _, indicator := range generalContentIndicators {
			if strings.Contains(cleaned, indicator) {
				return []string{"عقد"}
			}
		}
		if cleaned != "" {
			return []string{cleaned}
		}
	}

	return terms
}
