// Package lang classifies short text fragments as Arabic, English, or mixed
// by script-ratio analysis. It is deterministic and holds no state.
package lang

import (
	"github.com/lexigraph/lexigraph/pkg/session"
)

// arabicRanges are the Unicode blocks counted as Arabic script.
var arabicRanges = [][2]rune{
	{0x0600, 0x06FF},
	{0x0750, 0x077F},
	{0x08A0, 0x08FF},
	{0xFB50, 0xFDFF},
	{0xFE70, 0xFEFF},
}

func isArabic(r rune) bool {
	for _, rg := range arabicRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Tag classifies text into ar/en/mixed per the script-ratio rule.
func Tag(text string) session.Language {
	var a, e int
	for _, r := range text {
		switch {
		case isArabic(r):
			a++
		case isASCIILetter(r):
			e++
		}
	}
	t := a + e
	if t == 0 {
		return session.LanguageEnglish
	}

	ra := float64(a) / float64(t)
	re := float64(e) / float64(t)

	switch {
	case ra > 0.3 && re <= 0.2:
		return session.LanguageArabic
	case ra > 0.3 && re > 0.2:
		return session.LanguageMixed
	case re > 0.5:
		return session.LanguageEnglish
	default:
		return session.LanguageMixed
	}
}
