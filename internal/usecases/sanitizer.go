package usecases

import (
	"strings"
	"unicode/utf8"

	"luma_assistant/internal/repository"
)

var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}, {"'", "'"}}

// ReplySanitizer makes generated text read like a person typed it.
type ReplySanitizer struct {
	catalog  *repository.TemplateCatalog
	maxChars int
}

func NewReplySanitizer(catalog *repository.TemplateCatalog, maxChars int) *ReplySanitizer {
	if maxChars <= 0 {
		maxChars = 150
	}
	return &ReplySanitizer{catalog: catalog, maxChars: maxChars}
}

func (s *ReplySanitizer) Sanitize(raw, lang string) string {
	text := stripQuotes(strings.TrimSpace(raw))
	lower := strings.ToLower(text)
	for _, prefix := range s.catalog.RoboticPrefixes() {
		if strings.HasPrefix(lower, prefix) {
			return s.fallback(lang, "natural_fallback")
		}
	}
	if utf8.RuneCountInString(text) > s.maxChars {
		return s.fallback(lang, "short_fallback")
	}
	return text
}

func (s *ReplySanitizer) fallback(lang, category string) string {
	out, err := s.catalog.Render(lang, category, nil)
	if err != nil {
		out, err = s.catalog.Render(s.catalog.DefaultLanguage(), category, nil)
	}
	if err != nil {
		return "?"
	}
	return out
}

func stripQuotes(s string) string {
	for {
		trimmed := false
		for _, q := range quotePairs {
			if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
				s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
				trimmed = true
			}
		}
		if !trimmed {
			return s
		}
	}
}
