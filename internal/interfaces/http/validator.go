package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxClientIDLength = 64
	MaxMessageLength  = 4096
	MaxNameLength     = 128
	MaxTaskNameLength = 128
)

var (
	clientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_+.@:\-]+$`)
	taskNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_:\-]+$`)
)

// ValidClientID accepts phone numbers and JID-like identifiers.
func ValidClientID(s string) bool {
	return s != "" && len(s) <= MaxClientIDLength && clientIDPattern.MatchString(s)
}

func ValidTaskName(s string) bool {
	return s != "" && len(s) <= MaxTaskNameLength && taskNamePattern.MatchString(s)
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString cuts s to at most maxRunes runes.
func TruncateString(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
