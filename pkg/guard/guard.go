// Package guard detects emergency signals before any routing or model call.
package guard

import (
	"regexp"
	"strings"
	"unicode"
)

// Distress terms for the West Bengal deployment, matched case-insensitively
// as substrings. Bengali and Hindi romanizations included.
var sosKeywords = []string{
	"sos", "help", "danger", "emergency", "police",
	"bachao", "rakkha korun", "aapatkal", "musibat",
}

var panicPunctuation = regexp.MustCompile(`!!+`)

// IsEmergency reports whether text carries an immediate danger signal.
//
// Pure and synchronous: it must run before the onboarding gate and the
// classifier, and never waits on I/O. Rules, any of which fire:
// a distress keyword, an all-upper-case message containing "!", or two or
// more consecutive exclamation marks.
func IsEmergency(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	lowered := strings.ToLower(trimmed)
	for _, word := range sosKeywords {
		if strings.Contains(lowered, word) {
			return true
		}
	}

	if isShouting(trimmed) && strings.Contains(trimmed, "!") {
		return true
	}

	return panicPunctuation.MatchString(trimmed)
}

// isShouting reports whether the text is entirely upper case: it contains at
// least one cased letter and none of them are lower case.
func isShouting(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
