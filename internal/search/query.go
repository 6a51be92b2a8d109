package search

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted query, in runes.
const MaxQueryLength = 60

const allowedSymbols = " -.,'\"()!?&/:;#№«»–—"

// ValidQuery reports whether q may be searched. Queries that are empty, too
// long or contain a rune outside the allow-list are answered with no
// results rather than an error.
func ValidQuery(q string) bool {
	n := utf8.RuneCountInString(q)
	if n == 0 || n > MaxQueryLength {
		return false
	}
	for _, r := range q {
		if !allowedRune(r) {
			return false
		}
	}
	return true
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё':
		return true
	}
	return strings.ContainsRune(allowedSymbols, r)
}

// DefaultMaxResults is the result bound used when the caller gives none:
// short queries get more candidates.
func DefaultMaxResults(q string) int {
	n := utf8.RuneCountInString(q)
	if n == 0 {
		return 0
	}
	if n < 6 {
		return 100 / (2 * n)
	}
	return 5
}
