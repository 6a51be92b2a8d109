package location

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s. A new Caser is built per call
// because cases.Caser keeps state and is not safe for concurrent use.
func Fold(s string) string {
	return cases.Fold().String(s)
}

func HasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(Fold(s), Fold(prefix))
}

func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes the LIKE wildcards in s for use with ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
