// Package search implements the dual-signal retriever and reciprocal rank
// fusion over the index store.
package search

import (
	"regexp"
	"strings"
)

// MaxQueryTokens caps the lexical leg's token list.
const MaxQueryTokens = 8

// tokenPattern matches identifier-like tokens: a letter or underscore
// followed by at least one more character from letters, digits, underscore,
// dot, slash, or hyphen. Single-character fragments never qualify.
var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_./-]{1,}`)

// TokenizeQuery extracts identifier-like tokens from a query. Duplicates
// are dropped case-insensitively, keeping the first-seen casing and order;
// the list is capped at MaxQueryTokens. An empty result is valid input for
// the lexical leg, which then returns nothing.
func TokenizeQuery(query string) []string {
	matches := tokenPattern.FindAllString(query, -1)

	seen := make(map[string]bool, len(matches))
	var tokens []string
	for _, token := range matches {
		lower := strings.ToLower(token)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		tokens = append(tokens, token)
		if len(tokens) == MaxQueryTokens {
			break
		}
	}
	return tokens
}
