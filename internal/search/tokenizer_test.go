package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{
			name:     "identifiers and paths",
			query:    "where does auth/login.py call validate_token",
			expected: []string{"where", "does", "auth/login.py", "call", "validate_token"},
		},
		{
			name:     "case insensitive dedupe keeps first casing",
			query:    "Login login LOGIN",
			expected: []string{"Login"},
		},
		{
			name:     "single characters dropped",
			query:    "a b cd",
			expected: []string{"cd"},
		},
		{
			name:     "leading digit excluded",
			query:    "2fa _private x9",
			expected: []string{"fa", "_private", "x9"},
		},
		{
			name:     "punctuation only",
			query:    "?! 42 ...",
			expected: nil,
		},
		{
			name:     "empty query",
			query:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TokenizeQuery(tt.query))
		})
	}
}

func TestTokenizeQuery_CapAtEight(t *testing.T) {
	query := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	tokens := TokenizeQuery(query)

	assert.Len(t, tokens, MaxQueryTokens)
	assert.Equal(t, "theta", tokens[len(tokens)-1])
}

func TestTokenizeQuery_NoCaseInsensitiveDuplicates(t *testing.T) {
	tokens := TokenizeQuery("Parse parse PARSE config Config loader")

	seen := make(map[string]bool)
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		assert.False(t, seen[lower], "duplicate token %q", tok)
		seen[lower] = true
	}
	assert.LessOrEqual(t, len(tokens), MaxQueryTokens)
}
