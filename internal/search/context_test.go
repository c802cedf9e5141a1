package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/coderag/internal/store"
)

func codeResult(id, file, name, language, code string, start, end int) FusedResult {
	return FusedResult{
		ID: id,
		Payload: &store.CodePayload{
			File:      file,
			Name:      name,
			Language:  language,
			Code:      code,
			StartLine: start,
			EndLine:   end,
		},
	}
}

func TestBuildContext_BlockFormat(t *testing.T) {
	results := []FusedResult{
		codeResult("1", "src/auth.py", "validate", "python", "def validate(x):\n    return x", 10, 11),
	}

	got := BuildContext(results, 2000, 9000)

	assert.Equal(t, "[src/auth.py:10-11]  validate\n```python\ndef validate(x):\n    return x\n```", got)
}

func TestBuildContext_BlocksJoinedByBlankLine(t *testing.T) {
	results := []FusedResult{
		codeResult("1", "a.py", "f", "python", "def f(): pass", 1, 1),
		codeResult("2", "b.go", "G", "go", "func G() {}", 5, 5),
	}

	got := BuildContext(results, 2000, 9000)

	blocks := strings.Split(got, "\n\n")
	require.Len(t, blocks, 2)
	assert.True(t, strings.HasPrefix(blocks[0], "[a.py:1-1]"))
	assert.True(t, strings.HasPrefix(blocks[1], "[b.go:5-5]"))
}

func TestBuildContext_CodeCapped(t *testing.T) {
	long := strings.Repeat("x", 500)
	results := []FusedResult{
		codeResult("1", "a.py", "f", "python", long, 1, 20),
	}

	got := BuildContext(results, 100, 9000)

	assert.Contains(t, got, strings.Repeat("x", 100))
	assert.NotContains(t, got, strings.Repeat("x", 101))
}

func TestBuildContext_StopsBeforeTotalCap(t *testing.T) {
	results := []FusedResult{
		codeResult("1", "a.py", "f", "python", strings.Repeat("a", 200), 1, 10),
		codeResult("2", "b.py", "g", "python", strings.Repeat("b", 200), 1, 10),
		codeResult("3", "c.py", "h", "python", strings.Repeat("c", 200), 1, 10),
	}

	got := BuildContext(results, 2000, 500)

	// Only the blocks that fit entirely under the cap are included, and
	// earlier ranks win.
	assert.Contains(t, got, "[a.py:1-10]")
	assert.Contains(t, got, "[b.py:1-10]")
	assert.NotContains(t, got, "[c.py:1-10]")
}

func TestBuildContext_LanguageFallback(t *testing.T) {
	results := []FusedResult{
		codeResult("1", "notes.cfg", "notes.cfg", "", "key=value", 1, 1),
	}

	got := BuildContext(results, 2000, 9000)

	assert.Contains(t, got, "```text\n")
}

func TestBuildContext_SkipsNonCodePayloads(t *testing.T) {
	results := []FusedResult{
		{ID: "m1", Payload: &store.MemoryPayload{Text: "remember this"}},
		codeResult("1", "a.py", "f", "python", "def f(): pass", 1, 1),
	}

	got := BuildContext(results, 2000, 9000)

	assert.NotContains(t, got, "remember this")
	assert.Contains(t, got, "[a.py:1-1]")
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil, 2000, 9000))
}

func TestBuildMemoryNotes(t *testing.T) {
	entries := []*store.MemoryPayload{
		{Text: "User: how does auth work?\nAssistant: token validation in auth.py"},
		{Text: "User: second\nAssistant: note"},
	}

	got := BuildMemoryNotes(entries)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3) // first entry spans two lines
	assert.True(t, strings.HasPrefix(lines[0], "- User: how does auth work?"))
}

func TestBuildMemoryNotes_TruncatesLongEntries(t *testing.T) {
	entries := []*store.MemoryPayload{
		{Text: strings.Repeat("m", 1200)},
	}

	got := BuildMemoryNotes(entries)

	assert.Equal(t, "- "+strings.Repeat("m", 800), got)
}

func TestBuildMemoryNotes_Empty(t *testing.T) {
	assert.Equal(t, "", BuildMemoryNotes(nil))
}
