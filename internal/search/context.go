package search

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/coderag/internal/store"
)

// memoryNoteChars caps each rendered memory line.
const memoryNoteChars = 800

// BuildContext renders fused results into a grounding-context string for a
// downstream consumer. Each hit becomes a fenced block headed by its
// location; blocks are added in rank order until the next one would push
// the total past maxContextChars.
func BuildContext(results []FusedResult, maxCodeChars, maxContextChars int) string {
	var parts []string
	total := 0

	for _, result := range results {
		payload, ok := result.Payload.(*store.CodePayload)
		if !ok {
			continue
		}

		code := payload.Code
		if maxCodeChars > 0 && len(code) > maxCodeChars {
			code = code[:maxCodeChars]
		}
		language := payload.Language
		if language == "" {
			language = "text"
		}

		block := fmt.Sprintf("[%s:%d-%d]  %s\n```%s\n%s\n```",
			payload.File, payload.StartLine, payload.EndLine, payload.Name, language, code)

		if maxContextChars > 0 && total+len(block) > maxContextChars {
			break
		}
		parts = append(parts, block)
		total += len(block)
	}

	return strings.Join(parts, "\n\n")
}

// BuildMemoryNotes renders recalled memory entries as a bullet list.
func BuildMemoryNotes(entries []*store.MemoryPayload) string {
	if len(entries) == 0 {
		return ""
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		text := entry.Text
		if len(text) > memoryNoteChars {
			text = text[:memoryNoteChars]
		}
		lines = append(lines, "- "+text)
	}
	return strings.Join(lines, "\n")
}
