package extract

import (
	"fmt"
	"strings"
)

// WindowUnits tiles a file with fixed-size overlapping line windows and
// emits one FileChunk unit per window. Windows are length chunkLines with
// overlap shared lines between consecutive windows; the step is
// max(1, chunkLines-overlap). The final window may be shorter, and the
// union of all windows covers [1, N] exactly.
//
// This pass always runs, independent of syntactic success, so content the
// parser cannot recognize is still retrievable.
func WindowUnits(relPath, content, language string, chunkLines, overlap int) []RetrievalUnit {
	lines := splitLines(content)
	n := len(lines)
	if n == 0 {
		return nil
	}

	if chunkLines < 1 {
		chunkLines = 1
	}
	step := chunkLines - overlap
	if step < 1 {
		step = 1
	}

	var units []RetrievalUnit
	for start := 0; start < n; start += step {
		end := start + chunkLines
		if end > n {
			end = n
		}

		units = append(units, RetrievalUnit{
			FilePath:          relPath,
			Type:              UnitTypeFileChunk,
			Name:              fmt.Sprintf("%s::chunk_%d_%d", relPath, start+1, end),
			Symbol:            "", // a window spans arbitrary declarations
			StartLine:         start + 1,
			EndLine:           end,
			Code:              strings.Join(lines[start:end], "\n"),
			PrecedingComments: []string{},
			Language:          language,
		})

		if end == n {
			break
		}
	}
	return units
}

// splitLines splits content into lines without a phantom empty line from a
// trailing newline.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}
