package search

import (
	"sort"

	"github.com/Aman-CERP/coderag/internal/store"
)

// DefaultRRFConstant is the default smoothing constant k in 1/(k+rank).
const DefaultRRFConstant = 60

// FusedResult is one merged retrieval hit.
type FusedResult struct {
	ID      string
	Score   float64
	Payload store.Payload
}

// FuseRRF merges ranked result lists with reciprocal rank fusion. A record
// at 1-based rank r in a leg contributes 1/(k+r); its fused score is the
// sum over all legs it appears in. Rank position is the only input: the
// legs' raw scores are on incompatible scales and are ignored, which is
// the point of choosing RRF over score blending.
//
// Legs are processed in the given order. The payload carried through is
// the one from the first leg that saw the record, and score ties keep
// first-encounter order, so the leg order (dense first) pins the output
// deterministically.
func FuseRRF(legs [][]store.ScoredRecord, k, limit int) []FusedResult {
	if k < 1 {
		k = DefaultRRFConstant
	}

	type entry struct {
		id      string
		score   float64
		payload store.Payload
	}

	index := make(map[string]*entry)
	var order []*entry

	for _, leg := range legs {
		for i, record := range leg {
			rank := i + 1
			contribution := 1.0 / float64(k+rank)

			if e, seen := index[record.ID]; seen {
				e.score += contribution
				continue
			}
			e := &entry{id: record.ID, score: contribution, payload: record.Payload}
			index[record.ID] = e
			order = append(order, e)
		}
	}

	// Stable sort over first-encounter order resolves ties.
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].score > order[j].score
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	results := make([]FusedResult, len(order))
	for i, e := range order {
		results[i] = FusedResult{ID: e.id, Score: e.score, Payload: e.payload}
	}
	return results
}
