package memory

import (
	"sort"
	"strings"
)

// rankTieBand is the tolerance inside which two similarity or relevance
// scores count as tied and the comparison falls through to the next key.
const rankTieBand = 0.1

// similarity scores how well content matches the query, in [0,1]. Each query
// word earns 1 point for an exact word match or 0.5 for appearing inside a
// longer content word; the total is normalized by the query word count.
func similarity(query, content string) float64 {
	qWords := meaningfulWords(query)
	if len(qWords) == 0 {
		return 0
	}
	cWords := meaningfulWords(content)
	cSet := make(map[string]struct{}, len(cWords))
	for _, w := range cWords {
		cSet[w] = struct{}{}
	}

	var points float64
	for _, qw := range qWords {
		if _, ok := cSet[qw]; ok {
			points++
			continue
		}
		for _, cw := range cWords {
			if len(cw) >= 3 && strings.Contains(cw, qw) {
				points += 0.5
				break
			}
		}
	}
	return points / float64(len(qWords))
}

// rankCandidates orders candidates in place: similarity, then relevance
// (each with the tie band), then primary source before related, then usage
// frequency. The sort is stable so tied candidates keep retrieval order.
func rankCandidates(candidates []RankedMemory) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return rankLess(candidates[i], candidates[j])
	})
}

func rankLess(a, b RankedMemory) bool {
	if d := a.SimilarityScore - b.SimilarityScore; d > rankTieBand {
		return true
	} else if d < -rankTieBand {
		return false
	}
	if d := a.RelevanceScore - b.RelevanceScore; d > rankTieBand {
		return true
	} else if d < -rankTieBand {
		return false
	}
	if a.Source != b.Source {
		return a.Source == SourcePrimary
	}
	return a.UsageFrequency > b.UsageFrequency
}
