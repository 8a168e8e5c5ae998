package memory

import (
	"context"
	"time"
)

// DefaultTokenBudget is the packing budget applied when the caller
// configures none.
const DefaultTokenBudget = 2400

const (
	// reservePercent of the budget is withheld from the main pass and spent
	// on high-value candidates.
	reservePercent = 15
	// highValueThreshold gates reserve admission.
	highValueThreshold = 0.8

	markAccessedTimeout = 5 * time.Second
)

// tokenCost is a candidate's budget charge: the stored token count when
// present, otherwise a four-characters-per-token estimate of the content.
func tokenCost(m MemoryRecord) int {
	if m.TokenCount > 0 {
		return m.TokenCount
	}
	return (len(m.Content) + 3) / 4
}

// highValue scores a candidate for reserve admission. Similarity dominates;
// relevance and usage frequency round it out.
func highValue(m RankedMemory) float64 {
	rel := m.RelevanceScore
	if rel < 0 {
		rel = 0
	} else if rel > 1 {
		rel = 1
	}
	usage := float64(m.UsageFrequency) / 10.0
	if usage > 1 {
		usage = 1
	}
	return m.SimilarityScore*0.6 + rel*0.3 + usage*0.1
}

// packBudget selects ranked candidates into the token budget in three
// passes. The main pass fills budget minus reserve in rank order and stops
// at the first candidate that would overflow. The reserve pass admits
// unselected high-value candidates, each judged against the slack left by
// the main pass alone, and marks every admitted record accessed. Because
// that judgment is per candidate, several admissions can collectively
// overflow; the final pass re-walks the whole selection against the full
// budget from zero and truncates at the first overflow.
func (s *Service) packBudget(ranked []RankedMemory) ([]RankedMemory, int) {
	budget := s.budget
	reserve := budget * reservePercent / 100
	mainBudget := budget - reserve

	selected := make([]RankedMemory, 0, len(ranked))
	chosen := make([]bool, len(ranked))
	mainUsed := 0
	for i, m := range ranked {
		cost := tokenCost(m.MemoryRecord)
		if mainUsed+cost > mainBudget {
			break
		}
		selected = append(selected, m)
		chosen[i] = true
		mainUsed += cost
	}

	for i, m := range ranked {
		if chosen[i] || highValue(m) <= highValueThreshold {
			continue
		}
		if mainUsed+tokenCost(m.MemoryRecord) > budget {
			continue
		}
		selected = append(selected, m)
		chosen[i] = true
		s.markAccessed(m.ID)
	}

	total := 0
	cut := len(selected)
	for i, m := range selected {
		cost := tokenCost(m.MemoryRecord)
		if total+cost > budget {
			cut = i
			break
		}
		total += cost
	}
	return selected[:cut], total
}

// markAccessed bumps a record's usage counters in the background. Failures
// are logged and counted, never surfaced to the extraction caller.
func (s *Service) markAccessed(recordID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), markAccessedTimeout)
		defer cancel()
		if err := s.store.MarkAccessed(ctx, recordID); err != nil {
			s.log.Warn("mark accessed failed", "record_id", recordID, "error", err)
			s.tracker.recordMarkFailure()
		}
	}()
}
