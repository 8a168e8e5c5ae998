package memory

import (
	"context"

	"github.com/lumenkind/recall/internal/router"
)

// DefaultRetrieveLimit caps primary candidate retrieval.
const DefaultRetrieveLimit = 20

// fetchPrimary asks the Store for candidates in the routed category. The
// filter follows the query's signals: extracted nouns widen the match, a
// high emotional tone and personal context widen it further. Store failures
// degrade to an empty result.
func (s *Service) fetchPrimary(ctx context.Context, ownerID, category, norm string, profile router.SignalProfile) []MemoryRecord {
	spec := FilterSpec{
		Nouns:            queryNouns(norm),
		PersonalContext:  profile.PersonalContext,
		ExcludeQuestions: true,
		Sort:             SortBoosted,
		Limit:            s.retrieveLimit,
	}
	if profile.EmotionalTone == router.ToneHigh {
		spec.EmotionalTone = profile.EmotionalTone
	}

	records, err := s.store.Query(ctx, ownerID, category, spec)
	if err != nil {
		s.log.Warn("primary retrieval failed", "owner_id", ownerID, "category", category, "error", err)
		s.tracker.recordStoreError()
		return nil
	}
	return records
}

// tagPrimary scores fetched records against the query and tags them as
// primary-category candidates.
func tagPrimary(norm string, records []MemoryRecord) []RankedMemory {
	out := make([]RankedMemory, 0, len(records))
	for _, rec := range records {
		out = append(out, RankedMemory{
			MemoryRecord:    rec,
			SimilarityScore: similarity(norm, rec.Content),
			Source:          SourcePrimary,
		})
	}
	return out
}
