package memory

import "context"

// Fallback expansion tunables.
const (
	// strongSimilarity is the similarity above which a primary candidate
	// counts as a strong match.
	strongSimilarity = 0.3
	// minStrongPrimary is how many strong primary candidates suppress the
	// related-category expansion.
	minStrongPrimary = 2
	// relatedKeepSimilarity is the similarity floor for expanded candidates.
	relatedKeepSimilarity = 0.2
	// DefaultRelatedLimit caps records fetched per related category.
	DefaultRelatedLimit = 5
)

// needsExpansion reports whether primary results are too weak to stand
// alone.
func needsExpansion(primary []RankedMemory) bool {
	strong := 0
	for _, m := range primary {
		if m.SimilarityScore > strongSimilarity {
			strong++
		}
	}
	return strong < minStrongPrimary
}

// expandRelated widens retrieval to the categories adjacent to the routed
// one. Each related category contributes at most relatedLimit records with
// relevance above 0.3; only candidates similar enough to the query survive.
// Runs at most once per extraction.
func (s *Service) expandRelated(ctx context.Context, ownerID, category, norm string) []RankedMemory {
	related := s.store.RelatedCategories(category)
	if len(related) == 0 {
		return nil
	}

	var out []RankedMemory
	for _, rc := range related {
		records, err := s.store.Query(ctx, ownerID, rc, FilterSpec{
			MinRelevance:     0.3,
			ExcludeQuestions: true,
			Sort:             SortRelevance,
			Limit:            s.relatedLimit,
		})
		if err != nil {
			s.log.Warn("related retrieval failed", "owner_id", ownerID, "category", rc, "error", err)
			s.tracker.recordStoreError()
			continue
		}
		for _, rec := range records {
			sim := similarity(norm, rec.Content)
			if sim <= relatedKeepSimilarity {
				continue
			}
			out = append(out, RankedMemory{
				MemoryRecord:    rec,
				SimilarityScore: sim,
				Source:          SourceRelated,
			})
		}
	}
	return out
}
