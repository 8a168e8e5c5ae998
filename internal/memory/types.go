package memory

import (
	"context"
	"time"
)

// Source tags on ranked memories.
const (
	SourcePrimary = "primary_category"
	SourceRelated = "related_category"
)

// Sort modes a FilterSpec can request from the Store.
const (
	// SortBoosted orders by informational-content boost, proper-noun/number
	// boost, interrogative penalty, relevance, then recency.
	SortBoosted = "boosted"
	// SortRelevance orders by relevance then recency only.
	SortRelevance = "relevance"
)

// MemoryRecord is one stored memory. Records are owned by the Store; this
// package only reads them and requests access-time updates.
type MemoryRecord struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"owner_id"`
	Category       string            `json:"category"`
	Subcategory    string            `json:"subcategory,omitempty"`
	Content        string            `json:"content"`
	TokenCount     int               `json:"token_count"`
	RelevanceScore float64           `json:"relevance_score"`
	UsageFrequency int               `json:"usage_frequency"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// RankedMemory is a retrieval candidate scored against the query.
type RankedMemory struct {
	MemoryRecord
	SimilarityScore float64 `json:"similarity_score"`
	Source          string  `json:"source"`
}

// FilterSpec is the structured filter/sort contract handed to the Store. It
// carries semantics, never query-language fragments.
type FilterSpec struct {
	// Nouns OR-widen the match: a record qualifies when any noun appears in
	// its content. Empty means no content filter.
	Nouns []string
	// EmotionalTone and PersonalContext widen Nouns with tone and
	// relationship terms; they never narrow the result.
	EmotionalTone   string
	PersonalContext bool
	// MinRelevance is an exclusive lower bound on relevanceScore.
	MinRelevance float64
	// ExcludeQuestions drops records that are pure question phrasing with no
	// factual-statement phrasing.
	ExcludeQuestions bool
	// Sort selects one of the sort modes above; empty means SortRelevance.
	Sort string
	// Limit caps the result count; <=0 means the store default.
	Limit int
}

// Store is the persistent collaborator queried for candidates. Query and
// MarkAccessed may fail; callers degrade to empty results and log.
// RelatedCategories serves the static adjacency table.
type Store interface {
	Query(ctx context.Context, ownerID, category string, spec FilterSpec) ([]MemoryRecord, error)
	MarkAccessed(ctx context.Context, recordID string) error
	RelatedCategories(category string) []string
}
