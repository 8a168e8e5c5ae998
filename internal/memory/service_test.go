package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/router"
)

type stubStore struct {
	mu       sync.Mutex
	records  map[string][]MemoryRecord
	related  map[string][]string
	queries  []string
	marked   []string
	queryErr error
	panics   bool
}

func (s *stubStore) Query(_ context.Context, _, category string, spec FilterSpec) ([]MemoryRecord, error) {
	s.mu.Lock()
	s.queries = append(s.queries, category)
	s.mu.Unlock()
	if s.panics {
		panic("store exploded")
	}
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]MemoryRecord, 0)
	for _, rec := range s.records[category] {
		if rec.RelevanceScore <= spec.MinRelevance {
			continue
		}
		out = append(out, rec)
		if spec.Limit > 0 && len(out) == spec.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) MarkAccessed(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, recordID)
	return nil
}

func (s *stubStore) RelatedCategories(category string) []string {
	return s.related[category]
}

func (s *stubStore) queriedCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func rec(id, category, content string, rel float64) MemoryRecord {
	return MemoryRecord{
		ID:             id,
		OwnerID:        "u1",
		Category:       category,
		Content:        content,
		TokenCount:     20,
		RelevanceScore: rel,
	}
}

func healthDecision() router.RoutingDecision {
	return router.RoutingDecision{
		PrimaryCategory: "health_wellness",
		Subcategory:     "General",
		Confidence:      0.9,
	}
}

func TestExtractRanksPrimaryCandidates(t *testing.T) {
	store := &stubStore{
		records: map[string][]MemoryRecord{
			"health_wellness": {
				rec("far", "health_wellness", "bought new running shoes", 0.9),
				rec("near", "health_wellness", "doctor visit about headaches and stress", 0.9),
				rec("close", "health_wellness", "headaches after long days", 0.9),
			},
		},
	}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	selected, total := svc.Extract(context.Background(), "u1", "doctor headaches stress", healthDecision())
	if len(selected) != 3 {
		t.Fatalf("selected %d memories, want 3", len(selected))
	}
	if selected[0].ID != "near" {
		t.Fatalf("best candidate = %q, want near", selected[0].ID)
	}
	if selected[0].Source != SourcePrimary {
		t.Fatalf("source = %q, want %q", selected[0].Source, SourcePrimary)
	}
	if total != 60 {
		t.Fatalf("total tokens = %d, want 60", total)
	}
	if calls := store.queriedCategories(); len(calls) != 1 {
		t.Fatalf("store queried %v, want primary category only", calls)
	}
}

func TestExtractExpandsWeakPrimaryOnce(t *testing.T) {
	store := &stubStore{
		records: map[string][]MemoryRecord{
			"health_wellness": {
				rec("only", "health_wellness", "doctor visit about headaches and stress", 0.9),
				rec("noise", "health_wellness", "bought new running shoes", 0.9),
			},
			"mental_emotional": {
				rec("adjacent", "mental_emotional", "stress at work lately", 0.9),
				rec("offtopic", "mental_emotional", "grocery list for sunday", 0.9),
			},
			"personal_life_interests": {
				rec("hobby", "personal_life_interests", "weekend pottery class", 0.9),
			},
		},
		related: map[string][]string{
			"health_wellness": {"mental_emotional", "personal_life_interests"},
		},
	}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	selected, _ := svc.Extract(context.Background(), "u1", "doctor headaches stress", healthDecision())

	calls := store.queriedCategories()
	if len(calls) != 3 || calls[0] != "health_wellness" {
		t.Fatalf("store calls %v, want primary then both related categories", calls)
	}
	var relatedFound bool
	for _, m := range selected {
		if m.ID == "adjacent" {
			relatedFound = true
			if m.Source != SourceRelated {
				t.Fatalf("adjacent tagged %q, want %q", m.Source, SourceRelated)
			}
		}
		if m.ID == "offtopic" || m.ID == "hobby" {
			t.Fatalf("dissimilar related candidate %q survived", m.ID)
		}
	}
	if !relatedFound {
		t.Fatalf("expected related candidate in %v", ids(selected))
	}
	if stats := svc.Stats(); stats.FallbackExpansions != 1 {
		t.Fatalf("fallback expansions = %d, want 1", stats.FallbackExpansions)
	}
}

func TestExtractSkipsExpansionWithStrongPrimary(t *testing.T) {
	store := &stubStore{
		records: map[string][]MemoryRecord{
			"health_wellness": {
				rec("a", "health_wellness", "doctor visit about headaches and stress", 0.9),
				rec("b", "health_wellness", "new doctor prescribed stress medication", 0.9),
			},
		},
		related: map[string][]string{
			"health_wellness": {"mental_emotional"},
		},
	}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	svc.Extract(context.Background(), "u1", "doctor headaches stress", healthDecision())
	if calls := store.queriedCategories(); len(calls) != 1 {
		t.Fatalf("store calls %v, want primary only", calls)
	}
	if stats := svc.Stats(); stats.FallbackExpansions != 0 {
		t.Fatalf("fallback expansions = %d, want 0", stats.FallbackExpansions)
	}
}

func TestExtractDegradesOnStoreError(t *testing.T) {
	store := &stubStore{
		queryErr: errors.New("connection refused"),
		related:  map[string][]string{"health_wellness": {"mental_emotional"}},
	}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	selected, total := svc.Extract(context.Background(), "u1", "doctor headaches stress", healthDecision())
	if len(selected) != 0 || total != 0 {
		t.Fatalf("got %d memories, %d tokens; want empty result", len(selected), total)
	}
	stats := svc.Stats()
	if stats.StoreErrors != 2 {
		t.Fatalf("store errors = %d, want 2 (primary plus one related)", stats.StoreErrors)
	}
	if stats.TotalExtractions != 1 {
		t.Fatalf("total extractions = %d, want 1", stats.TotalExtractions)
	}
}

func TestExtractRecoversFromPanic(t *testing.T) {
	store := &stubStore{panics: true}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	selected, total := svc.Extract(context.Background(), "u1", "doctor headaches stress", healthDecision())
	if len(selected) != 0 || total != 0 {
		t.Fatalf("got %d memories, %d tokens; want empty result", len(selected), total)
	}
	if stats := svc.Stats(); stats.TotalExtractions != 1 {
		t.Fatalf("panicked extraction not recorded: total = %d", stats.TotalExtractions)
	}
}

func TestExtractStatsStreamingMeans(t *testing.T) {
	store := &stubStore{
		records: map[string][]MemoryRecord{
			"health_wellness": {
				rec("a", "health_wellness", "doctor visit about headaches and stress", 0.9),
				rec("b", "health_wellness", "new doctor prescribed stress medication", 0.9),
			},
		},
	}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	ctx := context.Background()
	svc.Extract(ctx, "u1", "doctor headaches stress", healthDecision())
	svc.Extract(ctx, "u1", "doctor headaches stress", healthDecision())

	stats := svc.Stats()
	if stats.TotalExtractions != 2 {
		t.Fatalf("total = %d, want 2", stats.TotalExtractions)
	}
	if stats.AvgMemories != 2.0 {
		t.Fatalf("avg memories = %v, want 2.0", stats.AvgMemories)
	}
	if stats.AvgTokens != 40.0 {
		t.Fatalf("avg tokens = %v, want 40.0", stats.AvgTokens)
	}
	if stats.Categories["health_wellness"] != 2 {
		t.Fatalf("category count = %d, want 2", stats.Categories["health_wellness"])
	}

	svc.ResetStats()
	if stats := svc.Stats(); stats.TotalExtractions != 0 || stats.AvgTokens != 0 {
		t.Fatalf("reset left totals behind: %+v", stats)
	}
}

func TestServiceDefaults(t *testing.T) {
	svc := New(&stubStore{}, nil, Config{})
	if svc.budget != DefaultTokenBudget {
		t.Fatalf("budget = %d, want %d", svc.budget, DefaultTokenBudget)
	}
	if svc.retrieveLimit != DefaultRetrieveLimit {
		t.Fatalf("retrieve limit = %d, want %d", svc.retrieveLimit, DefaultRetrieveLimit)
	}
	if svc.relatedLimit != DefaultRelatedLimit {
		t.Fatalf("related limit = %d, want %d", svc.relatedLimit, DefaultRelatedLimit)
	}
}

func BenchmarkExtract(b *testing.B) {
	records := make([]MemoryRecord, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, rec("m", "health_wellness", "doctor visit about recurring headaches and workplace stress", 0.9))
	}
	store := &stubStore{records: map[string][]MemoryRecord{"health_wellness": records}}
	svc := New(store, logging.Nop{}, Config{})
	defer svc.Close()

	ctx := context.Background()
	decision := healthDecision()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.Extract(ctx, "u1", "doctor headaches stress", decision)
	}
}
