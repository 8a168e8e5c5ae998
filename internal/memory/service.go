// Package memory turns a routing decision into a budgeted set of stored
// memories: it retrieves candidates from the Store, widens to related
// categories when primary matches are weak, ranks by lexical similarity, and
// packs the result into a fixed token budget.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/observe"
	"github.com/lumenkind/recall/internal/router"
)

// Config tunes a Service. Zero values fall back to the package defaults.
type Config struct {
	TokenBudget   int
	RetrieveLimit int
	RelatedLimit  int
}

// Service retrieves, ranks, and packs memories for routed queries. Safe for
// concurrent use.
type Service struct {
	store         Store
	log           logging.Logger
	budget        int
	retrieveLimit int
	relatedLimit  int
	tracker       *extractionTracker
	wg            sync.WaitGroup
}

// New builds a Service around a Store.
func New(store Store, log logging.Logger, cfg Config) *Service {
	if log == nil {
		log = logging.Nop{}
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if cfg.RetrieveLimit <= 0 {
		cfg.RetrieveLimit = DefaultRetrieveLimit
	}
	if cfg.RelatedLimit <= 0 {
		cfg.RelatedLimit = DefaultRelatedLimit
	}
	return &Service{
		store:         store,
		log:           log,
		budget:        cfg.TokenBudget,
		retrieveLimit: cfg.RetrieveLimit,
		relatedLimit:  cfg.RelatedLimit,
		tracker:       newExtractionTracker(),
	}
}

// Extract returns the memories worth surfacing for a routed query, ordered
// and packed into the token budget, plus the total tokens used. It never
// fails: store errors and internal panics degrade to an empty result with
// zero tokens.
func (s *Service) Extract(ctx context.Context, userID, query string, decision router.RoutingDecision) (selected []RankedMemory, totalTokens int) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "memory.extract")
	defer span.End()

	expanded := false
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("extraction panicked", "panic", r, "user_id", userID, "category", decision.PrimaryCategory)
			selected, totalTokens = nil, 0
		}
		s.tracker.record(decision.PrimaryCategory, len(selected), totalTokens, expanded, time.Since(start))
		span.SetAttributes(
			observe.String("category", decision.PrimaryCategory),
			observe.Int("selected", len(selected)),
			observe.Int("tokens", totalTokens),
		)
	}()

	norm := strings.ToLower(strings.TrimSpace(query))
	profile := router.ExtractSignals(query)

	records := s.fetchPrimary(ctx, userID, decision.PrimaryCategory, norm, profile)
	candidates := tagPrimary(norm, records)

	if needsExpansion(candidates) {
		expanded = true
		candidates = append(candidates, s.expandRelated(ctx, userID, decision.PrimaryCategory, norm)...)
	}

	rankCandidates(candidates)
	selected, totalTokens = s.packBudget(candidates)
	return selected, totalTokens
}

// Stats returns a snapshot of the extraction counters.
func (s *Service) Stats() ExtractionSnapshot {
	return s.tracker.snapshot()
}

// ResetStats zeroes the extraction counters.
func (s *Service) ResetStats() {
	s.tracker.reset()
}

// Close waits for in-flight access-time updates to finish. Call once no more
// extractions are running.
func (s *Service) Close() {
	s.wg.Wait()
}
