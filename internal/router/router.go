// Package router turns free-text queries into routing decisions: which
// taxonomy category a query belongs to, with what confidence, refined by a
// ladder of override rules. Decisions and signal profiles are cached in
// bounded insertion-order caches, and every call feeds the routing analytics.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/taxonomy"
)

// cacheKeyLen caps the query portion of cache keys, in runes.
const cacheKeyLen = 100

// RoutingDecision is the routing verdict for one query. Immutable once
// returned.
type RoutingDecision struct {
	PrimaryCategory   string  `json:"primary_category"`
	Subcategory       string  `json:"subcategory"`
	Confidence        float64 `json:"confidence"`
	AlternateCategory string  `json:"alternate_category,omitempty"`
	Reasoning         string  `json:"reasoning"`
	OverrideApplied   bool    `json:"override_applied"`
	IsFallback        bool    `json:"is_fallback"`
}

// Router scores queries against the taxonomy and picks a category. Safe for
// concurrent use; the taxonomy can be swapped at runtime (hot reload), which
// drops both caches.
type Router struct {
	mu        sync.RWMutex
	tax       *taxonomy.Taxonomy
	log       logging.Logger
	decisions *boundedCache[RoutingDecision]
	profiles  *boundedCache[SignalProfile]
	tracker   *routingTracker
}

// New builds a Router. cacheCapacity <= 0 means DefaultCacheCapacity.
func New(tax *taxonomy.Taxonomy, log logging.Logger, cacheCapacity int) *Router {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Router{
		tax:       tax,
		log:       log,
		decisions: newBoundedCache[RoutingDecision](cacheCapacity),
		profiles:  newBoundedCache[SignalProfile](cacheCapacity),
		tracker:   newRoutingTracker(),
	}
}

// Route picks the category for a query. It never fails: blank queries, a
// scoreless taxonomy, or an internal panic all degrade to the fallback
// decision. Results are cached per (query, userID).
func (r *Router) Route(query, userID string) (decision RoutingDecision) {
	start := time.Now()
	outcome := cacheSkip
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("route recovered", "panic", rec, "user", userID)
			decision = fallbackDecision("internal failure")
		}
		r.tracker.record(decision, time.Since(start), outcome)
	}()

	norm := normalizeQuery(query)
	if norm == "" {
		decision = fallbackDecision("empty query")
		return decision
	}

	key := userID + "\x00" + truncateRunes(norm, cacheKeyLen)
	if cached, ok := r.decisions.get(key); ok {
		outcome = cacheHit
		decision = cached
		return decision
	}
	outcome = cacheMiss

	profile := r.profileFor(norm)
	tax := r.taxonomy()
	scores := scoreCategories(norm, profile, tax)
	decision = r.decide(query, norm, profile, scores, tax)
	r.decisions.put(key, decision)
	return decision
}

// Profile returns the signal profile for a query, served from the profile
// cache when possible.
func (r *Router) Profile(query string) SignalProfile {
	norm := normalizeQuery(query)
	if norm == "" {
		return neutralProfile()
	}
	return r.profileFor(norm)
}

func (r *Router) profileFor(norm string) SignalProfile {
	key := truncateRunes(norm, cacheKeyLen)
	if cached, ok := r.profiles.get(key); ok {
		return cached
	}
	p := ExtractSignals(norm)
	r.profiles.put(key, p)
	return p
}

// Stats snapshots the routing analytics.
func (r *Router) Stats() RoutingSnapshot {
	return r.tracker.snapshot()
}

// ResetStats zeroes the routing analytics.
func (r *Router) ResetStats() {
	r.tracker.reset()
}

// Cleanup drops both caches. Operational hook; also used between tests.
func (r *Router) Cleanup() {
	r.decisions.clear()
	r.profiles.clear()
}

// CacheSizes reports current cache occupancy (decisions, profiles).
func (r *Router) CacheSizes() (int, int) {
	return r.decisions.len(), r.profiles.len()
}

// SetTaxonomy swaps the taxonomy and drops both caches, since cached
// decisions were computed against the old category tables.
func (r *Router) SetTaxonomy(tax *taxonomy.Taxonomy) {
	if tax == nil {
		return
	}
	r.mu.Lock()
	r.tax = tax
	r.mu.Unlock()
	r.Cleanup()
	r.log.Info("taxonomy swapped", "categories", len(tax.Categories))
}

// Taxonomy returns the active taxonomy.
func (r *Router) Taxonomy() *taxonomy.Taxonomy {
	return r.taxonomy()
}

func (r *Router) taxonomy() *taxonomy.Taxonomy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tax
}

var properNounRe = regexp.MustCompile(`\b[A-Z][a-z]{2,}\b`)

// hasProperNoun reports a capitalized token in the raw query, ignoring the
// sentence-initial word, which is capitalized in ordinary prose anyway.
func hasProperNoun(raw string) bool {
	for _, loc := range properNounRe.FindAllStringIndex(raw, -1) {
		if loc[0] > 0 {
			return true
		}
	}
	return false
}

var relationshipTerms = []string{"wife", "family", "husband", "pet", "friend"}

// decide converts category scores into the final decision: confidence
// formula, then the override ladder, then subcategory resolution.
func (r *Router) decide(raw, norm string, p SignalProfile, scores []categoryScore, tax *taxonomy.Taxonomy) RoutingDecision {
	sorted := make([]categoryScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	if len(sorted) == 0 || sorted[0].score <= 0 {
		return fallbackDecision("no category scored")
	}

	best := sorted[0]
	var second categoryScore
	if len(sorted) > 1 {
		second = sorted[1]
	}

	confidence := clampFloat(best.score/12.0, 0, 0.6) +
		clampFloat((best.score-second.score)/8.0, 0, 0.2) +
		p.IntentConfidence*0.1
	if best.score > 1.5*second.score {
		confidence += 0.1
	}
	confidence += minFloat(float64(len(p.TopicEntities))*0.05, 0.1)
	confidence = clampFloat(confidence, 0.2, 1.0)

	category := best.id
	overrideApplied := false
	reasons := []string{fmt.Sprintf(
		"intent=%s best=%s(%.2f) second=%s(%.2f) entities=%d",
		p.Intent, best.id, best.score, second.id, second.score, len(p.TopicEntities),
	)}

	apply := func(target string, floor float64, tag string) {
		category = target
		confidence = maxFloat(confidence, floor)
		overrideApplied = true
		reasons = append(reasons, "override="+tag)
	}

	if p.UrgencyLevel > 0.7 && containsAny(norm, []string{"pain", "emergency", "hospital"}) {
		apply(taxonomy.HealthWellness, 0.9, "urgent_health")
	}
	if p.EmotionalWeight > 0.8 && containsAny(norm, []string{"crisis", "suicide", "can't take it"}) {
		apply(taxonomy.MentalEmotional, 0.95, "crisis")
	}
	if containsAny(norm, []string{"broke", "bankruptcy", "can't pay"}) && !strings.HasPrefix(category, "money_") {
		apply(taxonomy.MoneyIncomeDebt, 0.85, "financial_distress")
	}
	if confidence < 0.4 && !overrideApplied && p.PersonalContext && p.EmotionalWeight > 0.3 {
		category = taxonomy.MentalEmotional
		confidence = 0.5
		overrideApplied = true
		reasons = append(reasons, "override=low_confidence_personal")
	}
	if p.PersonalContext && p.Intent == IntentMemoryRecall &&
		(containsAny(norm, relationshipTerms) || hasProperNoun(raw)) {
		apply(taxonomy.Relationships, 0.8, "relationship_memory")
	}

	alternate := ""
	if category != best.id {
		alternate = best.id
	} else if second.id != "" && second.score > 0 {
		alternate = second.id
	}

	return RoutingDecision{
		PrimaryCategory:   category,
		Subcategory:       tax.Subcategory(category, norm),
		Confidence:        confidence,
		AlternateCategory: alternate,
		Reasoning:         strings.Join(reasons, "; "),
		OverrideApplied:   overrideApplied,
		IsFallback:        false,
	}
}

func fallbackDecision(reason string) RoutingDecision {
	return RoutingDecision{
		PrimaryCategory: taxonomy.PersonalInterests,
		Subcategory:     "General",
		Confidence:      0.3,
		Reasoning:       reason,
		IsFallback:      true,
	}
}
