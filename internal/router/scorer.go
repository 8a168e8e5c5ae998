package router

import (
	"strings"

	"github.com/lumenkind/recall/internal/taxonomy"
)

// Semantic boost tables, summed per category and then scaled by 8.0.
// The magnitudes are tuned pairs: memory_recall boosts relationships at 3.5,
// emotional_expression boosts mental_emotional at 5.0, personal context
// boosts personal interests at 2.0.
var intentBoosts = map[string]map[string]float64{
	IntentMemoryRecall: {
		taxonomy.Relationships:     3.5,
		taxonomy.PersonalInterests: 2.5,
		taxonomy.MentalEmotional:   1.5,
	},
	IntentEmotionalExpression: {
		taxonomy.MentalEmotional: 5.0,
		taxonomy.Relationships:   1.5,
		taxonomy.HealthWellness:  1.0,
	},
	IntentPersonalSharing: {
		taxonomy.PersonalInterests: 2.5,
		taxonomy.Relationships:     2.0,
		taxonomy.MentalEmotional:   1.0,
	},
	IntentInformationSeeking: {
		taxonomy.HealthWellness:  0.5,
		taxonomy.WorkCareer:      0.5,
		taxonomy.MoneyIncomeDebt: 0.5,
	},
	IntentTaskRequest: {
		taxonomy.WorkCareer:      1.0,
		taxonomy.HomeEnvironment: 0.5,
	},
}

// Applied when emotional weight exceeds 0.6.
var emotionBoosts = map[string]float64{
	taxonomy.MentalEmotional: 2.0,
	taxonomy.HealthWellness:  0.8,
	taxonomy.Relationships:   0.5,
}

// Applied when the query carries personal context.
var personalBoosts = map[string]float64{
	taxonomy.PersonalInterests: 2.0,
	taxonomy.Relationships:     1.5,
	taxonomy.MentalEmotional:   0.8,
}

var personalOverrideCategories = map[string]bool{
	taxonomy.PersonalInterests: true,
	taxonomy.Relationships:     true,
	taxonomy.MentalEmotional:   true,
}

// categoryScore is one category's computed score plus the match detail that
// feeds the decision reasoning.
type categoryScore struct {
	id            string
	score         float64
	keywordCount  int
	patternCount  int
	semanticBoost float64
}

// scoreCategories computes the weighted score of every taxonomy category for
// a normalized query. Order of the returned slice follows taxonomy definition
// order; the router sorts it.
func scoreCategories(q string, p SignalProfile, tax *taxonomy.Taxonomy) []categoryScore {
	out := make([]categoryScore, 0, len(tax.Categories))
	for i := range tax.Categories {
		c := &tax.Categories[i]
		cs := categoryScore{id: c.ID}

		cs.semanticBoost = semanticBoost(c.ID, p)
		score := cs.semanticBoost * 8.0

		for _, kw := range c.Keywords {
			if strings.Contains(q, kw) {
				score += 0.3 * c.Weight
				cs.keywordCount++
			}
		}
		for _, pat := range c.Patterns {
			if strings.Contains(q, pat) {
				score += 0.5 * c.Weight
				cs.patternCount++
			}
		}

		score += tax.AlignmentBoost(c.ID, p.TopicEntities)

		if c.Priority == taxonomy.PriorityHigh && p.UrgencyLevel > 0.5 {
			score += 1.0
		}
		if cs.keywordCount > 1 {
			score += minFloat(0.2*float64(cs.keywordCount), 1.0)
		}

		cs.score = score
		out = append(out, cs)
	}

	applyScoreOverrides(out, p)
	return out
}

// semanticBoost sums the three signal tables for one category.
func semanticBoost(categoryID string, p SignalProfile) float64 {
	var boost float64
	if table, ok := intentBoosts[p.Intent]; ok {
		boost += table[categoryID]
	}
	if p.EmotionalWeight > 0.6 {
		boost += emotionBoosts[categoryID]
	}
	if p.PersonalContext {
		boost += personalBoosts[categoryID]
	}
	return boost
}

// applyScoreOverrides rewrites scores per the override ladder: the first rule
// that matches a category wins, then the personal-recall adjustment rescales
// the two social categories. Scores never go negative.
func applyScoreOverrides(scores []categoryScore, p SignalProfile) {
	for i := range scores {
		cs := &scores[i]
		switch {
		case p.PersonalContext && p.EmotionalWeight > 0.6 &&
			(p.Intent == IntentPersonalSharing || p.Intent == IntentMemoryRecall):
			if personalOverrideCategories[cs.id] {
				cs.score = 10.0 + p.EmotionalWeight*5.0
			} else {
				cs.score = minFloat(cs.score*0.2, 1.0)
			}
		case p.Intent == IntentEmotionalExpression && p.EmotionalWeight > 0.7 &&
			cs.id == taxonomy.MentalEmotional:
			cs.score = 12.0 + p.EmotionalWeight*3.0
		case p.Intent == IntentMemoryRecall && p.MemoryReference &&
			personalOverrideCategories[cs.id]:
			cs.score += 5.0
		}
	}

	if p.PersonalContext && p.Intent == IntentMemoryRecall {
		for i := range scores {
			switch scores[i].id {
			case taxonomy.Relationships:
				scores[i].score *= 1.5
			case taxonomy.MentalEmotional:
				scores[i].score *= 0.85
			}
		}
	}

	for i := range scores {
		if scores[i].score < 0 {
			scores[i].score = 0
		}
	}
}
