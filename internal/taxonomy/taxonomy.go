// Package taxonomy defines the category universe queries are routed into:
// category keyword/pattern tables, per-category subcategory rules, the
// topic-to-category alignment weights, and the related-category adjacency used
// for fallback retrieval. The built-in default can be replaced from a YAML
// file, optionally watched for changes.
package taxonomy

import (
	"fmt"
	"strings"
)

// Priority buckets a category for urgency boosting.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// SubcategoryRule labels a query when any of its terms appears. Rules are
// evaluated in order; the first hit wins.
type SubcategoryRule struct {
	Label string   `yaml:"label"`
	Terms []string `yaml:"terms"`
}

// Category is one routing target.
type Category struct {
	ID            string            `yaml:"id"`
	Keywords      []string          `yaml:"keywords"`
	Patterns      []string          `yaml:"patterns"`
	Weight        float64           `yaml:"weight"`
	Priority      Priority          `yaml:"priority"`
	Subcategories []SubcategoryRule `yaml:"subcategories"`
}

// Taxonomy is the full routing universe.
type Taxonomy struct {
	Categories []Category                    `yaml:"categories"`
	Related    map[string][]string           `yaml:"related"`
	Alignment  map[string]map[string]float64 `yaml:"alignment"`

	byID map[string]*Category
}

// Category ids of the default taxonomy. Exported because override rules in the
// router address them by name.
const (
	HealthWellness    = "health_wellness"
	MentalEmotional   = "mental_emotional"
	Relationships     = "relationships_social"
	WorkCareer        = "work_career"
	MoneyIncomeDebt   = "money_income_debt"
	HomeEnvironment   = "home_environment"
	PersonalInterests = "personal_life_interests"
)

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t := &Taxonomy{
		Categories: []Category{
			{
				ID:       HealthWellness,
				Weight:   1.2,
				Priority: PriorityHigh,
				Keywords: []string{
					"health", "doctor", "pain", "sick", "medication", "sleep",
					"diet", "exercise", "symptoms", "injury", "hospital", "appointment",
				},
				Patterns: []string{
					"feel sick", "not feeling well", "doctor appointment", "in pain",
					"trouble sleeping",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Sleep", Terms: []string{"sleep", "insomnia", "tired"}},
					{Label: "Pain & Recovery", Terms: []string{"pain", "injury", "hurt"}},
					{Label: "Fitness & Diet", Terms: []string{"diet", "exercise", "workout"}},
					{Label: "Medical Care", Terms: []string{"doctor", "medication", "hospital", "appointment"}},
				},
			},
			{
				ID:       MentalEmotional,
				Weight:   1.3,
				Priority: PriorityHigh,
				Keywords: []string{
					"anxious", "anxiety", "depressed", "stressed", "overwhelmed",
					"therapy", "lonely", "mood", "panic", "grief", "crying",
				},
				Patterns: []string{
					"mental health", "can't cope", "breaking down", "feel hopeless",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Anxiety", Terms: []string{"anxious", "anxiety", "panic"}},
					{Label: "Depression", Terms: []string{"depressed", "depression", "hopeless"}},
					{Label: "Stress", Terms: []string{"stress", "stressed", "overwhelmed"}},
					{Label: "Therapy", Terms: []string{"therapy", "therapist", "counseling"}},
				},
			},
			{
				ID:       Relationships,
				Weight:   1.1,
				Priority: PriorityMedium,
				Keywords: []string{
					"wife", "husband", "partner", "friend", "family", "mom", "dad",
					"marriage", "dating", "kids", "son", "daughter",
				},
				Patterns: []string{
					"my wife", "my husband", "best friend", "family dinner", "my partner",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Partner", Terms: []string{"wife", "husband", "partner", "marriage"}},
					{Label: "Family", Terms: []string{"mom", "dad", "family", "kids", "son", "daughter"}},
					{Label: "Friends", Terms: []string{"friend", "friends"}},
					{Label: "Dating", Terms: []string{"dating", "date"}},
				},
			},
			{
				ID:       WorkCareer,
				Weight:   1.0,
				Priority: PriorityMedium,
				Keywords: []string{
					"job", "work", "boss", "career", "office", "interview",
					"promotion", "coworker", "meeting", "project", "deadline",
				},
				Patterns: []string{
					"at work", "my boss", "job interview", "new job",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Job Search", Terms: []string{"interview", "application", "resume"}},
					{Label: "Workplace", Terms: []string{"boss", "coworker", "office"}},
					{Label: "Growth", Terms: []string{"promotion", "raise", "career"}},
					{Label: "Projects", Terms: []string{"project", "meeting", "deadline"}},
				},
			},
			{
				ID:       MoneyIncomeDebt,
				Weight:   1.15,
				Priority: PriorityHigh,
				Keywords: []string{
					"money", "debt", "rent", "bills", "salary", "loan", "savings",
					"budget", "broke", "bankruptcy", "paycheck",
				},
				Patterns: []string{
					"can't pay", "pay the bills", "out of money", "short on cash",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Debt", Terms: []string{"debt", "loan", "owe"}},
					{Label: "Bills", Terms: []string{"rent", "bills", "utilities"}},
					{Label: "Budgeting", Terms: []string{"savings", "budget", "saving"}},
					{Label: "Income", Terms: []string{"salary", "income", "paycheck"}},
				},
			},
			{
				ID:       HomeEnvironment,
				Weight:   0.9,
				Priority: PriorityLow,
				Keywords: []string{
					"house", "apartment", "home", "kitchen", "garden", "neighbor",
					"lease", "furniture", "repair", "landlord",
				},
				Patterns: []string{
					"my house", "my apartment", "moving out", "new place",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Repairs", Terms: []string{"repair", "fix", "broken", "leak"}},
					{Label: "Moving", Terms: []string{"moving", "lease", "landlord"}},
					{Label: "Garden", Terms: []string{"garden", "yard", "plants"}},
				},
			},
			{
				ID:       PersonalInterests,
				Weight:   1.0,
				Priority: PriorityLow,
				Keywords: []string{
					"hobby", "travel", "music", "movie", "book", "game", "weekend",
					"vacation", "food", "cooking", "concert",
				},
				Patterns: []string{
					"free time", "my favorite", "on the weekend", "looking forward to",
				},
				Subcategories: []SubcategoryRule{
					{Label: "Travel", Terms: []string{"travel", "vacation", "trip"}},
					{Label: "Entertainment", Terms: []string{"music", "movie", "book", "game", "concert"}},
					{Label: "Food", Terms: []string{"food", "cooking", "recipe", "restaurant"}},
					{Label: "Hobbies", Terms: []string{"hobby", "hobbies", "collecting"}},
				},
			},
		},
		Related: map[string][]string{
			HealthWellness:    {MentalEmotional},
			MentalEmotional:   {HealthWellness, Relationships},
			Relationships:     {PersonalInterests, MentalEmotional},
			WorkCareer:        {MoneyIncomeDebt},
			MoneyIncomeDebt:   {WorkCareer},
			HomeEnvironment:   {PersonalInterests},
			PersonalInterests: {Relationships},
		},
		Alignment: map[string]map[string]float64{
			"health": {HealthWellness: 2.0, MentalEmotional: 0.5},
			"work":   {WorkCareer: 2.0, MoneyIncomeDebt: 0.5},
			"family": {Relationships: 2.0, PersonalInterests: 0.5},
			"money":  {MoneyIncomeDebt: 2.0, WorkCareer: 0.5},
			"home":   {HomeEnvironment: 2.0, PersonalInterests: 0.5},
		},
	}
	t.index()
	return t
}

func (t *Taxonomy) index() {
	t.byID = make(map[string]*Category, len(t.Categories))
	for i := range t.Categories {
		t.byID[t.Categories[i].ID] = &t.Categories[i]
	}
}

// ByID returns the category with the given id, or nil.
func (t *Taxonomy) ByID(id string) *Category {
	return t.byID[id]
}

// IDs returns all category ids in definition order.
func (t *Taxonomy) IDs() []string {
	ids := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// RelatedTo returns the 1-2 categories adjacent to id, used by fallback
// retrieval. Unknown ids have no neighbors.
func (t *Taxonomy) RelatedTo(id string) []string {
	related := t.Related[id]
	out := make([]string, len(related))
	copy(out, related)
	return out
}

// AlignmentBoost sums the topic alignment weights of the given topics toward
// the given category.
func (t *Taxonomy) AlignmentBoost(categoryID string, topics []string) float64 {
	var boost float64
	for _, topic := range topics {
		if weights, ok := t.Alignment[topic]; ok {
			boost += weights[categoryID]
		}
	}
	return boost
}

// Subcategory resolves the subcategory label for a normalized query within a
// category. Rules run in order; the first term hit wins; default "General".
func (t *Taxonomy) Subcategory(categoryID, query string) string {
	c := t.byID[categoryID]
	if c == nil {
		return "General"
	}
	for _, rule := range c.Subcategories {
		for _, term := range rule.Terms {
			if strings.Contains(query, term) {
				return rule.Label
			}
		}
	}
	return "General"
}

// Validate rejects taxonomies that would break routing: empty or duplicate
// ids, non-positive weights, unknown priorities, adjacency to missing
// categories.
func (t *Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("taxonomy has no categories")
	}
	seen := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("category with empty id")
		}
		if seen[id] {
			return fmt.Errorf("duplicate category id %q", id)
		}
		seen[id] = true
		if c.Weight <= 0 {
			return fmt.Errorf("category %q: weight must be positive", id)
		}
		switch c.Priority {
		case PriorityLow, PriorityMedium, PriorityHigh:
		default:
			return fmt.Errorf("category %q: unknown priority %q", id, c.Priority)
		}
	}
	for id, related := range t.Related {
		if !seen[id] {
			return fmt.Errorf("adjacency for unknown category %q", id)
		}
		for _, r := range related {
			if !seen[r] {
				return fmt.Errorf("category %q related to unknown category %q", id, r)
			}
		}
	}
	return nil
}
