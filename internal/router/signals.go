package router

import (
	"strings"
	"unicode"
)

// Intent tags produced by signal extraction.
const (
	IntentGeneral             = "general"
	IntentMemoryRecall        = "memory_recall"
	IntentPersonalSharing     = "personal_sharing"
	IntentEmotionalExpression = "emotional_expression"
	IntentInformationSeeking  = "information_seeking"
	IntentTaskRequest         = "task_request"
)

// Emotional tone buckets.
const (
	ToneLow      = "low"
	ToneModerate = "moderate"
	ToneHigh     = "high"
)

// Time context tags.
const (
	TimeImmediate = "immediate"
	TimeRecent    = "recent"
	TimeFuture    = "future"
	TimeGeneral   = "general"
)

// SignalProfile is the semantic fingerprint of one query. Immutable once
// built; cacheable by normalized query text.
type SignalProfile struct {
	Intent           string   `json:"intent"`
	IntentConfidence float64  `json:"intent_confidence"`
	EmotionalWeight  float64  `json:"emotional_weight"`
	EmotionalTone    string   `json:"emotional_tone"`
	PersonalContext  bool     `json:"personal_context"`
	MemoryReference  bool     `json:"memory_reference"`
	UrgencyLevel     float64  `json:"urgency_level"`
	TimeContext      string   `json:"time_context"`
	TopicEntities    []string `json:"topic_entities,omitempty"`
	KeywordDensity   float64  `json:"keyword_density"`
	ComplexityScore  float64  `json:"complexity_score"`
}

type intentRule struct {
	intent string
	weight float64
	terms  []string
}

// Ordered intent rules. The highest-weight matching rule wins; equal weights
// keep the earlier rule.
var intentRules = []intentRule{
	{IntentMemoryRecall, 0.9, []string{
		"remember", "recall", "i told you", "i mentioned", "we talked about",
		"last time", "you said", "you know about",
	}},
	{IntentEmotionalExpression, 0.85, []string{
		"i feel", "i'm feeling", "feeling so", "makes me", "i can't stop",
		"i am so", "it hurts",
	}},
	{IntentPersonalSharing, 0.7, []string{
		"i want to tell you", "guess what", "i just", "my ", "i've been",
		"i have been", "something happened",
	}},
	{IntentTaskRequest, 0.65, []string{
		"remind me", "schedule", "help me", "can you", "please",
	}},
	{IntentInformationSeeking, 0.6, []string{
		"what is", "what are", "how do", "how can", "why does", "when should",
		"where can", "tell me about", "?",
	}},
}

// Emotion lexicon: strongest matching term sets the emotional weight.
var emotionWeights = map[string]float64{
	"suicide":       0.95,
	"suicidal":      0.95,
	"can't take it": 0.9,
	"hopeless":      0.9,
	"devastated":    0.9,
	"heartbroken":   0.9,
	"crisis":        0.85,
	"grief":         0.85,
	"terrified":     0.85,
	"depressed":     0.85,
	"miserable":     0.8,
	"panic":         0.8,
	"furious":       0.8,
	"overwhelmed":   0.75,
	"crying":        0.75,
	"anxious":       0.7,
	"scared":        0.7,
	"lonely":        0.7,
	"angry":         0.7,
	"hate":          0.7,
	"thrilled":      0.7,
	"stressed":      0.65,
	"frustrated":    0.65,
	"excited":       0.65,
	"worried":       0.6,
	"terrible":      0.6,
	"upset":         0.6,
	"sad":           0.6,
	"love":          0.6,
	"happy":         0.5,
	"tired":         0.4,
	"fine":          0.2,
}

var personalMarkers = []string{
	"my ", "our ", "i'm", "i am", "i have", "i've", "me and", "mine",
}

var memoryMarkers = []string{
	"remember", "recall", "you said", "i told you", "i mentioned",
	"we talked", "last time",
}

var urgencyMarkers = []string{
	"right now", "immediately", "urgent", "emergency", "asap", "can't wait",
}

type timeRule struct {
	context string
	terms   []string
}

var timeRules = []timeRule{
	{TimeImmediate, []string{"right now", "immediately", "tonight", "today", "at the moment"}},
	{TimeRecent, []string{"yesterday", "last night", "last week", "this morning", "this week", "recently"}},
	{TimeFuture, []string{"tomorrow", "next week", "next month", "soon", "planning to", "going to"}},
}

type topicRule struct {
	topic string
	terms []string
}

var topicRules = []topicRule{
	{"health", []string{"doctor", "hospital", "pain", "sick", "medication", "symptoms", "therapy", "dentist"}},
	{"work", []string{"job", "boss", "office", "career", "meeting", "project", "interview", "coworker"}},
	{"family", []string{"wife", "husband", "mom", "dad", "family", "kids", "son", "daughter", "sister", "brother", "partner"}},
	{"money", []string{"money", "rent", "debt", "bills", "salary", "loan", "budget", "paycheck"}},
	{"home", []string{"house", "apartment", "home", "kitchen", "garden", "lease", "landlord"}},
}

var signalStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "was": true,
	"one": true, "our": true, "out": true, "get": true, "has": true,
	"had": true, "how": true, "its": true, "may": true, "new": true,
	"now": true, "see": true, "two": true, "way": true, "who": true,
	"did": true, "she": true, "use": true, "that": true, "with": true,
	"have": true, "this": true, "will": true, "your": true, "from": true,
	"they": true, "been": true, "were": true, "what": true, "when": true,
	"just": true, "about": true, "would": true, "there": true, "their": true,
}

// ExtractSignals builds a SignalProfile from a query. Pure and deterministic;
// callers pass raw text and normalization happens here. A blank query yields
// the neutral profile.
func ExtractSignals(query string) SignalProfile {
	q := normalizeQuery(query)
	p := neutralProfile()
	if q == "" {
		return p
	}

	bestWeight := 0.0
	for _, rule := range intentRules {
		if rule.weight > bestWeight && containsAny(q, rule.terms) {
			p.Intent = rule.intent
			p.IntentConfidence = rule.weight
			bestWeight = rule.weight
		}
	}

	for term, weight := range emotionWeights {
		if weight > p.EmotionalWeight && strings.Contains(q, term) {
			p.EmotionalWeight = weight
		}
	}
	switch {
	case p.EmotionalWeight > 0.6:
		p.EmotionalTone = ToneHigh
	case p.EmotionalWeight > 0.3:
		p.EmotionalTone = ToneModerate
	default:
		p.EmotionalTone = ToneLow
	}

	p.PersonalContext = containsAny(q, personalMarkers)
	p.MemoryReference = containsAny(q, memoryMarkers)
	if containsAny(q, urgencyMarkers) {
		p.UrgencyLevel = 0.8
	}

	for _, rule := range timeRules {
		if containsAny(q, rule.terms) {
			p.TimeContext = rule.context
			break
		}
	}

	for _, rule := range topicRules {
		if containsAny(q, rule.terms) {
			p.TopicEntities = append(p.TopicEntities, rule.topic)
		}
	}

	tokens := tokenize(q)
	var long, meaningful int
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		long++
		if !signalStopwords[tok] {
			meaningful++
		}
	}
	if long > 0 {
		p.KeywordDensity = float64(meaningful) / float64(long)
	}
	p.ComplexityScore = minFloat(float64(meaningful)/10.0, 1.0)

	return p
}

func neutralProfile() SignalProfile {
	return SignalProfile{
		Intent:           IntentGeneral,
		IntentConfidence: 0.5,
		EmotionalTone:    ToneLow,
		TimeContext:      TimeGeneral,
	}
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// truncateRunes shortens cache keys the way the decision cache expects: by
// rune count, never splitting a multibyte character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
