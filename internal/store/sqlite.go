// Package store persists memory records in SQLite and serves the structured
// filter/sort contract the extraction pipeline queries with. Filtering that
// SQL expresses cheaply (owner, category, relevance floor, content terms)
// happens in the WHERE clause; the question-exclusion rule and the boosted
// sort run Go-side over a bounded window of the most relevant rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/taxonomy"
)

// defaultQueryLimit applies when a FilterSpec carries no limit.
const defaultQueryLimit = 20

// fetchFactor widens the SQL window beyond the requested limit so the
// Go-side sort has rows to reorder.
const fetchFactor = 4

// markAccessedTries bounds the retry loop around the access-time update.
const markAccessedTries = 3

// timeLayout is fixed-width, unlike RFC3339Nano, so lexicographic order on
// the timestamp columns matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores memory records in a single-file database.
type SQLite struct {
	db  *sql.DB
	log logging.Logger

	mu sync.Mutex // serializes writes

	taxMu sync.RWMutex
	tax   *taxonomy.Taxonomy
}

// Open creates or opens the database at path and prepares the schema.
func Open(path string, tax *taxonomy.Taxonomy, log logging.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if tax == nil {
		tax = taxonomy.Default()
	}
	if log == nil {
		log = logging.Nop{}
	}

	s := &SQLite{db: db, log: log, tax: tax}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLite) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT NOT NULL DEFAULT 'General',
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			relevance_score REAL NOT NULL DEFAULT 0.5,
			usage_frequency INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			last_accessed_at TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_owner_category
			ON memories(owner_id, category, relevance_score)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetTaxonomy swaps the adjacency source, used when the taxonomy file is
// reloaded at runtime.
func (s *SQLite) SetTaxonomy(tax *taxonomy.Taxonomy) {
	if tax == nil {
		return
	}
	s.taxMu.Lock()
	s.tax = tax
	s.taxMu.Unlock()
}

// RelatedCategories returns the categories adjacent to the given one.
func (s *SQLite) RelatedCategories(category string) []string {
	s.taxMu.RLock()
	defer s.taxMu.RUnlock()
	return s.tax.RelatedTo(category)
}

// toneTerms widen a query when the caller saw a high emotional tone.
var toneTerms = []string{
	"feel", "feeling", "felt", "emotional", "stress", "anxious", "worried",
}

// relationshipTerms widen a query carrying personal context.
var relationshipTerms = []string{
	"family", "friend", "wife", "husband", "partner", "together",
}

// Query returns records matching the filter spec, ordered per its sort mode
// and capped at its limit.
func (s *SQLite) Query(ctx context.Context, ownerID, category string, spec memory.FilterSpec) ([]memory.MemoryRecord, error) {
	limit := spec.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	q := `SELECT id, owner_id, category, subcategory, content, token_count,
		relevance_score, usage_frequency, created_at, last_accessed_at, metadata
		FROM memories
		WHERE owner_id = ? AND category = ? AND relevance_score > ?`
	args := []any{ownerID, category, spec.MinRelevance}

	terms := append([]string(nil), spec.Nouns...)
	if spec.EmotionalTone != "" {
		terms = append(terms, toneTerms...)
	}
	if spec.PersonalContext {
		terms = append(terms, relationshipTerms...)
	}
	if len(terms) > 0 {
		clauses := make([]string, len(terms))
		for i, t := range terms {
			clauses[i] = "content LIKE ?"
			args = append(args, "%"+t+"%")
		}
		q += " AND (" + strings.Join(clauses, " OR ") + ")"
	}
	q += ` ORDER BY relevance_score DESC, created_at DESC LIMIT ?`
	args = append(args, limit*fetchFactor)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	if spec.ExcludeQuestions {
		kept := records[:0]
		for _, rec := range records {
			if !questionWithoutFacts(rec.Content) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if spec.Sort == memory.SortBoosted {
		sortBoosted(records)
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// MarkAccessed bumps a record's usage counter and access time. Transient
// write failures (a concurrently held write lock, mostly) are retried with
// exponential backoff; a missing record fails immediately.
func (s *SQLite) MarkAccessed(ctx context.Context, recordID string) error {
	op := func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := s.db.ExecContext(ctx, `
			UPDATE memories
			SET usage_frequency = usage_frequency + 1, last_accessed_at = ?
			WHERE id = ?
		`, time.Now().UTC().Format(timeLayout), recordID)
		if err != nil {
			return struct{}{}, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return struct{}{}, backoff.Permanent(fmt.Errorf("record %q not found", recordID))
		}
		return struct{}{}, nil
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(markAccessedTries),
	)
	if err != nil {
		return fmt.Errorf("mark accessed: %w", err)
	}
	return nil
}

// Insert stores a record, minting an id and defaulting timestamps and
// subcategory when absent.
func (s *SQLite) Insert(ctx context.Context, rec memory.MemoryRecord) error {
	if strings.TrimSpace(rec.Content) == "" {
		return fmt.Errorf("insert memory: empty content")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Subcategory == "" {
		rec.Subcategory = "General"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.LastAccessedAt.IsZero() {
		rec.LastAccessedAt = rec.CreatedAt
	}
	meta := "{}"
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, owner_id, category, subcategory, content,
			token_count, relevance_score, usage_frequency, created_at,
			last_accessed_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.OwnerID, rec.Category, rec.Subcategory, rec.Content,
		rec.TokenCount, rec.RelevanceScore, rec.UsageFrequency,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.LastAccessedAt.UTC().Format(timeLayout),
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// Get returns one record by id.
func (s *SQLite) Get(ctx context.Context, recordID string) (memory.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, category, subcategory, content, token_count,
			relevance_score, usage_frequency, created_at, last_accessed_at, metadata
		FROM memories WHERE id = ?
	`, recordID)
	if err != nil {
		return memory.MemoryRecord{}, fmt.Errorf("get memory: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return memory.MemoryRecord{}, err
	}
	if len(records) == 0 {
		return memory.MemoryRecord{}, fmt.Errorf("get memory: record %q not found", recordID)
	}
	return records[0], nil
}

// CategoryCounts returns how many records each category holds.
func (s *SQLite) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM memories GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return counts, nil
}

func scanRecords(rows *sql.Rows) ([]memory.MemoryRecord, error) {
	records := make([]memory.MemoryRecord, 0)
	for rows.Next() {
		var rec memory.MemoryRecord
		var createdAt, accessedAt, meta string
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.Category,
			&rec.Subcategory,
			&rec.Content,
			&rec.TokenCount,
			&rec.RelevanceScore,
			&rec.UsageFrequency,
			&createdAt,
			&accessedAt,
			&meta,
		); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		rec.LastAccessedAt = parseTimestamp(accessedAt)
		rec.Metadata = parseMetadata(meta)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return records, nil
}

func parseMetadata(raw string) map[string]string {
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil
	}
	var meta map[string]string
	parsed.ForEach(func(key, value gjson.Result) bool {
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[key.String()] = value.String()
		return true
	})
	return meta
}

// Boosted-sort scoring. Records stating facts about the user outrank bare
// questions; names and numbers usually mean specifics worth surfacing.

var informationalMarkers = []string{
	" is ", " was ", " has ", " have ", " my ", "prefer", "like", "love",
	"live", "work",
}

var interrogativeOpeners = []string{
	"what ", "when ", "where ", "who ", "why ", "how ", "did ", "do ",
	"does ", "can ", "could ", "would ", "should ", "are ", "is ",
}

func informationalCount(content string) int {
	c := " " + strings.ToLower(content) + " "
	n := 0
	for _, m := range informationalMarkers {
		if strings.Contains(c, m) {
			n++
		}
	}
	return n
}

func isInterrogative(content string) bool {
	c := strings.ToLower(strings.TrimSpace(content))
	if strings.Contains(c, "?") {
		return true
	}
	for _, o := range interrogativeOpeners {
		if strings.HasPrefix(c, o) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// questionWithoutFacts is the exclusion rule: pure question phrasing with no
// factual-statement phrasing.
func questionWithoutFacts(content string) bool {
	return isInterrogative(content) && informationalCount(content) == 0 && !containsDigit(content)
}

// specificsCount counts capitalized words past the sentence start, plus one
// when the content carries any digit.
func specificsCount(content string) int {
	n := 0
	for i, w := range strings.Fields(content) {
		if i == 0 {
			continue
		}
		r := []rune(w)[0]
		if unicode.IsUpper(r) {
			n++
		}
	}
	if containsDigit(content) {
		n++
	}
	return n
}

func sortBoosted(records []memory.MemoryRecord) {
	type scored struct {
		rec       memory.MemoryRecord
		info      int
		specifics int
		question  bool
	}
	scores := make([]scored, len(records))
	for i, rec := range records {
		scores[i] = scored{
			rec:       rec,
			info:      informationalCount(rec.Content),
			specifics: specificsCount(rec.Content),
			question:  isInterrogative(rec.Content),
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.info != b.info {
			return a.info > b.info
		}
		if a.specifics != b.specifics {
			return a.specifics > b.specifics
		}
		if a.question != b.question {
			return !a.question
		}
		if a.rec.RelevanceScore != b.rec.RelevanceScore {
			return a.rec.RelevanceScore > b.rec.RelevanceScore
		}
		return a.rec.CreatedAt.After(b.rec.CreatedAt)
	})
	for i := range scores {
		records[i] = scores[i].rec
	}
}

// parseTimestamp tolerates the layouts legacy exports carry.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
