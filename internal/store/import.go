package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lumenkind/recall/internal/memory"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportJSON loads legacy memory exports. Three shapes are accepted: a
// top-level array of records, {"memories": [...]}, and {"users": {"<owner>":
// [...]}} where the owner id comes from the object key. Records with no
// content or no resolvable owner are skipped, not fatal.
func (s *SQLite) ImportJSON(ctx context.Context, path string) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read import file: %w", err)
	}
	root := gjson.ParseBytes(data)

	var result ImportResult
	importItems := func(items gjson.Result, owner string) error {
		var insertErr error
		items.ForEach(func(_, item gjson.Result) bool {
			rec := recordFromJSON(item)
			if rec.OwnerID == "" {
				rec.OwnerID = owner
			}
			if rec.Content == "" || rec.OwnerID == "" || rec.Category == "" {
				result.Skipped++
				return true
			}
			if err := s.Insert(ctx, rec); err != nil {
				insertErr = err
				return false
			}
			result.Imported++
			return true
		})
		return insertErr
	}

	switch {
	case root.IsArray():
		err = importItems(root, "")
	case root.Get("memories").IsArray():
		err = importItems(root.Get("memories"), "")
	case root.Get("users").IsObject():
		root.Get("users").ForEach(func(owner, items gjson.Result) bool {
			err = importItems(items, owner.String())
			return err == nil
		})
	default:
		return ImportResult{}, fmt.Errorf("import: unrecognized document shape")
	}
	if err != nil {
		return result, fmt.Errorf("import: %w", err)
	}

	s.log.Info("import finished", "path", path, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

func recordFromJSON(item gjson.Result) memory.MemoryRecord {
	rec := memory.MemoryRecord{
		ID:             item.Get("id").String(),
		OwnerID:        firstString(item, "owner_id", "ownerId", "user_id", "userId"),
		Category:       item.Get("category").String(),
		Subcategory:    firstString(item, "subcategory", "sub_category"),
		Content:        firstString(item, "content", "text", "memory"),
		TokenCount:     int(firstNumber(item, "token_count", "tokenCount", "tokens")),
		RelevanceScore: firstNumber(item, "relevance_score", "relevanceScore", "relevance", "importance"),
		UsageFrequency: int(firstNumber(item, "usage_frequency", "usageFrequency", "access_count", "accessCount")),
		CreatedAt:      timestampFromJSON(item, "created_at", "createdAt", "timestamp"),
		LastAccessedAt: timestampFromJSON(item, "last_accessed_at", "lastAccessedAt", "last_accessed"),
		Metadata:       metadataFromJSON(item.Get("metadata")),
	}
	if rec.RelevanceScore <= 0 {
		rec.RelevanceScore = 0.5
	}
	if rec.RelevanceScore > 1 {
		rec.RelevanceScore = 1
	}
	return rec
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstNumber(item gjson.Result, keys ...string) float64 {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() {
			return v.Float()
		}
	}
	return 0
}

func timestampFromJSON(item gjson.Result, keys ...string) time.Time {
	for _, key := range keys {
		v := item.Get(key)
		if !v.Exists() {
			continue
		}
		if v.Type == gjson.Number {
			return time.Unix(v.Int(), 0).UTC()
		}
		if t := parseTimestamp(v.String()); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func metadataFromJSON(v gjson.Result) map[string]string {
	if !v.IsObject() {
		return nil
	}
	var meta map[string]string
	v.ForEach(func(key, value gjson.Result) bool {
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[key.String()] = value.String()
		return true
	})
	return meta
}
