package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/router"
	"github.com/lumenkind/recall/internal/store"
	"github.com/lumenkind/recall/internal/taxonomy"
	"github.com/spf13/cobra"
)

func clearRecallEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RECALL_HOST", "RECALL_PORT", "RECALL_DB_PATH",
		"RECALL_CACHE_CAPACITY", "RECALL_TOKEN_BUDGET",
		"RECALL_RETRIEVE_LIMIT", "RECALL_RELATED_LIMIT",
		"RECALL_TAXONOMY_PATH", "RECALL_TAXONOMY_WATCH",
		"RECALL_LOG_LEVEL", "RECALL_LOG_CONSOLE", "RECALL_STATS_SCHEDULE",
	} {
		t.Setenv(key, "")
	}
}

func setQuery(t *testing.T, query, user string) {
	t.Helper()
	oldQuery, oldUser := queryFlag, userFlag
	queryFlag, userFlag = query, user
	t.Cleanup(func() { queryFlag, userFlag = oldQuery, oldUser })
}

func TestInit(t *testing.T) {
	if rootCmd == nil || serveCmd == nil || routeCmd == nil || askCmd == nil ||
		statsCmd == nil || importCmd == nil || initCmd == nil {
		t.Fatal("commands should not be nil")
	}
	if routeCmd.Flags().Lookup("query") == nil {
		t.Error("route should have a query flag")
	}
	if askCmd.Flags().Lookup("user") == nil {
		t.Error("ask should have a user flag")
	}
	if statsCmd.Flags().Lookup("addr") == nil {
		t.Error("stats should have an addr flag")
	}
}

func TestRunInit_CreatesConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearRecallEnv(t)

	var out bytes.Buffer
	if err := runInitTo(&out); err != nil {
		t.Fatalf("runInitTo error: %v", err)
	}

	cfgPath := filepath.Join(tmpDir, ".recall", "config.json")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.Contains(out.String(), "Created config") {
		t.Errorf("unexpected output: %s", out.String())
	}
	if !strings.Contains(out.String(), "Database path") {
		t.Errorf("missing database path in output: %s", out.String())
	}
}

func TestRunInit_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearRecallEnv(t)

	cfgDir := filepath.Join(tmpDir, ".recall")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	if err := runInitTo(&out); err != nil {
		t.Fatalf("runInitTo error: %v", err)
	}
	if !strings.Contains(out.String(), "Config already exists") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestRunRouteTo(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearRecallEnv(t)
	setQuery(t, "my knee pain is back", "u1")

	var out bytes.Buffer
	if err := runRouteTo(&out); err != nil {
		t.Fatalf("runRouteTo error: %v", err)
	}

	var decision router.RoutingDecision
	if err := json.Unmarshal(out.Bytes(), &decision); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if decision.PrimaryCategory != taxonomy.HealthWellness {
		t.Errorf("primary=%s, want %s", decision.PrimaryCategory, taxonomy.HealthWellness)
	}
}

func TestRunRouteTo_MissingQuery(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearRecallEnv(t)
	setQuery(t, "", "default")

	if err := runRouteTo(&bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "query is required") {
		t.Fatalf("error=%v, want query required", err)
	}
}

func TestRunAskTo(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearRecallEnv(t)
	setQuery(t, "I'm in the hospital with terrible pain right now", "u1")

	dbPath := filepath.Join(tmpDir, ".recall", "memories.db")
	st, err := store.Open(dbPath, taxonomy.Default(), logging.Nop{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	records := []memory.MemoryRecord{
		{OwnerID: "u1", Category: taxonomy.HealthWellness, Content: "Hospital visit for terrible knee pain", RelevanceScore: 0.8, TokenCount: 30},
		{OwnerID: "u1", Category: taxonomy.HealthWellness, Content: "The pain in the right hip at the hospital", RelevanceScore: 0.7, TokenCount: 40},
	}
	for _, rec := range records {
		if err := st.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var out bytes.Buffer
	if err := runAskTo(&out); err != nil {
		t.Fatalf("runAskTo error: %v", err)
	}

	var result askResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if result.Decision.PrimaryCategory != taxonomy.HealthWellness {
		t.Errorf("primary=%s, want %s", result.Decision.PrimaryCategory, taxonomy.HealthWellness)
	}
	if len(result.Memories) != 2 {
		t.Fatalf("memories=%d, want 2", len(result.Memories))
	}
	if result.TotalTokens != 70 {
		t.Errorf("total tokens=%d, want 70", result.TotalTokens)
	}
}

func TestRunAskTo_NoMatchesPrintsEmptyList(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearRecallEnv(t)
	setQuery(t, "my knee pain is back", "nobody")

	var out bytes.Buffer
	if err := runAskTo(&out); err != nil {
		t.Fatalf("runAskTo error: %v", err)
	}
	if !strings.Contains(out.String(), `"memories": []`) {
		t.Errorf("expected empty memories list, got: %s", out.String())
	}
}

func TestRunImportTo(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearRecallEnv(t)

	doc := `[
		{"owner_id": "u1", "category": "health_wellness", "content": "Knee surgery in March", "token_count": 12},
		{"owner_id": "u1", "category": "work_career", "content": "Started the new job", "token_count": 8},
		{"owner_id": "u1", "category": "health_wellness"}
	]`
	path := filepath.Join(tmpDir, "export.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var out bytes.Buffer
	if err := runImportTo(&out, []string{path}); err != nil {
		t.Fatalf("runImportTo error: %v", err)
	}
	if !strings.Contains(out.String(), "Imported 2 memories (1 skipped)") {
		t.Errorf("unexpected output: %s", out.String())
	}

	st, err := store.Open(filepath.Join(tmpDir, ".recall", "memories.db"), taxonomy.Default(), logging.Nop{})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	counts, err := st.CategoryCounts(context.Background())
	if err != nil {
		t.Fatalf("CategoryCounts: %v", err)
	}
	if counts[taxonomy.HealthWellness] != 1 || counts[taxonomy.WorkCareer] != 1 {
		t.Errorf("counts=%v, want one record in each category", counts)
	}
}

func TestRunImportTo_MissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearRecallEnv(t)

	err := runImportTo(&bytes.Buffer{}, []string{"/nonexistent/export.json"})
	if err == nil || !strings.Contains(err.Error(), "read import file") {
		t.Fatalf("error=%v, want read failure", err)
	}
}

func TestRunStatsTo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"routing":{"total_routes":3},"extraction":{"total_extractions":1}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	oldAddr := addrFlag
	addrFlag = strings.TrimPrefix(srv.URL, "http://")
	defer func() { addrFlag = oldAddr }()

	var out bytes.Buffer
	if err := runStatsTo(&out); err != nil {
		t.Fatalf("runStatsTo error: %v", err)
	}
	if !strings.Contains(out.String(), "total_routes") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestRunStatsTo_ServerDown(t *testing.T) {
	oldAddr := addrFlag
	addrFlag = "127.0.0.1:1"
	defer func() { addrFlag = oldAddr }()

	if err := runStatsTo(&bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "fetch stats") {
		t.Fatalf("error=%v, want fetch failure", err)
	}
}

func TestRunServe_BadTaxonomy(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	clearRecallEnv(t)

	path := filepath.Join(tmpDir, "taxonomy.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  - {id: a, weight: 0, priority: low}\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("RECALL_TAXONOMY_PATH", path)

	err := runServe(&cobra.Command{}, []string{})
	if err == nil || !strings.Contains(err.Error(), "create gateway") {
		t.Fatalf("error=%v, want gateway failure", err)
	}
}
