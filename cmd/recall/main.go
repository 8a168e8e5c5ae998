package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lumenkind/recall/internal/config"
	"github.com/lumenkind/recall/internal/gateway"
	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/router"
	"github.com/lumenkind/recall/internal/store"
	"github.com/lumenkind/recall/internal/taxonomy"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "recall - query routing and memory retrieval service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE:  runServe,
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route a query to a memory category",
	RunE:  runRoute,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Route a query and extract matching memories",
	RunE:  runAsk,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline statistics from a running server",
	RunE:  runStats,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import memories from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default config file and data directory",
	RunE:  runInit,
}

var (
	queryFlag string
	userFlag  string
	addrFlag  string
)

func init() {
	routeCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Query to route")
	routeCmd.Flags().StringVarP(&userFlag, "user", "u", "default", "User id")
	askCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Query to answer")
	askCmd.Flags().StringVarP(&userFlag, "user", "u", "default", "User id")
	statsCmd.Flags().StringVar(&addrFlag, "addr", "", "Server address host:port (defaults to the configured server)")
	rootCmd.AddCommand(serveCmd, routeCmd, askCmd, statsCmd, importCmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

// runRoute is the command handler that writes to stdout.
func runRoute(cmd *cobra.Command, args []string) error {
	return runRouteTo(os.Stdout)
}

// runRouteTo routes one query locally and prints the decision as JSON.
func runRouteTo(out io.Writer) error {
	if strings.TrimSpace(queryFlag) == "" {
		return fmt.Errorf("query is required (use --query)")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}

	rt := router.New(tax, cliLogger(cfg), cfg.Router.CacheCapacity)
	return printJSON(out, rt.Route(queryFlag, userFlag))
}

func runAsk(cmd *cobra.Command, args []string) error {
	return runAskTo(os.Stdout)
}

type askResult struct {
	Decision    router.RoutingDecision `json:"decision"`
	Memories    []memory.RankedMemory  `json:"memories"`
	TotalTokens int                    `json:"total_tokens"`
}

// runAskTo runs the full pipeline once against the local database: route the
// query, extract matching memories, print the packed result as JSON.
func runAskTo(out io.Writer) error {
	if strings.TrimSpace(queryFlag) == "" {
		return fmt.Errorf("query is required (use --query)")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := cliLogger(cfg)
	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}
	st, err := store.Open(cfg.Store.DBPath, tax, logging.ForComponent(log, "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rt := router.New(tax, logging.ForComponent(log, "router"), cfg.Router.CacheCapacity)
	svc := memory.New(st, logging.ForComponent(log, "memory"), memory.Config{
		TokenBudget:   cfg.Memory.TokenBudget,
		RetrieveLimit: cfg.Memory.RetrieveLimit,
		RelatedLimit:  cfg.Memory.RelatedLimit,
	})
	defer svc.Close()

	ctx := context.Background()
	decision := rt.Route(queryFlag, userFlag)
	memories, total := svc.Extract(ctx, userFlag, queryFlag, decision)
	if memories == nil {
		memories = []memory.RankedMemory{}
	}
	return printJSON(out, askResult{Decision: decision, Memories: memories, TotalTokens: total})
}

func runStats(cmd *cobra.Command, args []string) error {
	return runStatsTo(os.Stdout)
}

// runStatsTo fetches /api/stats from a running server and pretty-prints it.
func runStatsTo(out io.Writer) error {
	addr := addrFlag
	if addr == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		addr = fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/stats", addr))
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch stats: server returned %s", resp.Status)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	fmt.Fprintln(out, buf.String())
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	return runImportTo(os.Stdout, args)
}

func runImportTo(out io.Writer, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := cliLogger(cfg)
	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}
	st, err := store.Open(cfg.Store.DBPath, tax, logging.ForComponent(log, "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	result, err := st.ImportJSON(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d memories (%d skipped) into %s\n", result.Imported, result.Skipped, cfg.Store.DBPath)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	return runInitTo(os.Stdout)
}

func runInitTo(out io.Writer) error {
	cfgPath := config.ConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	fmt.Fprintf(out, "Database path: %s\n", cfg.Store.DBPath)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to adjust the server or budget settings\n", cfgPath)
	fmt.Fprintln(out, "  2. Run 'recall import <file>' to load existing memories")
	fmt.Fprintln(out, "  3. Run 'recall serve' to start the HTTP service")
	return nil
}

func cliLogger(cfg *config.Config) logging.Logger {
	return logging.New("cli", logging.Options{Level: cfg.Logging.Level, Console: cfg.Logging.Console})
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
