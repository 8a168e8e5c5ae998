// Package gateway wires a recall process together: taxonomy, store, router,
// memory service, HTTP API, and the maintenance reporter, with one shutdown
// path that tears them down in reverse order.
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenkind/recall/internal/config"
	"github.com/lumenkind/recall/internal/httpapi"
	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/maintenance"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/router"
	"github.com/lumenkind/recall/internal/store"
	"github.com/lumenkind/recall/internal/taxonomy"
)

// Options for creating a Gateway.
type Options struct {
	SignalChan chan os.Signal // for testing signal handling
	Logger     logging.Logger // overrides the config-derived logger
}

type Gateway struct {
	cfg        *config.Config
	log        logging.Logger
	store      *store.SQLite
	router     *router.Router
	memory     *memory.Service
	server     *httpapi.Server
	reporter   *maintenance.Reporter
	cancel     context.CancelFunc
	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	log := opts.Logger
	if log == nil {
		log = logging.New("gateway", logging.Options{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
		})
	}

	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	st, err := store.Open(cfg.Store.DBPath, tax, logging.ForComponent(log, "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rt := router.New(tax, logging.ForComponent(log, "router"), cfg.Router.CacheCapacity)
	svc := memory.New(st, logging.ForComponent(log, "memory"), memory.Config{
		TokenBudget:   cfg.Memory.TokenBudget,
		RetrieveLimit: cfg.Memory.RetrieveLimit,
		RelatedLimit:  cfg.Memory.RelatedLimit,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := httpapi.NewServer(addr, rt, svc, st, logging.ForComponent(log, "http"))

	rep := maintenance.NewReporter(cfg.Maintenance.StatsSchedule, logging.ForComponent(log, "maintenance"))
	rep.OnReport = func() maintenance.Report {
		return maintenance.Report{Routing: rt.Stats(), Extraction: svc.Stats()}
	}

	return &Gateway{
		cfg:        cfg,
		log:        log,
		store:      st,
		router:     rt,
		memory:     svc,
		server:     srv,
		reporter:   rep,
		signalChan: opts.SignalChan,
	}, nil
}

// Router returns the wired router, for callers that run the pipeline
// in-process instead of over HTTP.
func (g *Gateway) Router() *router.Router { return g.router }

// Memory returns the wired memory service.
func (g *Gateway) Memory() *memory.Service { return g.memory }

// Store returns the wired store.
func (g *Gateway) Store() *store.SQLite { return g.store }

// Run starts every component and blocks until a shutdown signal or context
// cancellation, then tears everything down.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if g.cfg.Taxonomy.Watch {
		err := taxonomy.Watch(ctx, g.cfg.Taxonomy.Path, logging.ForComponent(g.log, "taxonomy"), g.applyTaxonomy)
		if err != nil {
			g.log.Warn("taxonomy watch unavailable", "error", err)
		}
	}

	if err := g.server.Start(); err != nil {
		cancel()
		return fmt.Errorf("start http server: %w", err)
	}
	if err := g.reporter.Start(); err != nil {
		g.log.Warn("stats reporter disabled", "error", err)
	}

	g.log.Info("gateway running",
		"addr", fmt.Sprintf("%s:%d", g.cfg.Server.Host, g.cfg.Server.Port),
		"db", g.cfg.Store.DBPath,
	)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
		g.log.Info("shutdown signal received")
	case <-ctx.Done():
	}

	return g.Shutdown()
}

// applyTaxonomy swaps the taxonomy everywhere it is held. The router drops
// its caches on swap.
func (g *Gateway) applyTaxonomy(tax *taxonomy.Taxonomy) {
	g.router.SetTaxonomy(tax)
	g.store.SetTaxonomy(tax)
}

// Shutdown stops components in reverse start order. Safe to call once,
// whether or not Run was reached.
func (g *Gateway) Shutdown() error {
	if g.cancel != nil {
		g.cancel()
	}
	g.reporter.Stop()
	if err := g.server.Stop(); err != nil {
		g.log.Warn("http server stop", "error", err)
	}
	g.memory.Close()
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	g.log.Info("shutdown complete")
	return nil
}
