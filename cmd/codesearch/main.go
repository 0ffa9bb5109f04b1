// Command codesearch is the MCP/CLI entry point: it loads configuration,
// opens (or creates) a workspace's Symbol DB and lexical index, wires the
// indexing pipeline, batch indexer, file watcher, query cache, hybrid
// search, call-path tracer, memory stores, and boost layer together, and
// serves them over stdio as an MCP tool surface. Grounded on the
// teacher's cmd/lci/main.go and internal/mcp/server.go startup sequence
// (config load -> debug log init -> server construction -> AddTool per
// capability -> Run(ctx, StdioTransport)), generalized from the
// teacher's single monolithic search index onto this module's
// per-workspace coordinator set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lci/internal/batchindex"
	"github.com/standardbeagle/lci/internal/boost"
	"github.com/standardbeagle/lci/internal/callpath"
	"github.com/standardbeagle/lci/internal/config"
	lcidebug "github.com/standardbeagle/lci/internal/debug"
	"github.com/standardbeagle/lci/internal/extractor"
	"github.com/standardbeagle/lci/internal/hybrid"
	"github.com/standardbeagle/lci/internal/lexindex"
	"github.com/standardbeagle/lci/internal/memory"
	"github.com/standardbeagle/lci/internal/pipeline"
	"github.com/standardbeagle/lci/internal/pressure"
	"github.com/standardbeagle/lci/internal/querycache"
	"github.com/standardbeagle/lci/internal/registry"
	"github.com/standardbeagle/lci/internal/symboldb"
	"github.com/standardbeagle/lci/internal/types"
	"github.com/standardbeagle/lci/internal/version"
	"github.com/standardbeagle/lci/internal/watch"
	"github.com/standardbeagle/lci/internal/workspace"
)

func main() {
	app := &cli.App{
		Name:  "codesearch",
		Usage: "workspace code-intelligence engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "project root to index", Value: "."},
			&cli.StringFlag{Name: "base-dir", Usage: "base directory for on-disk state", Value: ""},
		},
		Action: runServer,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	lcidebug.SetMCPMode(true)
	if _, err := lcidebug.InitDebugLogFile(); err != nil {
		return fmt.Errorf("init debug log: %w", err)
	}
	defer lcidebug.CloseDebugLog()

	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithRoot(root, root)
	if err != nil {
		cfg = config.Default(root)
	}

	baseDir := c.String("base-dir")
	if baseDir == "" {
		baseDir = cfg.Index.IndexBasePath
	}
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		baseDir = filepath.Join(home, ".codesearch")
	}

	eng, err := newEngine(root, baseDir, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "codesearch-mcp-server",
		Version: version.FullInfo(),
	}, nil)
	eng.registerTools(server)

	lcidebug.LogMCP("starting stdio server for workspace %s (hash %s)", eng.ws.Path, eng.ws.Hash)
	return server.Run(ctx, &mcp.StdioTransport{})
}

// engine owns every per-workspace coordinator (C1-C13) for one running
// server process.
type engine struct {
	cfg *config.Config
	ws  types.Workspace

	registry *registry.Registry
	db       *symboldb.DB
	lex      *lexindex.Manager
	mon      *pressure.Monitor
	batch    *batchindex.Indexer
	pipe     *pipeline.Pipeline
	watcher  *watch.Watcher
	cache    *querycache.Cache
	search   *hybrid.Searcher
	tracer   *callpath.Tracer

	projectMemory *memory.Store
	localMemory   *memory.Store
	boostCtx      *boost.Context
}

func newEngine(root, baseDir string, cfg *config.Config) (*engine, error) {
	hash := workspace.WorkspaceHash(workspace.Canonicalize(root))
	indexRoot := filepath.Join(baseDir, "index", hash)

	reg := registry.New(filepath.Join(baseDir, "registry.json"))
	if err := reg.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	ws, err := reg.Register(context.Background(), root, hash, indexRoot)
	if err != nil {
		return nil, fmt.Errorf("register workspace: %w", err)
	}

	if err := os.MkdirAll(indexRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := symboldb.Open(filepath.Join(baseDir, "index", hash+".db"))
	if err != nil {
		return nil, fmt.Errorf("open symbol db: %w", err)
	}

	lex := lexindex.NewManager(cfgLockTimeout(cfg))
	mon := pressure.NewMonitor(cfg.MemoryLimits.MaxMemoryUsagePercent)
	batch := batchindex.NewIndexer(lex, reg, mon, cfg.BatchIndexing.BatchSize, cfgBatchMaxAge(cfg))

	var ex extractor.Extractor = extractor.NullExtractor{}
	if cmdName := os.Getenv("CODESEARCH_EXTRACTOR_CMD"); cmdName != "" {
		ex = extractor.NewSubprocessExtractor(cmdName)
	}

	pipe := pipeline.New(ex, db, batch, lex, mon, pipeline.Config{
		MaxFileSize:      cfg.Index.MaxFileSize,
		Include:          cfg.Include,
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.Index.RespectGitignore,
	})

	cache := querycache.New(int64(cfg.QueryCache.MaxSizeMB)*1024*1024, cfgSlidingExpire(cfg))

	w, err := watch.New(*ws, pipe, db, lex, cache, watch.Config{Exclude: cfg.Exclude})
	if err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	lexSearcher := &fileTextSearcher{db: db}
	semSearcher := &semanticSearcher{db: db}
	searcher := hybrid.New(lexSearcher, semSearcher, hybrid.Config{
		Strategy:        hybrid.Strategy(cfg.Hybrid.Strategy),
		LexicalWeight:   cfg.Hybrid.LexicalWeight,
		SemanticWeight:  cfg.Hybrid.SemanticWeight,
		BothFoundBoost:  cfg.Hybrid.BothFoundBoost,
		RRFRankConstant: cfg.Hybrid.RRFRankConstant,
		Overfetch:       cfg.Hybrid.ResultOverfetch,
	})

	tracer := callpath.New(db, nil)

	return &engine{
		cfg:           cfg,
		ws:            *ws,
		registry:      reg,
		db:            db,
		lex:           lex,
		mon:           mon,
		batch:         batch,
		pipe:          pipe,
		watcher:       w,
		cache:         cache,
		search:        searcher,
		tracer:        tracer,
		projectMemory: memory.New(memory.KindProject, baseDir),
		localMemory:   memory.New(memory.KindLocal, baseDir),
		boostCtx: boost.NewContext(boost.Config{
			CurrentFileBoost: cfg.Boost.CurrentFileBoost,
			RecentFileBoost:  cfg.Boost.RecentFileBoost,
			RecentQueryBoost: cfg.Boost.RecentQueryBoost,
			TechnologyBoost:  cfg.Boost.TechnologyBoost,
			MaxRecentFiles:   cfg.Boost.MaxRecentFiles,
			MaxRecentQueries: cfg.Boost.MaxRecentQueries,
		}),
	}, nil
}

func (e *engine) Close() {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.batch != nil {
		e.batch.Shutdown(context.Background())
	}
	if e.projectMemory != nil {
		e.projectMemory.Close()
	}
	if e.localMemory != nil {
		e.localMemory.Close()
	}
	if e.lex != nil {
		e.lex.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

func cfgLockTimeout(cfg *config.Config) time.Duration {
	minutes := cfg.Lucene.LockTimeoutMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

func cfgBatchMaxAge(cfg *config.Config) time.Duration {
	seconds := cfg.BatchIndexing.MaxBatchAgeSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func cfgSlidingExpire(cfg *config.Config) time.Duration {
	minutes := cfg.QueryCache.SlidingExpireMins
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}
