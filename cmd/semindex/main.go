package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/semindex/internal/cache"
	"github.com/standardbeagle/semindex/internal/config"
	"github.com/standardbeagle/semindex/internal/extract"
	"github.com/standardbeagle/semindex/internal/graphstore"
	"github.com/standardbeagle/semindex/internal/indexing"
	"github.com/standardbeagle/semindex/internal/logging"
	"github.com/standardbeagle/semindex/internal/metricsstore"
	"github.com/standardbeagle/semindex/internal/query"
)

func main() {
	app := &cli.App{
		Name:  "semindex",
		Usage: "Incremental semantic code index for TypeScript and JavaScript",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "Project root directory to index",
				Value: ".",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build a full index of the project root",
				Action: indexCommand,
			},
			{
				Name:   "watch",
				Usage:  "Build a full index, then keep it consistent as files change",
				Action: watchCommand,
			},
			{
				Name:      "query",
				Usage:     "Run a natural-language or named query against the index",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "template",
						Usage: "Run a named query template instead of natural-language translation",
					},
					&cli.StringSliceFlag{
						Name:  "param",
						Usage: "Positional parameter(s) for --template",
					},
				},
				Action: queryCommand,
			},
			{
				Name:   "status",
				Usage:  "Show index summary and complexity trends",
				Action: statusCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "semindex: %v\n", err)
		os.Exit(1)
	}
}

// openStores builds the graph and metrics stores the run should use,
// choosing the subprocess CLIStore binding when the project config names a
// binary and the in-process binding (MemStore / SQLiteStore) otherwise.
func openStores(cfg *config.Config) (graphstore.GraphStore, metricsstore.MetricsStore, error) {
	var graph graphstore.GraphStore
	if cfg.Store.GraphCLI != "" {
		graph = &graphstore.CLIStore{Binary: cfg.Store.GraphCLI, DatabasePath: cfg.Store.GraphPath}
	} else {
		graph = graphstore.NewMemStore()
	}

	var metrics metricsstore.MetricsStore
	if cfg.Store.MetricsCLI != "" {
		metrics = &metricsstore.CLIStore{Binary: cfg.Store.MetricsCLI, DatabasePath: cfg.Store.MetricsPath}
	} else {
		path := cfg.Store.MetricsPath
		if path == "" {
			path = ".semindex-metrics.db"
		}
		store, err := metricsstore.OpenSQLiteStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open metrics store: %w", err)
		}
		metrics = store
	}

	return graph, metrics, nil
}

func buildOrchestrator(c *cli.Context) (*indexing.Orchestrator, *config.Config, error) {
	root := c.String("root")
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Level(cfg.Logging.Level), cfg.Logging.JSONMode)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	graph, metrics, err := openStores(cfg)
	if err != nil {
		return nil, nil, err
	}

	o := indexing.New(cfg.Project.Root, graph, metrics, extract.New(), logger)
	o.Include = cfg.Index.Include
	o.Ignore = cfg.Index.Ignore
	o.FollowSymlink = cfg.Index.FollowSymlink
	o.MaxFileSize = cfg.Index.MaxFileSize
	o.HashWorkers = cfg.Performance.HashWorkers
	o.DebounceMS = cfg.Performance.DebounceMS

	return o, cfg, nil
}

func indexCommand(c *cli.Context) error {
	o, _, err := buildOrchestrator(c)
	if err != nil {
		return err
	}
	return o.FullIndex(context.Background())
}

func watchCommand(c *cli.Context) error {
	o, _, err := buildOrchestrator(c)
	if err != nil {
		return err
	}

	if err := o.FullIndex(context.Background()); err != nil {
		return fmt.Errorf("initial index: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return o.Run(ctx)
}

func queryCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("root"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	graph, metrics, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer metrics.Close()

	qc := cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        time.Duration(cfg.Cache.TTLMS) * time.Millisecond,
	})

	var queryText string
	if name := c.String("template"); name != "" {
		queryText, err = query.BuildTemplate(name, c.StringSlice("param")...)
		if err != nil {
			return fmt.Errorf("build template: %w", err)
		}
	} else {
		if c.NArg() < 1 {
			return errors.New("usage: semindex query <text> (or --template <name>)")
		}
		var confidence float64
		queryText, confidence = query.Translate(c.Args().First())
		if confidence < 1.0 {
			fmt.Fprintf(os.Stderr, "matched with confidence %.2f\n", confidence)
		}
	}

	if cached, ok := qc.Get(queryText); ok {
		return printQueryResult(cached.(graphstore.QueryResult))
	}

	result, err := graph.Query(context.Background(), queryText)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	qc.Put(queryText, result)

	return printQueryResult(result)
}

func printQueryResult(result graphstore.QueryResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Rows)
}

func statusCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("root"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	_, metrics, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer metrics.Close()

	ctx := context.Background()
	summary, err := metrics.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	fmt.Printf("Project: %s\n", cfg.Project.Root)
	fmt.Printf("Files indexed:    %d\n", summary.FileCount)
	fmt.Printf("Total lines:      %d\n", summary.TotalLines)
	fmt.Printf("Avg complexity:   %.2f\n", summary.AvgComplexity)
	fmt.Printf("Total exports:    %d\n", summary.TotalExportCount)

	trends, err := metrics.GetComplexityTrends(ctx, 10)
	if err != nil {
		return fmt.Errorf("complexity trends: %w", err)
	}
	if len(trends) > 0 {
		fmt.Println("\nMost complex files:")
		for _, t := range trends {
			fmt.Printf("  %-40s %.2f\n", t.FilePath, t.ComplexityAvg)
		}
	}

	return nil
}
