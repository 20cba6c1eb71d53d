package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/search"
	"github.com/talfrim/searchengine/internal/search/semantic"
	"github.com/talfrim/searchengine/internal/search/tokenizer"
	"github.com/talfrim/searchengine/internal/trec"
	"github.com/talfrim/searchengine/pkg/config"
	"github.com/talfrim/searchengine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	queriesPath := flag.String("queries", "", "TREC topics file (required)")
	outDir := flag.String("out", ".", "directory for the results file")
	semanticFlag := flag.Bool("semantic", false, "enable semantic query expansion")
	limit := flag.Int("limit", 50, "maximum results per query")
	flag.Parse()

	if *queriesPath == "" {
		fmt.Fprintln(os.Stderr, "usage: batchsearch -queries <topics file> [-out <dir>] [-semantic] [-limit N]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	topics, err := trec.ParseQueryFile(*queriesPath)
	if err != nil {
		slog.Error("failed to parse queries file", "path", *queriesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("queries loaded", "path", *queriesPath, "count", len(topics))

	mode := index.Unstemmed
	if cfg.Index.Stemming {
		mode = index.Stemmed
	}
	dict, err := index.Load(cfg.Index.DataDir, mode)
	if err != nil {
		slog.Error("failed to load dictionary", "variant", mode.String(), "error", err)
		os.Exit(1)
	}
	defer dict.Close()

	store, err := docstore.Open(cfg.DocStore.Dir, cfg.DocStore.Partitions, cfg.DocStore.Preload)
	if err != nil {
		slog.Warn("document store unavailable, results will carry no metadata",
			"dir", cfg.DocStore.Dir, "error", err)
		store = nil
	}

	stopWords, err := tokenizer.LoadStopWords(cfg.Search.StopWordsFile)
	if err != nil {
		slog.Error("failed to load stop words", "path", cfg.Search.StopWordsFile, "error", err)
		os.Exit(1)
	}

	var expander semantic.Expander
	if *semanticFlag {
		if cfg.Search.ExpansionFile == "" {
			slog.Error("semantic expansion requested but no expansion file configured")
			os.Exit(1)
		}
		exp, err := semantic.LoadStatic(cfg.Search.ExpansionFile)
		if err != nil {
			slog.Error("failed to load expansion table", "path", cfg.Search.ExpansionFile, "error", err)
			os.Exit(1)
		}
		expander = exp
	}

	svc, err := search.NewService(
		cfg.Index.DataDir, dict, store, tokenizer.New(mode, stopWords), expander,
		cfg.Ranking, cfg.Search.ScoringConcurrency, nil,
	)
	if err != nil {
		slog.Error("failed to create search service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queries := make([]search.Query, len(topics))
	for i, t := range topics {
		queries[i] = search.Query{ID: t.ID, Text: t.Text}
	}

	start := time.Now()
	results, err := svc.SearchAll(ctx, queries, search.Options{
		Semantic: *semanticFlag,
		Limit:    *limit,
	})
	if err != nil {
		slog.Error("batch search failed", "error", err)
		os.Exit(1)
	}

	if err := trec.WriteResultsFile(*outDir, results); err != nil {
		slog.Error("failed to write results file", "dir", *outDir, "error", err)
		os.Exit(1)
	}

	total := 0
	for _, qr := range results {
		total += len(qr.Results)
	}
	slog.Info("batch search complete",
		"queries", len(queries),
		"results", total,
		"elapsed", time.Since(start),
	)
}
