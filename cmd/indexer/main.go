package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talfrim/searchengine/internal/analytics"
	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/index/consumer"
	"github.com/talfrim/searchengine/pkg/config"
	"github.com/talfrim/searchengine/pkg/kafka"
	"github.com/talfrim/searchengine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	inputPath := flag.String("input", "", "tokenized corpus file (one JSON event per line); empty means consume from kafka")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	mode := index.Unstemmed
	if cfg.Index.Stemming {
		mode = index.Stemmed
	}
	slog.Info("starting indexer",
		"variant", mode.String(),
		"data_dir", cfg.Index.DataDir,
		"doc_store", cfg.DocStore.Dir,
	)

	builder := index.NewBuilder(cfg.Index.DataDir, mode)

	docs, err := docstore.OpenWriter(cfg.DocStore.Dir, cfg.DocStore.Partitions)
	if err != nil {
		slog.Error("failed to open document store for writing", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if *inputPath != "" {
		if err := ingestFile(ctx, *inputPath, builder, docs); err != nil {
			slog.Error("corpus ingestion failed", "path", *inputPath, "error", err)
			os.Exit(1)
		}
	} else {
		handler := consumer.HandleMessage(builder, docs)
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusTokens, handler)
		indexConsumer := consumer.New(kafkaConsumer)
		slog.Info("indexer consuming from kafka",
			"topic", cfg.Kafka.Topics.CorpusTokens,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := indexConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("consumer error", "error", err)
		}
	}

	if err := docs.Close(); err != nil {
		slog.Error("closing document store failed", "error", err)
	}

	terms, documents := builder.TermCount(), builder.DocCount()
	path, err := builder.Flush()
	if err != nil {
		slog.Error("index flush failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index flushed",
		"path", path,
		"variant", mode.String(),
		"terms", terms,
		"documents", documents,
		"elapsed", time.Since(start),
	)

	publishFlushEvent(cfg, mode, documents, terms, time.Since(start))
}

// publishFlushEvent reports the completed flush to the analytics topic so
// the aggregator can count it. Failure to publish never fails the build.
func publishFlushEvent(cfg *config.Config, mode index.Mode, documents, terms int, elapsed time.Duration) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	event := analytics.NewIndexFlushEvent(mode.String(), documents, terms, elapsed)
	if err := producer.Publish(ctx, kafka.Event{Key: "analytics", Value: event}); err != nil {
		slog.Warn("failed to publish index flush event", "error", err)
	}
}

// ingestFile reads a pre-tokenized corpus, one JSON ingest event per line.
func ingestFile(ctx context.Context, path string, builder *index.Builder, docs *docstore.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if len(sc.Bytes()) == 0 {
			continue
		}
		var event consumer.IngestEvent
		if err := json.Unmarshal(sc.Bytes(), &event); err != nil {
			slog.Warn("skipping malformed corpus line", "line", line, "error", err)
			continue
		}
		if event.Tokens.DocNo == "" {
			slog.Warn("skipping corpus line without doc number", "line", line)
			continue
		}
		builder.Add(event.Tokens)
		if len(event.Record) > 0 {
			if err := docs.Append(event.Record); err != nil {
				return fmt.Errorf("appending document record at line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading corpus file: %w", err)
	}
	slog.Info("corpus file ingested", "path", path, "lines", line)
	return nil
}
