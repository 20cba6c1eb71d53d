// Package consumer reads tokenized-document events from Kafka and feeds them
// to the index builder and the document partition writer.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/pkg/kafka"
)

// IngestEvent is one fully tokenized document plus its store record fields
// (semicolon-joined at write time, docNo first).
type IngestEvent struct {
	Tokens index.DocumentTokens `json:"tokens"`
	Record []string             `json:"record,omitempty"`
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that adds every ingest event
// to the builder and, when the event carries record fields and docs is
// non-nil, appends the document record to its partition.
func HandleMessage(builder *index.Builder, docs *docstore.Writer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.Tokens.DocNo == "" {
			logger.Warn("skipping ingest event without doc number")
			return nil
		}

		builder.Add(event.Tokens)
		if docs != nil && len(event.Record) > 0 {
			if err := docs.Append(event.Record); err != nil {
				return fmt.Errorf("appending document record %s: %w", event.Tokens.DocNo, err)
			}
		}

		logger.Debug("document ingested",
			"doc_no", event.Tokens.DocNo,
			"terms", len(event.Tokens.Occurrences),
		)
		return nil
	}
}
