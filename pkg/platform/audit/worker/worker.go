// Package worker exports audit outbox rows to Kafka. Database commit first,
// export second: the worker retries until Kafka accepts, so the audit topic
// eventually holds every committed event at least once.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "caretrip/pkg/platform/audit"
)

const defaultBatchSize = 100

// Worker drains the audit outbox into a Kafka topic.
type Worker struct {
	source   audit.OutboxSource
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

func New(source audit.OutboxSource, client *kgo.Client, topic string, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{source: source, client: client, topic: topic, interval: interval, logger: logger}
}

// Run polls until the context is canceled. Export failures are logged and
// retried on the next tick; rows stay pending until Kafka confirms them.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.exportBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit export failed", "error", err)
			}
		}
	}
}

func (w *Worker) exportBatch(ctx context.Context) error {
	entries, err := w.source.PendingOutbox(ctx, defaultBatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(entries))
	for i, entry := range entries {
		records[i] = &kgo.Record{
			Topic: w.topic,
			Key:   []byte(entry.EventType),
			Value: entry.Payload,
		}
	}
	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return err
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	if err := w.source.MarkExported(ctx, ids); err != nil {
		// Already produced; a failed mark means the batch is re-sent next
		// tick. Consumers must treat the topic as at-least-once.
		return err
	}
	w.logger.DebugContext(ctx, "audit events exported", "count", len(entries))
	return nil
}
