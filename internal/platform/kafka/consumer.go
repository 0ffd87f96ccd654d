package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"supernomad/internal/platform/config"
	"supernomad/internal/tracking/models"
)

// Handler receives decoded notifications.
type Handler func(ctx context.Context, n models.Notification) error

// Consume reads notifications from the configured topic until ctx ends or
// handler fails. Records that do not decode are logged and skipped.
func Consume(ctx context.Context, cfg config.Kafka, logger *slog.Logger, handler Handler, opts ...kgo.Opt) error {
	if !cfg.Enabled() {
		return fmt.Errorf("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeTopics(cfg.Topic),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer client.Close()

	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		var fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			fetchErr = errors.Join(fetchErr, fmt.Errorf("fetch %s/%d: %w", topic, partition, err))
		})
		if fetchErr != nil {
			return fetchErr
		}

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			var n models.Notification
			if err := json.Unmarshal(r.Value, &n); err != nil {
				logger.WarnContext(ctx, "skipping undecodable notification", "offset", r.Offset, "error", err)
				return
			}
			handleErr = handler(ctx, n)
		})
		if handleErr != nil {
			return handleErr
		}
	}
}
