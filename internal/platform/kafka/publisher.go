// Package kafka publishes tracking notifications to a Kafka-compatible
// broker so other devices and services can fan them out.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"supernomad/internal/platform/config"
	"supernomad/internal/tracking/models"
)

const headerKind = "kind"

// Publisher produces notifications asynchronously. Dispatch never waits on
// the broker; delivery failures are logged from the produce callback.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher connects to the brokers and makes sure the topic exists.
func NewPublisher(ctx context.Context, cfg config.Kafka, opts ...Option) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordDeliveryTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Publisher{client: client, topic: cfg.Topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	if err := EnsureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}
	p.logger.InfoContext(ctx, "kafka notification publisher ready", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return p, nil
}

// EnsureTopic creates topic with one partition when it does not exist yet.
// A single partition keeps notifications totally ordered.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (p *Publisher) Dispatch(ctx context.Context, n models.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(n.CountryCode),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerKind, Value: []byte(n.Kind)},
		},
		Timestamp: n.OccurredAt,
	}
	p.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to publish notification",
				"topic", r.Topic,
				"kind", n.Kind,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
