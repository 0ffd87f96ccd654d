//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"supernomad/internal/platform/config"
	"supernomad/internal/platform/kafka"
	"supernomad/internal/platform/logger"
	"supernomad/internal/tracking/models"
	"supernomad/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	cfg      config.Kafka
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())
	s.cfg = config.Kafka{
		Brokers:  []string{s.redpanda.Broker},
		Topic:    "nomad.notifications.test",
		ClientID: "supernomad-test",
	}
}

func (s *PublisherSuite) TestPublishAndConsume() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pub, err := kafka.NewPublisher(ctx, s.cfg, kafka.WithLogger(logger.Discard()))
	s.Require().NoError(err)

	sent := []models.Notification{
		{Kind: models.EventCountryExited, Title: "You left Thailand", Severity: models.SeverityInfo, CountryCode: "TH"},
		{Kind: models.EventCountryEntered, Title: "Welcome to Vietnam", Severity: models.SeverityInfo, CountryCode: "VN"},
	}
	for _, n := range sent {
		n.OccurredAt = time.Now().UTC().Truncate(time.Millisecond)
		s.Require().NoError(pub.Dispatch(ctx, n))
	}
	s.Require().NoError(pub.Close(ctx))

	var got []models.Notification
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	err = kafka.Consume(consumeCtx, s.cfg, logger.Discard(), func(_ context.Context, n models.Notification) error {
		got = append(got, n)
		if len(got) == len(sent) {
			stop()
		}
		return nil
	}, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	s.ErrorIs(err, context.Canceled)

	s.Require().Len(got, 2)
	s.Equal(models.EventCountryExited, got[0].Kind)
	s.Equal(models.EventCountryEntered, got[1].Kind)
}

func (s *PublisherSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	client, err := kgo.NewClient(kgo.SeedBrokers(s.redpanda.Broker))
	s.Require().NoError(err)
	defer client.Close()

	s.Require().NoError(kafka.EnsureTopic(ctx, client, "nomad.idempotent"))
	s.Require().NoError(kafka.EnsureTopic(ctx, client, "nomad.idempotent"))
}
