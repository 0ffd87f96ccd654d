package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"supernomad/internal/platform/config"
	"supernomad/internal/platform/kafka"
	"supernomad/internal/platform/logger"
	"supernomad/internal/tracking/models"
)

func init() {
	notificationsCmd := &cobra.Command{Use: "notifications", Short: "Notification stream operations"}

	var brokers []string
	var topic string
	var fromStart bool
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow notifications published to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Kafka{Brokers: brokers, Topic: topic, ClientID: "nomadctl"}
			var opts []kgo.Opt
			if fromStart {
				opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
			}
			out := cmd.OutOrStdout()
			err := kafka.Consume(ctx, cfg, logger.NewWithWriter(cmd.ErrOrStderr(), logLevelFlag, "text"),
				func(_ context.Context, n models.Notification) error {
					_, err := fmt.Fprintf(out, "%s  %-30s [%s] %s: %s\n",
						n.OccurredAt.Format(time.RFC3339), n.Kind, n.Severity, n.Title, n.Description)
					return err
				}, opts...)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	tailCmd.Flags().StringSliceVarP(&brokers, "brokers", "b", []string{"localhost:9092"}, "Kafka seed brokers")
	tailCmd.Flags().StringVar(&topic, "topic", "nomad.notifications", "Notification topic")
	tailCmd.Flags().BoolVar(&fromStart, "from-start", false, "Read the topic from the beginning")
	notificationsCmd.AddCommand(tailCmd)

	rootCmd.AddCommand(notificationsCmd)
}
