// Command nomadctl inspects and edits a SuperNomad sqlite store offline and
// replays recorded location samples through the tracking engine.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"supernomad/internal/platform/logger"
	"supernomad/internal/storage/sqlite"
	"supernomad/internal/subscription"
	"supernomad/internal/tracking/engine"
	"supernomad/internal/tracking/loop"
	"supernomad/internal/tracking/models"
	"supernomad/internal/tracking/registry"
	"supernomad/internal/tracking/service"
)

var (
	dbFlag       string
	tzFlag       string
	logLevelFlag string
	rootCmd      = &cobra.Command{
		Use:           "nomadctl",
		Short:         "Offline tools for the SuperNomad travel tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbFlag, "db", "d", "./data/supernomad.db", "Path to the sqlite store")
	rootCmd.PersistentFlags().StringVar(&tzFlag, "tz", "UTC", "Time zone that decides where a calendar day starts")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the tracking stack opened on the sqlite store for one command.
type app struct {
	store   *sqlite.Store
	loop    *loop.Loop
	subs    *subscription.Service
	service *service.Service
	zone    *time.Location
	logger  *slog.Logger
}

type printDispatcher struct {
	out io.Writer
}

func (d printDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	_, err := fmt.Fprintf(d.out, "%s  [%s] %s: %s\n",
		n.OccurredAt.Format(time.DateOnly), n.Severity, n.Title, n.Description)
	return err
}

func openApp(ctx context.Context, out io.Writer, engineOpts ...engine.Option) (*app, error) {
	log := logger.NewWithWriter(os.Stderr, logLevelFlag, "text")
	zone, err := time.LoadLocation(tzFlag)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", tzFlag, err)
	}
	store, err := sqlite.Open(ctx, dbFlag)
	if err != nil {
		return nil, err
	}

	a := &app{store: store, zone: zone, logger: log}
	if err := a.wire(ctx, out, engineOpts); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, out io.Writer, engineOpts []engine.Option) error {
	subs, err := subscription.New(a.store, subscription.WithLogger(a.logger))
	if err != nil {
		return err
	}
	subs.Load(ctx)
	a.subs = subs

	reg, err := registry.New(a.store, registry.WithLogger(a.logger), registry.WithTierGate(subs))
	if err != nil {
		return err
	}
	reg.Load(ctx)

	opts := append([]engine.Option{
		engine.WithLogger(a.logger),
		engine.WithLocation(a.zone),
		engine.WithDispatcher(printDispatcher{out: out}),
	}, engineOpts...)
	eng, err := engine.New(reg, a.store, opts...)
	if err != nil {
		return err
	}
	eng.Load(ctx)

	a.loop = loop.New(1, loop.WithLogger(a.logger))
	a.service, err = service.New(a.loop, reg, eng, service.WithLogger(a.logger))
	return err
}

func (a *app) Close() error {
	_ = a.loop.Close()
	return a.store.Close()
}

// withApp opens the stack, runs fn, and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error, engineOpts ...engine.Option) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cmd.OutOrStdout(), engineOpts...)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
