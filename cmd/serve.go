package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/pubmap/driver"
	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/observability"
	"github.com/TFMV/pubmap/server"
)

func serveCmd(a *app) *cobra.Command {
	var (
		addr   string
		paused bool
		start  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the animated map over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if paused {
				a.cfg.Timeline.AutoAdvance = false
			}
			if cmd.Flags().Changed("year") {
				a.cfg.Timeline.StartYear = start
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&paused, "paused", false, "Start with auto-advance off")
	cmd.Flags().IntVar(&start, "year", 0, "First year to show")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	shutdown, err := observability.InitTracing(ctx, a.cfg.Tracing, a.log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, a.log)

	src, closer, err := openSource(a.cfg.Source)
	if err != nil {
		return err
	}
	defer closer.Close()

	summary, err := src.Summary(ctx)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewCollector(reg)
	if err != nil {
		return err
	}

	eng := engine.New(a.cfg.EngineConfig())
	drv, err := driver.New(src, summary.MinYear(), summary.MaxYear(), a.cfg.Timeline, a.log, metrics)
	if err != nil {
		return err
	}
	player := driver.NewPlayer(eng, drv, a.cfg.Timeline, a.log, metrics)
	srv := server.New(a.cfg.Server, player, summary, a.log, metrics)
	player.AddSink(srv.Hub().Publish)

	a.log.Info(ctx, "serving timeline",
		logging.Int("min_year", summary.MinYear()),
		logging.Int("max_year", summary.MaxYear()),
		logging.String("source", a.cfg.Source.Kind),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := player.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Start(ctx)
	})
	return g.Wait()
}
