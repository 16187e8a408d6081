package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authority/internal/http/server"
	"github.com/dropDatabas3/authority/internal/jobs"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

const cleanupTimeout = 5 * time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP y el job de limpieza",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	log := logger.L().With(logger.Component("main"))

	rt, err := server.Build(ctx, cfg, server.Options{Version: version})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("close runtime", logger.Err(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Serve(ctx) })

	if cfg.Cleanup.Enabled {
		sched := jobs.NewScheduler()
		if err := sched.AddCleanup(cfg.Cleanup.Schedule, rt.App.Verification, cleanupTimeout); err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(ctx) })
	}

	log.Info("authority started",
		logger.String("addr", cfg.Server.Addr),
		logger.String("env", cfg.App.Env),
		logger.String("storage", cfg.Storage.Driver),
	)
	err = g.Wait()
	log.Info("authority stopped")
	return err
}
