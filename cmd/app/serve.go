package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"courierhub/cmd"
	"courierhub/internal/adapters/out/postgres"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the timeout supervisor and the order import",
		RunE: func(c *cobra.Command, _ []string) error {
			return runServe(contextOf(c), opts, migrate)
		},
	}
	serve.Flags().BoolVar(&migrate, "migrate", false, "migrate the schema before serving")
	return serve
}

func runServe(parent context.Context, opts *rootOptions, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, db, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger)

	if migrate {
		if err = postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	root, err := cmd.NewCompositionRoot(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := root.Close(); closeErr != nil {
			logger.Warn("closing channels failed", "error", closeErr)
		}
	}()

	e, err := root.CreateHTTPServer(ctx)
	if err != nil {
		return err
	}
	consumer, err := root.CreateOrderImportConsumer()
	if err != nil {
		return err
	}
	jobManager := root.CreateJobManager()
	if err = jobManager.StartAll(); err != nil {
		return err
	}
	defer jobManager.StopAll()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.HTTP.Port)
		if startErr := e.Start("0.0.0.0:" + cfg.HTTP.Port); !errors.Is(startErr, http.ErrServerClosed) {
			return startErr
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownIn)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if consumer != nil {
		g.Go(func() error {
			defer func() {
				if closeErr := consumer.Close(); closeErr != nil {
					logger.Warn("closing kafka consumer failed", "error", closeErr)
				}
			}()
			return consumer.Run(gctx)
		})
	}

	if err = g.Wait(); err != nil {
		return err
	}
	logger.Info("shut down cleanly")
	return nil
}
