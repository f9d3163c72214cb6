package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/memory"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves episode memory from the configured store, the machine's transitions and
step previews, and Prometheus metrics on /metrics. Without a readable definition
file only the memory routes are served.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cfg.Logger()

		store, closeStore, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		defer closeStore()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
		if cfg.Episode != "" {
			// Feedback for the configured episode is counted and persisted
			// through a log; other episodes are appended to the store.
			log := memory.NewLog(memory.WithLogger(logger))
			stopPersist := memory.Persist(context.Background(), log, store)
			defer stopPersist()
			defer metrics.Watch(log)()
			opts = append(opts, httpAdapter.WithLog(log, cfg.Episode))
		}
		if env, err := loadEnvironment(); err == nil {
			opts = append(opts, httpAdapter.WithMachine(env.machine, env.events))
			logger.Info("serving machine", "machine", env.machine.ID(), "hash", env.machine.Hash())
		} else {
			logger.Warn("no machine definition loaded", "definition", cfg.Definition, "err", err)
		}

		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		r.Mount("/", httpAdapter.NewHandler(store, opts...))

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: r,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting tendril server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			logger.Info("tendril server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
