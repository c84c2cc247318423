package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/veracitylabs/veracity/internal/httpapi"
	"github.com/veracitylabs/veracity/internal/metrics"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification gateway as an HTTP service",
	Long: `Starts an HTTP server exposing the verification pipeline:

  POST /v1/verify   verify a claim, returns the verification record
  GET  /v1/status   sliding-window quality metrics
  GET  /metrics     Prometheus metrics
  GET  /healthz     liveness probe`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveListen != "" {
			cfg.HTTP.Listen = serveListen
		}
		logger := newLogger()

		orch, err := buildOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		defer orch.Metrics().Stop()

		registry := prometheus.NewRegistry()
		if err := metrics.RegisterCollectors(registry, orch.Metrics()); err != nil {
			return err
		}

		reporter := metrics.NewReporter(orch.Metrics(), cfg.Metrics.ReportInterval, logger)
		reporter.Start()
		defer reporter.Stop()

		server := &http.Server{
			Addr:         cfg.HTTP.Listen,
			Handler:      httpapi.NewHandler(orch, orch.Metrics(), registry, logger),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("gateway listening", "addr", cfg.HTTP.Listen)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: http.listen)")
	rootCmd.AddCommand(serveCmd)
}
