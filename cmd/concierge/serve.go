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

	"github.com/aretw0/concierge/internal/cli"
	httpAdapter "github.com/aretw0/concierge/pkg/adapters/http"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook HTTP server",
	Long: `Starts the concierge as an HTTP service. Twilio posts inbound WhatsApp
messages to /webhook, the booking form posts to /form, and /schedule queues
delayed broadcasts. Prometheus metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := cli.NewLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		rt, err := cli.Build(cfg, logger, cli.Options{Console: os.Stdout})
		if err != nil {
			return err
		}

		api, err := httpAdapter.NewHandler(rt.App,
			httpAdapter.WithReadiness(rt.App),
			httpAdapter.WithLogger(logger),
		)
		if err != nil {
			_ = rt.Close(context.Background())
			return err
		}

		router := chi.NewRouter()
		router.Handle("/metrics", rt.Metrics.Handler())
		router.Mount("/", api)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Concierge server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var serveErr error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				serveErr = fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			logger.Info("Start shutdown...")
		}

		// Give outstanding requests and pending jobs a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			_ = srv.Close()
		}
		if err := rt.Close(shutdownCtx); err != nil {
			logger.Warn("Failed to release resources", "error", err)
		}
		logger.Info("Concierge server stopped gracefully")
		return serveErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8888, "Port to listen on")
	bindFlag("http.port", serveCmd.Flags().Lookup("port"))
}
