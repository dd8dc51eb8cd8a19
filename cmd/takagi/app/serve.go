package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/takagi-dev/takagi/pkg/config"
	"github.com/takagi-dev/takagi/pkg/github"
	"github.com/takagi-dev/takagi/pkg/logger"
	"github.com/takagi-dev/takagi/pkg/server"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	// Write and idle timeouts are generous: /token and /userinfo wait on
	// GitHub round trips.
	serverWriteTimeout = 30 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OpenID Connect provider",
		Long: `Start the HTTP server. All settings are read from TAKAGI_-prefixed
environment variables; see the project documentation for the full list.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8000", "Address to listen on")
	if err := viper.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}

	return cmd
}

func runServe(_ *cobra.Command, _ []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	address := viper.GetString("address")
	logger.Infof("Starting takagi on %s", address)

	srv := server.New(settings, github.NewClient())

	httpServer := &http.Server{
		Addr:         address,
		Handler:      srv.Router(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
