package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridian-labs/newsvault/internal/adapters/driving/api"
	"github.com/veridian-labs/newsvault/internal/core/services"
	"github.com/veridian-labs/newsvault/internal/logger"
)

// shutdownGrace bounds how long in-flight requests may run after a
// termination signal.
const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API with background refresh",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	replica, err := a.openReplica(ctx)
	if err != nil {
		return err
	}

	cache := services.NewQueryCache(replica, a.state)
	defer cache.Close()

	refresher := services.NewRefresher(a.store, a.cfg.Storage.Prefix, cache, a.state, a.refreshConfig())

	server := &http.Server{
		Addr:    a.cfg.API.Listen,
		Handler: api.NewServer(cache, refresher, refresher).Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Refresh loop starting (interval %s)", a.cfg.Refresh.Interval.Std())
		if err := refresher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("refresh loop: %w", err)
		}
	}()
	go func() {
		cmd.Printf("Listening on %s\n", a.cfg.API.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		cmd.Println("Shutting down...")
	case runErr = <-errCh:
		stop()
	}

	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutting down http server: %w", err)
	}
	return runErr
}
