// internal/cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/app"
	"github.com/spf13/cobra"
)

var seed bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP API",
	Long: `Serve starts the periodic scheduler (ready-task polling, overdue checks and
health reports) together with the REST API. With --seed a demo workload is
created and processed at startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&seed, "seed", false, "create demo tasks and a processing queue at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	if seed {
		if _, err := a.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errChan := make(chan error, 2)

	go func() {
		log.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	go func() {
		if err := a.Runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig.String())
	case runErr = <-errChan:
		log.Error("stopping after failure", "error", runErr)
	}

	timeout := cfg.Worker.ShutdownTimeoutDuration()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during API server shutdown", "error", err)
	}

	if err := a.Runner.Shutdown(timeout); err != nil {
		log.Error("error during scheduler shutdown", "error", err)
	}
	cancel()

	log.Info("taskflow shutdown complete")
	return runErr
}
