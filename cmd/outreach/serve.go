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

	"github.com/spf13/cobra"

	"outreach/internal/cache"
	"outreach/internal/config"
	"outreach/internal/panel"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runPanel(cfg)
	},
}

func runPanel(cfg config.Config) error {
	store, err := cache.Open(cfg.Cache.DBPath, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    cfg.Panel.Addr,
		Handler: panel.NewHandler(panel.Deps{Store: store}),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stdout, "panel listening on %s\n", cfg.Panel.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stdout, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("panel server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
