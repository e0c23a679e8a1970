package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/server"
	"github.com/cwbudde/polyga/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves the session API under /api/v1/sessions, a server-sent event
stream per session, PNG plots, checkpoints and Prometheus metrics on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: config server.addr)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Checkpoint directory (default: config server.data_dir)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Disable checkpoint persistence")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := appConfig.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	dataDir := appConfig.Server.DataDir
	if serveDataDir != "" {
		dataDir = serveDataDir
	}

	var st store.Store
	if !serveNoStore {
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		st = fsStore
	}

	srv := server.NewServer(addr, st, server.ManagerConfig{
		Options:              appConfig.Options(),
		CheckpointOnConverge: appConfig.Server.CheckpointOnConverge,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
