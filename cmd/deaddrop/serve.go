package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deaddrop/deaddrop"
	"github.com/deaddrop/deaddrop/config"
	"github.com/deaddrop/deaddrop/filesystem"
	dhttp "github.com/deaddrop/deaddrop/http"
	"github.com/deaddrop/deaddrop/metadata"
	"github.com/deaddrop/deaddrop/retry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the deaddrop HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, closeStore, err := metadata.Connect(ctx, cfg.Metadata)
	if err != nil {
		return fmt.Errorf("connect metadata: %w", err)
	}
	defer closeStore()
	slog.Info("connected to metadata backend", "type", cfg.Metadata.Type)

	meta := deaddrop.NewRetryingStore(store, retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
	})

	err = os.MkdirAll(cfg.Storage.Path, 0o750)
	if err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage root: %w", err)
	}
	defer func() { _ = root.Close() }()

	blobs := filesystem.NewStore(root, time.Duration(cfg.Storage.OpTimeout)*time.Second)

	reaper := deaddrop.NewReaper(blobs, meta, deaddrop.ReaperConfig{
		QueueSize: cfg.Reaper.QueueSize,
		Attempts:  cfg.Reaper.Attempts,
	})
	defer reaper.Close()

	service, err := deaddrop.NewService(meta, blobs, reaper, deaddrop.ServiceConfig{
		MaxFileSize:    cfg.Server.MaxUploadSize,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	handlerConfig := dhttp.HandlerConfig{
		Version:       version,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS:          cfg.CORS,
	}

	handler := dhttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
