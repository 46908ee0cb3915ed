package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"qbank/internal/app"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("http-addr", "a", ":8080", "HTTP listen address")
	f.String("app-env", "development", "Runtime environment (development, production)")
	f.Bool("csrf-enforced", false, "Require the double-submit CSRF header on unsafe requests")
	f.Int("auth-rate-limit-per-minute", 60, "Login attempts allowed per IP per minute")
	f.Int("import-rate-limit-per-minute", 30, "Import requests allowed per IP per minute")
	f.Int("session-ttl-hours", 24, "Session lifetime in hours")
	f.Int("max-upload-mb", 10, "Largest accepted import payload in MiB")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	logger := setupLogging(v)
	cfg := app.LoadConfig(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(cfg, conn, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("qbank listening", "addr", cfg.HTTPAddr, "driver", cfg.DBDriver, "env", cfg.AppEnv)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
