package cmd

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

	"github.com/MeKo-Tech/chatocr/internal/config"
	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for chat screenshot analysis",
	Long: `Start an HTTP server that analyses uploaded chat screenshots.

The server provides the following endpoints:
  POST /v1/extract - Process uploaded screenshots (field screenshot_image or image)
  POST /v1/detect  - Chat window detection only
  GET  /ws         - WebSocket streaming
  GET  /health     - Health check endpoint
  GET  /models     - List available models
  GET  /metrics    - Prometheus metrics

Examples:
  chatocr serve
  chatocr serve --port 8080
  chatocr serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	noText, _ := cmd.Flags().GetBool("no-text")
	p, err := buildPipeline(cfg, noText)
	if err != nil {
		return err
	}

	chatServer, err := server.NewServer(serverConfig(cfg), p)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	chatServer.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting chatocr server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err, ok := <-serveErr:
		if ok {
			slog.Error("Server error", "error", err)
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := chatServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return runErr
}

// serverConfig extracts the HTTP server settings.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		ModelsDir:      models.GetModelsDir(cfg.ModelsDir),
		OverlayEnabled: cfg.Server.OverlayEnabled,
		TrustedProxies: cfg.Server.TrustedProxies,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimitEnabled,
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
		},
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("overlay-enable", true, "enable overlay image responses")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	serveCmd.Flags().Float64("requests-per-second", 10, "sustained requests per second per client")
	serveCmd.Flags().Int("burst", 20, "request burst per client")
	serveCmd.Flags().Bool("no-text", false, "serve without text recognition")

	bindFlags(serveCmd.Flags().Lookup, []flagBinding{
		{"server.host", "host"},
		{"server.port", "port"},
		{"server.cors_origin", "cors-origin"},
		{"server.max_upload_mb", "max-upload-size"},
		{"server.timeout_sec", "timeout"},
		{"server.shutdown_timeout", "shutdown-timeout"},
		{"server.overlay_enabled", "overlay-enable"},
		{"server.rate_limit_enabled", "rate-limit-enabled"},
		{"server.requests_per_second", "requests-per-second"},
		{"server.burst", "burst"},
	})
}
