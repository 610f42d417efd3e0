package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/patrickmn/go-cache"
	"github.com/username/easyledger/backend/src/handlers"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/services"
)

type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "runs the local host API for the ledger UI" }
func (*serveCmd) Usage() string {
	return `easyledger serve [-port <port>]

  Opens the ledger for the configured runtime (LEDGER_RUNTIME) and serves the
  JSON host API under /api until interrupted.

`
}

func (p *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.port, "port", "", "Port to listen on. Defaults to PORT from the environment.")
}

func (p *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := currentConfig()
	port := p.port
	if port == "" {
		port = cfg.Port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openLedger(ctx, cfg)
	if err != nil {
		logger.L.Error("Failed to open ledger", "error", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.L.Error("Error closing storage backend", "error", err)
		}
	}()

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	router := handlers.NewRouter(session.ledger,
		services.NewBackupService(session.ledger, cfg.MaxImportSizeBytes),
		services.NewReportService(session.ledger, reportCache),
		services.NewExportService(session.ledger),
		handlers.RouterConfig{
			MaxImportSizeBytes: cfg.MaxImportSizeBytes,
			RateLimitRPS:       cfg.RateLimitRPS,
			RateLimitBurst:     cfg.RateLimitBurst,
			AllowedOrigins:     cfg.AllowedOrigins,
		})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", server.Addr, "runtime", cfg.Runtime)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: failed to start server: %v\n", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		logger.L.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
