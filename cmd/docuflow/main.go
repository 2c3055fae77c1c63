package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/term"

	dfhttp "github.com/docuflow/docuflow/internal/adapter/http"
	"github.com/docuflow/docuflow/internal/adapter/mcp"
	dfotel "github.com/docuflow/docuflow/internal/adapter/otel"
	"github.com/docuflow/docuflow/internal/adapter/ristretto"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/logger"
)

const version = "0.1.0"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "sim" {
		if err := runSim(args[1:]); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runServe(args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// runServe hosts the orchestration core behind the HTTP API, the WebSocket
// hub and the optional MCP endpoint until interrupted.
func runServe(args []string) error {
	fs := flag.NewFlagSet("docuflow", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigFile, "path to YAML configuration")
	exportPath := fs.String("export", "", "write a state export to this file on shutdown")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	resolveLogFormat(&cfg.Logging)
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"nats", cfg.NATS.URL != "",
		"audit_archive", cfg.Postgres.DSN != "",
		"mcp", cfg.MCP.Addr != "",
		"agents", len(cfg.Orchestrator.Roster),
	)

	ctx := context.Background()

	otelShutdown, err := dfotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	var metrics *dfotel.Metrics
	if cfg.Telemetry.Enabled {
		if metrics, err = dfotel.NewMetrics(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	c, cleanup, err := wireCore(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	snapshots, err := ristretto.New(cfg.Cache.MaxSizeMB)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer snapshots.Close()

	handlers := &dfhttp.Handlers{
		Orchestrator: c.orch,
		Tasks:        c.tasks,
		Registry:     c.registry,
		Store:        c.store,
		Trail:        c.trail,
		Hub:          c.hub,
		Queue:        c.bus,
		Cache:        snapshots,
		CacheTTL:     cfg.Cache.TTL,
	}

	r := chi.NewRouter()

	r.Use(dfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(dfhttp.Logger)
	r.Use(dfhttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(dfotel.HTTPMiddleware(cfg.Logging.Service))
	}

	dfhttp.MountRoutes(r, handlers)

	var mcpSrv *mcp.Server
	if cfg.MCP.Addr != "" {
		mcpSrv = mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "docuflow",
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{Workflows: c.orch, Agents: c.registry})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// The servers are down and the sim is not running, so the state is
	// quiescent and the export is consistent.
	if *exportPath != "" {
		return writeExport(ctx, c, *exportPath)
	}
	return nil
}

// resolveLogFormat picks text output for interactive terminals when the
// config leaves the format on auto.
func resolveLogFormat(cfg *config.Logging) {
	if cfg.Format != "" {
		return
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		cfg.Format = "text"
	} else {
		cfg.Format = "json"
	}
}
