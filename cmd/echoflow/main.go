// Entry point for the echoflow MCP server — stdio MCP transport plus a
// chi HTTP sidecar for health and job status.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/echoflow/batch"
	"github.com/hazyhaar/echoflow/dbopen"
	"github.com/hazyhaar/echoflow/docconv"
	"github.com/hazyhaar/echoflow/engine"
	"github.com/hazyhaar/echoflow/fallback"
	"github.com/hazyhaar/echoflow/service"
	"github.com/hazyhaar/echoflow/telemetry"
)

func main() {
	cfg := &Config{}
	if path := env("ECHOFLOW_CONFIG", ""); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			slog.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Env overrides beat the file.
	if v := env("HTTP_ADDR", ""); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("DB_PATH", ""); v != "" {
		cfg.DBPath = v
	}
	if v := env("ENGINE_URL", ""); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := env("LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	cfg.defaults()

	// Logging. Stdout carries the MCP stdio transport, so logs go to
	// stderr.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Jobs + telemetry DB.
	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(batch.Schema),
		dbopen.WithSchema(telemetry.Schema))
	if err != nil {
		slog.Error("open db", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := telemetry.Cleanup(ctx, db, cfg.Convert.RetentionDays); err != nil {
		slog.Warn("telemetry cleanup", "error", err)
	}

	// Optional remote inference engine.
	var engClient *engine.Client
	var orchEngine docconv.Engine
	if cfg.Engine.BaseURL != "" {
		engClient, err = engine.New(engine.Config{
			BaseURL:          cfg.Engine.BaseURL,
			RequestTimeout:   cfg.Engine.RequestTimeout,
			MaxRetries:       cfg.Engine.MaxRetries,
			Backoff:          cfg.Engine.Backoff,
			BreakerThreshold: cfg.Engine.BreakerThreshold,
			BreakerReset:     cfg.Engine.BreakerReset,
			HealthTTL:        cfg.Engine.HealthTTL,
			Logger:           logger,
		})
		if err != nil {
			slog.Error("engine client", "error", err)
			os.Exit(1)
		}
		defer engClient.Close()
		orchEngine = engClient
	} else {
		slog.Info("no engine configured, format fallbacks only")
	}

	sniffer := docconv.NewSniffer(cfg.Convert.MaxFileSize)
	scorer := docconv.NewScorer(docconv.ScorerConfig{})
	recorder := telemetry.NewRecorder(db)

	orch := fallback.New(fallback.Config{
		Engine:         orchEngine,
		Scorer:         scorer,
		VariantTimeout: cfg.Convert.VariantTimeout,
		Logger:         logger,
		Sink:           recorder,
	})

	coord, err := batch.New(batch.Config{
		Sniffer:      sniffer,
		Orchestrator: orch,
		Workers:      cfg.Convert.Workers,
		Logger:       logger,
	})
	if err != nil {
		slog.Error("batch coordinator", "error", err)
		os.Exit(1)
	}

	svc, err := service.New(service.Config{
		Sniffer:          sniffer,
		Orchestrator:     orch,
		Coordinator:      coord,
		Jobs:             batch.NewStore(db),
		Engine:           engClient,
		JobsDB:           db,
		QualityThreshold: cfg.Convert.QualityThreshold,
		Logger:           logger,
	})
	if err != nil {
		slog.Error("service", "error", err)
		os.Exit(1)
	}

	// MCP server on stdio.
	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "echoflow",
		Version: service.Version,
	}, nil)
	svc.RegisterMCP(mcpSrv)

	// HTTP sidecar.
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		slog.Info("http sidecar starting", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http sidecar", "error", err)
		}
	}()

	slog.Info("mcp server starting", "transport", "stdio")
	if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("mcp server", "error", err)
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
