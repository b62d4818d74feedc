// Package main is the entry point for the promptrelay server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"promptrelay/internal/config"
	"promptrelay/internal/history"
	"promptrelay/internal/httpapi"
	"promptrelay/internal/orchestrator"
	"promptrelay/internal/resilience"
	"promptrelay/internal/skill"
	"promptrelay/internal/telemetry"
	"promptrelay/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	flag.Parse()

	// Bootstrap logging; reconfigured from the file once it is loaded
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(buildLogger(cfg))

	slog.Info("Starting promptrelay",
		"version", "0.1.0",
		"http_port", cfg.Server.HTTPPort,
		"model", cfg.Upstream.Model,
	)

	// Resolve upstream credentials (plaintext or encrypted TOML value)
	apiKey, err := cfg.Upstream.ResolveAPIKey()
	if err != nil {
		slog.Error("Failed to resolve API key", "error", err)
		os.Exit(1)
	}
	creds := config.NewCredentials(apiKey, cfg.Upstream.Model)

	// Telemetry
	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewMetrics(nil)
		slog.Info("Telemetry initialized")
	}

	// History provider
	var historySource orchestrator.HistorySource
	var journalSink orchestrator.JournalSink
	switch cfg.History.Driver {
	case "postgres":
		pgStore, err := history.NewPostgresStore(cfg.History.DSN)
		if err != nil {
			slog.Error("Failed to initialize PostgreSQL history", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		historySource = pgStore
		slog.Info("PostgreSQL history initialized", "session_id", cfg.History.SessionID)

		if cfg.Journal.Enabled {
			journal, err := history.NewJournal(pgStore.DB())
			if err != nil {
				slog.Error("Failed to initialize request journal", "error", err)
				os.Exit(1)
			}
			journalSink = journal
			slog.Info("Request journal enabled")
		}
	case "none":
		historySource = history.Nop{}
		slog.Info("Conversation history disabled")
	default:
		historySource = history.NewMemoryStore(cfg.History.Capacity)
		slog.Info("In-memory history initialized", "capacity", cfg.History.Capacity)
	}
	if cfg.Journal.Enabled && journalSink == nil && cfg.History.Driver != "postgres" {
		slog.Warn("Request journal requires the postgres history driver, skipping")
	}

	// Skill registry, optionally extended with custom definitions
	registry := skill.NewRegistry()
	if cfg.Skills.DefinitionsPath != "" {
		data, err := os.ReadFile(cfg.Skills.DefinitionsPath)
		if err != nil {
			slog.Error("Failed to read skill definitions", "path", cfg.Skills.DefinitionsPath, "error", err)
			os.Exit(1)
		}
		count, err := registry.LoadDefinitions(data)
		if err != nil {
			slog.Error("Failed to load skill definitions", "path", cfg.Skills.DefinitionsPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Custom skills loaded", "count", count)
	}

	// Delivery pipeline: two transports behind the retry runner
	runner := resilience.NewRunner(resilience.RetryConfig{
		MaxAttempts:        cfg.Retry.MaxAttempts,
		PerAttemptTimeout:  cfg.Retry.PerAttemptTimeout(),
		BackoffBase:        cfg.Retry.BackoffBase(),
		NetworkBackoffBase: cfg.Retry.NetworkBackoffBase(),
		JitterMax:          cfg.Retry.JitterMax(),
	}, transport.NewClient(), transport.NewFreshClient())
	if metrics != nil {
		runner.SetMetrics(metrics)
	}

	responder := resilience.NewResponder(registry, skill.NewMatcher(skill.DefaultMatchThreshold))

	service := orchestrator.NewServiceWithStores(
		cfg,
		creds,
		runner,
		responder,
		registry,
		historySource,
		journalSink,
		metrics,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Initialize(ctx); err != nil {
		// The service can still be armed later through /v1/credentials
		slog.Warn("Service starting uninitialized", "error", err)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	// Start HTTP server
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	server := httpapi.NewServer(cfg, service)
	go func() {
		slog.Info("Starting HTTP server", "addr", httpAddr)
		if err := server.Start(ctx, httpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("promptrelay ready",
		"api_endpoint", fmt.Sprintf("http://localhost:%d/v1", cfg.Server.HTTPPort),
		"health_endpoint", fmt.Sprintf("http://localhost:%d/healthz", cfg.Server.HTTPPort),
	)

	// Wait for shutdown
	<-ctx.Done()
	slog.Info("Shutting down...")

	// Give the server time to complete graceful shutdown
	time.Sleep(2 * time.Second)
	slog.Info("promptrelay stopped")
}

// buildLogger constructs the slog handler the configuration asks for
func buildLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}
	if strings.EqualFold(cfg.Telemetry.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
