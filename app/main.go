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

	"github.com/lysyi3m/canvas-comb/app/api"
	"github.com/lysyi3m/canvas-comb/app/cfg"
	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/enrich"
	"github.com/lysyi3m/canvas-comb/app/pipeline"
	"github.com/lysyi3m/canvas-comb/app/sources"
	"github.com/lysyi3m/canvas-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Canvas Comb", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	contentRepo := database.NewContentRepo(db)
	featureRepo := database.NewFeatureRepo(db)

	seeded, err := featureRepo.SeedFeatures()
	if err != nil {
		slog.Error("Failed to seed feature taxonomy", "error", err)
		os.Exit(1)
	}
	if seeded > 0 {
		slog.Info("Feature taxonomy seeded", "features", seeded)
	}

	// Startup repair pass: merge option rows whose ids carry scrape-time
	// annotation fragments. Idempotent, cheap when the store is clean.
	repaired, err := featureRepo.RepairOptionIDs()
	if err != nil {
		slog.Error("Failed to repair option ids", "error", err)
		os.Exit(1)
	}
	if repaired > 0 {
		slog.Info("Option ids repaired", "merged", repaired)
	}

	configCache := sources.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount())

	var enrichClient enrich.Client
	if appCfg.AnthropicAPIKey != "" {
		enrichClient = enrich.NewAnthropicClient(appCfg.AnthropicAPIKey, appCfg.AnthropicModel)
		slog.Info("LLM enrichment enabled", "model", appCfg.AnthropicModel)
	} else {
		slog.Info("LLM enrichment disabled, deterministic fallbacks apply")
	}
	enricher := enrich.NewService(enrichClient, time.Duration(appCfg.EnrichDelay)*time.Second)

	classifier := pipeline.NewClassifier(contentRepo, appCfg.FirstRunLimit)
	linker, err := pipeline.NewLinker(featureRepo)
	if err != nil {
		slog.Error("Failed to build feature linker", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{}
	scheduler := tasks.NewScheduler(configCache, contentRepo, featureRepo, httpClient, classifier, linker, enricher)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	apiHandler := api.NewHandler(configCache, contentRepo, featureRepo, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler and database are released via defers, workers first so
	// no task outlives its store connection.
	slog.Info("Shutdown complete")
}
