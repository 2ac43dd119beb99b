package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitsync/splitsync/internal/remote/odoo"
	"github.com/splitsync/splitsync/internal/storage/sqlite"
	syncengine "github.com/splitsync/splitsync/internal/sync"
	"github.com/splitsync/splitsync/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Ignoring malformed duration", "key", key, "value", raw)
		return fallback
	}
	return d
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Ignoring malformed integer", "key", key, "value", raw)
		return fallback
	}
	return n
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/splitsync.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	client := odoo.New(odoo.Config{
		BaseURL:  getEnv("ODOO_URL", "http://localhost:8069"),
		Database: getEnv("ODOO_DB", "odoo"),
		Username: os.Getenv("ODOO_USER"),
		Password: os.Getenv("ODOO_PASSWORD"),
	})

	cfg := syncengine.DefaultConfig()
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", cfg.SyncInterval)
	cfg.StalenessWindow = getEnvDuration("STALENESS_WINDOW", cfg.StalenessWindow)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)

	engine := syncengine.New(store, client, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.Status(r.Context())); err != nil {
			slog.Error("Failed to encode status", "error", err)
		}
	})

	addr := getEnv("METRICS_ADDR", ":9090")
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("Metrics server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Sync loop starting", "interval", cfg.SyncInterval)
	engine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown failed", "error", err)
	}
	slog.Info("Shut down cleanly")
}
