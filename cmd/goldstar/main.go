package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pmallory/goldstar/internal/database"
	"github.com/pmallory/goldstar/internal/kv"
	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/logging"
	"github.com/pmallory/goldstar/internal/remote"
	"github.com/pmallory/goldstar/internal/server"
	"github.com/pmallory/goldstar/internal/store"
	"github.com/pmallory/goldstar/internal/tracker"
	ws "github.com/pmallory/goldstar/internal/websocket"
)

func main() {
	// Missing .env is fine; everything has env-var defaults.
	godotenv.Load()

	port := envOr("GOLDSTAR_PORT", "8080")
	dbPath := envOr("GOLDSTAR_DB_PATH", "goldstar.db")
	mode := envOr("GOLDSTAR_LEDGER_SOURCE", "local")

	logger := logging.Setup(os.Getenv("GOLDSTAR_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	opts := ledger.Options{
		ClampAtZero: os.Getenv("GOLDSTAR_CLAMP_SCORE") == "true",
	}

	pollInterval := tracker.DefaultPollInterval
	if s := os.Getenv("GOLDSTAR_POLL_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			pollInterval = d
		}
	}

	var (
		source  ledger.Source
		catalog tracker.Catalog
	)
	switch mode {
	case "remote":
		apiURL := os.Getenv("GOLDSTAR_API_URL")
		if apiURL == "" {
			log.Fatal("GOLDSTAR_API_URL is required when GOLDSTAR_LEDGER_SOURCE=remote")
		}
		client := remote.NewClient(apiURL)
		if err := client.HealthCheck(context.Background()); err != nil {
			logger.Warn("remote API not reachable at startup", "url", apiURL, "error", err)
		}
		source = ledger.NewRemoteView(client, opts, logger.With("component", "ledger"))
		catalog = client
	case "local":
		source = ledger.NewStore(kv.NewStore(db), opts, logger.With("component", "ledger"))
		catalog = store.NewCatalog(store.NewChildStore(db), store.NewBehaviorStore(db), store.NewRewardStore(db))
	default:
		log.Fatalf("unknown GOLDSTAR_LEDGER_SOURCE %q (want local or remote)", mode)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	trk := tracker.New(catalog, source, hub, logger.With("component", "tracker"), pollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := trk.LoadCatalogs(ctx); err != nil {
		logger.Warn("initial catalog load failed", "error", err)
	}
	go trk.Run(ctx)

	srv := server.New(db, server.Config{LedgerSource: mode}, source, catalog, trk, hub, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Goldstar running at http://localhost:%s (ledger source: %s)\n", port, mode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
