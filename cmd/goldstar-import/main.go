// goldstar-import migrates a browser local-storage export from the original
// tracker into a goldstar SQLite database, and can optionally replay the
// exported activities against a remote API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pmallory/goldstar/internal/database"
	"github.com/pmallory/goldstar/internal/kv"
	"github.com/pmallory/goldstar/internal/legacy"
	"github.com/pmallory/goldstar/internal/logging"
	"github.com/pmallory/goldstar/internal/remote"
	"github.com/pmallory/goldstar/internal/store"
)

func main() {
	var (
		exportPath = flag.String("export", "", "path to the local-storage export JSON (required)")
		dbPath     = flag.String("db", "goldstar.db", "path to the SQLite database")
		apiURL     = flag.String("api-url", "", "remote API base URL; when set, replay activities instead of importing locally")
		idMapPath  = flag.String("id-map", "", "path to a JSON file mapping legacy ids to remote ids (required with -api-url)")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logging.Setup(*logLevel)

	if *exportPath == "" {
		fmt.Fprintln(os.Stderr, "usage: goldstar-import -export <file> [-db <file>] [-api-url <url> -id-map <file>]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*exportPath)
	if err != nil {
		logger.Error("read export", "error", err)
		os.Exit(1)
	}
	export, err := legacy.Parse(data)
	if err != nil {
		logger.Error("parse export", "error", err)
		os.Exit(1)
	}
	logger.Info("parsed export",
		"children", len(export.Children),
		"behaviors", len(export.Behaviors)+len(export.BadBehaviors),
		"rewards", len(export.Rewards),
		"days", len(export.Entries))

	if *apiURL != "" {
		replay(logger, export, *apiURL, *idMapPath)
		return
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	importer := legacy.NewImporter(
		store.NewChildStore(db),
		store.NewBehaviorStore(db),
		store.NewRewardStore(db),
		kv.NewStore(db),
		logger,
	)
	sum, err := importer.Import(export)
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
	logger.Info("import complete",
		"children", sum.Children,
		"behaviors", sum.Behaviors,
		"rewards", sum.Rewards,
		"days", sum.Days,
		"activities", sum.Activities,
		"skippedDays", sum.SkippedDays)
}

func replay(logger *slog.Logger, export *legacy.Export, apiURL, idMapPath string) {
	if idMapPath == "" {
		fmt.Fprintln(os.Stderr, "replay requires -id-map: a JSON file with {\"children\": {...}, \"behaviors\": {...}}")
		os.Exit(2)
	}
	raw, err := os.ReadFile(idMapPath)
	if err != nil {
		logger.Error("read id map", "error", err)
		os.Exit(1)
	}
	var ids legacy.IDMap
	if err := json.Unmarshal(raw, &ids); err != nil {
		logger.Error("parse id map", "error", err)
		os.Exit(1)
	}

	client := remote.NewClient(apiURL)
	ctx := context.Background()
	if err := client.HealthCheck(ctx); err != nil {
		logger.Error("remote API unreachable", "url", apiURL, "error", err)
		os.Exit(1)
	}

	posted, skipped, err := legacy.Replay(ctx, client, export, ids, logger)
	if err != nil {
		logger.Error("replay failed", "posted", posted, "error", err)
		os.Exit(1)
	}
	logger.Info("replay complete", "posted", posted, "skipped", skipped)
}
