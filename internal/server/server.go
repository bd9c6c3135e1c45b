package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/pmallory/goldstar/internal/handler"
	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/middleware"
	"github.com/pmallory/goldstar/internal/store"
	"github.com/pmallory/goldstar/internal/tracker"
	ws "github.com/pmallory/goldstar/internal/websocket"
)

// Config selects the ledger source and controls which surfaces the server
// mounts. Admin CRUD only exists in local mode; in remote mode the catalogs
// are managed upstream.
type Config struct {
	LedgerSource string // "local" or "remote"
}

type Server struct {
	db        *sql.DB
	cfg       Config
	hub       *ws.Hub
	tracker   *tracker.Tracker
	childH    *handler.ChildHandler
	behaviorH *handler.BehaviorHandler
	rewardH   *handler.RewardHandler
	activityH *handler.ActivityHandler
	sessionH  *handler.SessionHandler
	logger    *slog.Logger
}

// New wires the stores, handlers, and coordinator around the chosen ledger
// source. The catalog argument is the same object the tracker polls, either
// the local store bundle or the remote client.
func New(db *sql.DB, cfg Config, source ledger.Source, catalog tracker.Catalog, trk *tracker.Tracker, hub *ws.Hub, logger *slog.Logger) *Server {
	childStore := store.NewChildStore(db)
	behaviorStore := store.NewBehaviorStore(db)
	rewardStore := store.NewRewardStore(db)

	return &Server{
		db:        db,
		cfg:       cfg,
		hub:       hub,
		tracker:   trk,
		childH:    handler.NewChildHandler(childStore, source, hub, logger.With("component", "child")),
		behaviorH: handler.NewBehaviorHandler(behaviorStore, hub, logger.With("component", "behavior")),
		rewardH:   handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		activityH: handler.NewActivityHandler(source, catalog, hub, logger.With("component", "activity")),
		sessionH:  handler.NewSessionHandler(trk, logger.With("component", "session")),
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Catalog CRUD exists only in local mode. Remote mode reads catalogs
	// through the session snapshot; edits happen upstream.
	if s.cfg.LedgerSource == "local" {
		mux.HandleFunc("GET /api/children", s.childH.List)
		mux.HandleFunc("POST /api/children", s.childH.Create)
		mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
		mux.HandleFunc("DELETE /api/children/{id}", s.childH.Delete)
		mux.HandleFunc("PUT /api/children/sort", s.childH.UpdateSortOrder)

		mux.HandleFunc("GET /api/behaviors", s.behaviorH.ListGood)
		mux.HandleFunc("GET /api/bad-behaviors", s.behaviorH.ListBad)
		mux.HandleFunc("POST /api/behaviors", s.behaviorH.Create)
		mux.HandleFunc("PUT /api/behaviors/{id}", s.behaviorH.Update)
		mux.HandleFunc("DELETE /api/behaviors/{id}", s.behaviorH.Delete)

		mux.HandleFunc("GET /api/rewards", s.rewardH.List)
		mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
		mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
		mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	}

	// Daily ledger routes
	mux.HandleFunc("GET /api/children/{id}/today", s.activityH.Today)
	mux.HandleFunc("GET /api/children/{id}/days/{date}", s.activityH.Day)
	mux.HandleFunc("GET /api/children/{id}/activities", s.activityH.Activities)
	mux.HandleFunc("POST /api/children/{id}/behaviors/{behavior_id}/complete", s.activityH.Complete)
	mux.HandleFunc("POST /api/children/{id}/bad-behaviors/{behavior_id}/record", s.activityH.Record)
	mux.HandleFunc("POST /api/children/{id}/rewards/{reward_id}/redeem", s.activityH.Redeem)

	// Screen session routes
	mux.HandleFunc("GET /api/session", s.sessionH.Snapshot)
	mux.HandleFunc("POST /api/session/select/{id}", s.sessionH.SelectChild)
	mux.HandleFunc("POST /api/session/retry", s.sessionH.Retry)
	mux.HandleFunc("POST /api/session/refresh", s.sessionH.Refresh)
	mux.HandleFunc("POST /api/session/behaviors/{behavior_id}/complete", s.sessionH.Complete)
	mux.HandleFunc("POST /api/session/bad-behaviors/{behavior_id}/record", s.sessionH.Record)
	mux.HandleFunc("POST /api/session/rewards/{reward_id}/redeem", s.sessionH.Redeem)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok","ledgerSource":"` + s.cfg.LedgerSource + `"}`))
}
