package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/store"
	"github.com/pmallory/goldstar/internal/websocket"
)

type BehaviorHandler struct {
	store  *store.BehaviorStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewBehaviorHandler(s *store.BehaviorStore, hub *websocket.Hub, logger *slog.Logger) *BehaviorHandler {
	return &BehaviorHandler{store: s, hub: hub, logger: logger}
}

// ListGood returns the good-behavior catalog.
func (h *BehaviorHandler) ListGood(w http.ResponseWriter, r *http.Request) {
	h.list(w, model.KindGood)
}

// ListBad returns the bad-behavior catalog.
func (h *BehaviorHandler) ListBad(w http.ResponseWriter, r *http.Request) {
	h.list(w, model.KindBad)
}

func (h *BehaviorHandler) list(w http.ResponseWriter, kind model.BehaviorKind) {
	behaviors, err := h.store.ListByKind(kind)
	if err != nil {
		h.logger.Error("list behaviors", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list behaviors")
		return
	}
	if behaviors == nil {
		behaviors = []model.Behavior{}
	}
	writeJSON(w, http.StatusOK, behaviors)
}

type behaviorRequest struct {
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Color    string `json:"color"`
	Active   bool   `json:"active"`
}

func (h *BehaviorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	kind := model.BehaviorKind(req.Kind)
	if kind != model.KindGood && kind != model.KindBad {
		writeError(w, http.StatusBadRequest, "kind must be good or bad")
		return
	}
	// Points is a magnitude for both catalogs; the ledger applies the sign.
	if req.Points < 0 {
		writeError(w, http.StatusBadRequest, "points must be >= 0")
		return
	}

	behavior, err := h.store.Create(req.Name, req.Points, kind, req.Category, req.Color, req.Active)
	if err != nil {
		h.logger.Error("create behavior", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create behavior")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("behavior", "created", behavior.ID, nil))
	writeJSON(w, http.StatusCreated, behavior)
}

func (h *BehaviorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get behavior")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "behavior not found")
		return
	}

	var req behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Points < 0 {
		writeError(w, http.StatusBadRequest, "points must be >= 0")
		return
	}

	behavior, err := h.store.Update(id, req.Name, req.Points, req.Category, req.Color, req.Active)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update behavior")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("behavior", "updated", id, nil))
	writeJSON(w, http.StatusOK, behavior)
}

func (h *BehaviorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get behavior")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "behavior not found")
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete behavior")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("behavior", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
