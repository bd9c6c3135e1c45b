package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/pmallory/goldstar/internal/ledger"
	"github.com/pmallory/goldstar/internal/model"
	"github.com/pmallory/goldstar/internal/store"
	"github.com/pmallory/goldstar/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type ChildHandler struct {
	store  *store.ChildStore
	source ledger.Source
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewChildHandler(s *store.ChildStore, source ledger.Source, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{store: s, source: source, hub: hub, logger: logger}
}

// List returns all children enriched with today's ledger summary.
func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.store.List()
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}

	views, err := h.source.AggregateChildrenWithTodayScores(r.Context(), children)
	if err != nil {
		h.logger.Error("aggregate today scores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to aggregate scores")
		return
	}
	if views == nil {
		views = []model.ChildView{}
	}
	writeJSON(w, http.StatusOK, views)
}

type childRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	AvatarEmoji string `json:"avatarEmoji"`
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color == "" {
		req.Color = "#3B82F6"
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}

	child, err := h.store.Create(req.Name, req.Color, req.AvatarEmoji)
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("child", "created", child.ID, nil))
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color == "" {
		req.Color = existing.Color
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = existing.AvatarEmoji
	}

	child, err := h.store.Update(id, req.Name, req.Color, req.AvatarEmoji)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("child", "updated", id, nil))
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("child", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChildHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.store.UpdateSortOrder(req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update sort order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
