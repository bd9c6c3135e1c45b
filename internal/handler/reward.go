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

type RewardHandler struct {
	store  *store.RewardStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewRewardHandler(s *store.RewardStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{store: s, hub: hub, logger: logger}
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.store.List()
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

type rewardRequest struct {
	Name      string `json:"name"`
	PointCost int    `json:"pointCost"`
	Icon      string `json:"icon"`
	Active    bool   `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.PointCost < 0 {
		writeError(w, http.StatusBadRequest, "pointCost must be >= 0")
		return
	}

	reward, err := h.store.Create(req.Name, req.PointCost, req.Icon, req.Active)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.PointCost < 0 {
		writeError(w, http.StatusBadRequest, "pointCost must be >= 0")
		return
	}

	reward, err := h.store.Update(id, req.Name, req.PointCost, req.Icon, req.Active)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("reward", "updated", id, nil))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	if err := h.store.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("reward", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
