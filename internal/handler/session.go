package handler

import (
	"log/slog"
	"net/http"

	"github.com/pmallory/goldstar/internal/tracker"
)

// SessionHandler exposes the screen coordinator: a kiosk client selects a
// child once and then drives mutations through the cursor instead of
// addressing children explicitly.
type SessionHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewSessionHandler(t *tracker.Tracker, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{tracker: t, logger: logger}
}

// Snapshot returns the full session view: catalogs, selected child, state,
// and today's (optimistically patched) score.
func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *SessionHandler) SelectChild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	if err := h.tracker.SelectChild(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.tracker.Retry(r.Context())
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.LoadCatalogs(r.Context()); err != nil {
		h.logger.Error("reload catalogs", "error", err)
		writeError(w, http.StatusBadGateway, "failed to reload catalogs")
		return
	}
	h.tracker.Refresh(r.Context())
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "behavior_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid behavior id")
		return
	}

	res, err := h.tracker.CompleteGoodBehavior(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to record completion")
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "behavior_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid behavior id")
		return
	}

	res, err := h.tracker.RecordBadBehavior(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to record behavior")
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "reward_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	res, err := h.tracker.UseReward(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to redeem reward")
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
